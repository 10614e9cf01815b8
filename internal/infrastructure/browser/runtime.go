package browser

import (
	"context"
	"fmt"

	"glint/internal/domain/capture"
)

// ContextOptions describe the browser-context configuration that affects
// rendering. Two pages with equal fingerprints are interchangeable.
type ContextOptions struct {
	Width     int
	Height    int
	Locale    string
	UserAgent string
}

// Fingerprint returns a canonical key for these options. Field order is
// fixed here rather than derived from any serialized form, so equal option
// sets always produce equal keys.
func (o ContextOptions) Fingerprint() string {
	return fmt.Sprintf("width=%d&height=%d&locale=%s&user_agent=%s",
		o.Width, o.Height, o.Locale, o.UserAgent)
}

// Page is one reusable rendering context inside the browser.
type Page interface {
	// Navigate loads the URL and waits per the strategy. Respects ctx
	// cancellation and deadline.
	Navigate(ctx context.Context, url string, wait capture.WaitStrategy) error

	// Content returns the current document markup.
	Content(ctx context.Context) (string, error)

	// Screenshot captures the viewport, or the full scrollable page when
	// fullPage is set. Animations are disabled during capture.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// Close destroys the rendering context.
	Close() error
}

// Runtime creates rendering contexts. Implemented by the headless Chrome
// runtime in production and by fakes in tests.
type Runtime interface {
	NewPage(ctx context.Context, opts ContextOptions) (Page, error)
	Stop() error
}
