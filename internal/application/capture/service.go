package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"glint/internal/domain/capture"
	"glint/internal/infrastructure/browser"
	"glint/internal/infrastructure/cache"
	"glint/internal/shared/id"
	"glint/internal/shared/logger"
)

const (
	// defaultNavigationTimeout bounds navigation plus capture wall-clock time.
	defaultNavigationTimeout = 20 * time.Second

	// defaultCacheTTL is how long safe renders stay cached.
	defaultCacheTTL = 10 * time.Minute
)

// Service renders URLs to screenshots with caching, per-key single-flight
// and explicit-content screening.
type Service struct {
	pool        *browser.PagePool
	contextOpts browser.ContextOptions
	classifier  capture.Classifier
	cache       cache.ResultCache
	logger      logger.Interface

	group             singleflight.Group
	navigationTimeout time.Duration
	cacheTTL          time.Duration
}

// Option customizes the capture service.
type Option func(*Service)

// WithNavigationTimeout overrides the navigation+capture budget.
func WithNavigationTimeout(d time.Duration) Option {
	return func(s *Service) { s.navigationTimeout = d }
}

// WithCacheTTL overrides the render cache TTL.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) { s.cacheTTL = d }
}

// NewService creates the capture service.
func NewService(
	pool *browser.PagePool,
	contextOpts browser.ContextOptions,
	classifier capture.Classifier,
	resultCache cache.ResultCache,
	log logger.Interface,
	opts ...Option,
) *Service {
	s := &Service{
		pool:              pool,
		contextOpts:       contextOpts,
		classifier:        classifier,
		cache:             resultCache,
		logger:            log,
		navigationTimeout: defaultNavigationTimeout,
		cacheTTL:          defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture renders the requested URL and returns image bytes. Identical
// concurrent requests render at most once: duplicates block on the first
// render and share its outcome, errors included. A duplicate that needs a
// fresh attempt after a shared failure must re-issue its own request.
func (s *Service) Capture(ctx context.Context, req capture.RenderRequest) ([]byte, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.Fingerprint()

	if data, ok := s.cacheGet(ctx, key); ok {
		s.logger.Debugw("render cache hit", "url", req.URL)
		return data, nil
	}

	// The cache key ignores AllowExplicit so scanned-safe hits serve both
	// kinds of request, but a flight must never hand unscanned bytes to a
	// caller that requires screening (nor a screening rejection to one that
	// does not). Flights are therefore keyed per screening mode.
	flightKey := key
	if req.AllowExplicit {
		flightKey += ":unscanned"
	}

	result, err, shared := s.group.Do(flightKey, func() (any, error) {
		// A duplicate may have populated the cache between our miss and
		// the flight start.
		if data, ok := s.cacheGet(ctx, key); ok {
			return data, nil
		}
		return s.render(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debugw("render shared with concurrent request", "url", req.URL)
	}
	return result.([]byte), nil
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble degrades to a fresh render, never a failed request.
		s.logger.Warnw("render cache read failed", "error", err)
		return nil, false
	}
	return data, ok
}

func (s *Service) render(ctx context.Context, req capture.RenderRequest, key string) ([]byte, error) {
	renderID := id.MustGenerate(id.DefaultLength)
	s.logger.Debugw("render started", "render_id", renderID, "url", req.URL)

	lease, err := s.pool.Lease(ctx, s.contextOpts)
	if err != nil {
		return nil, err
	}

	renderCtx, cancel := context.WithTimeout(ctx, s.navigationTimeout)
	defer cancel()

	data, err := s.renderOnLease(renderCtx, lease, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, capture.ErrRenderTimeout
		}
		return nil, err
	}

	if !req.AllowExplicit {
		detections, err := s.classifier.Detect(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("content scan failed: %w", err)
		}
		if capture.ContainsExplicit(detections) {
			s.logger.Infow("explicit content rejected", "render_id", renderID, "url", req.URL)
			return nil, capture.ErrExplicitContent
		}

		// Only scanned-safe bytes enter the cache, so hits skip the
		// classifier. Unscanned renders (AllowExplicit) are never cached.
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warnw("render cache write failed", "error", err)
		}
	}

	return data, nil
}

// renderOnLease navigates and captures on the leased page. The lease always
// goes back to the pool: discarded when navigation broke it, released
// otherwise.
func (s *Service) renderOnLease(ctx context.Context, lease *browser.PageLease, req capture.RenderRequest) ([]byte, error) {
	page := lease.Page()

	if err := page.Navigate(ctx, req.URL, req.Wait); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// Out of time, but the page itself is fine: back to the pool.
			s.pool.Release(lease)
		} else {
			// A page that crashed during navigation may be wedged; never
			// hand it out again.
			s.pool.Discard(lease)
		}
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	defer s.pool.Release(lease)

	if req.ExtraWait > 0 {
		select {
		case <-time.After(req.ExtraWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	content, err := page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	if capture.LooksInternal(content) {
		return nil, fmt.Errorf("%w: page resolved to internal infrastructure", capture.ErrForbiddenTarget)
	}

	data, err := page.Screenshot(ctx, req.FullPage)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}
