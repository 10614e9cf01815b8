package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"glint/internal/domain/capture"
	"glint/internal/shared/logger"
)

// disableAnimationsCSS freezes CSS animations and transitions so captures
// are stable regardless of timing.
const disableAnimationsCSS = `
(() => {
  const style = document.createElement('style');
  style.textContent = '*, *::before, *::after { animation: none !important; transition: none !important; }';
  document.head.appendChild(style);
})()`

// ChromeRuntime drives a shared headless Chrome process via the DevTools
// protocol. Each NewPage call opens a tab; tabs are pooled by PagePool.
type ChromeRuntime struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	logger      logger.Interface
}

// NewChromeRuntime launches the headless browser.
func NewChromeRuntime(ctx context.Context, log logger.Interface) (*ChromeRuntime, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// rather than on the first render.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Infow("headless browser launched")
	return &ChromeRuntime{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
		logger:      log,
	}, nil
}

// NewPage opens a tab configured per opts.
func (r *ChromeRuntime) NewPage(ctx context.Context, opts ContextOptions) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(opts.Locale))
	}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to configure rendering context: %w", err)
	}

	return &chromePage{
		tabCtx: tabCtx,
		cancel: tabCancel,
	}, nil
}

// Stop shuts the browser down.
func (r *ChromeRuntime) Stop() error {
	r.cancel()
	r.allocCancel()
	return nil
}

type chromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab while honoring the caller's context.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Prefer the caller's error when it was the one that cancelled.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string, wait capture.WaitStrategy) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	switch wait {
	case capture.WaitDOMContentLoaded:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	case capture.WaitNetworkIdle:
		// Navigate already waits for the load event; give in-flight
		// requests a short settle window on top of it.
		actions = append(actions, chromedp.Sleep(500*time.Millisecond))
	}
	return p.run(ctx, actions...)
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var content string
	if err := p.run(ctx, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return content, nil
}

func (p *chromePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	actions := []chromedp.Action{
		chromedp.Evaluate(disableAnimationsCSS, nil),
	}
	if fullPage {
		actions = append(actions, chromedp.FullScreenshot(&buf, 90))
	} else {
		actions = append(actions, chromedp.CaptureScreenshot(&buf))
	}
	if err := p.run(ctx, actions...); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
