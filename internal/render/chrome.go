package render

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// ChromeRenderer renders pages in one shared headless Chrome process, one tab
// per render.
type ChromeRenderer struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	blocked     []string
	timeout     time.Duration
}

// NewChromeRenderer starts a headless browser. The browser lives until Close.
func NewChromeRenderer(ctx context.Context, cfg config.RenderConfig) (*ChromeRenderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	// The browser outlives any single run cancellation; renders in flight
	// finish before Close is called.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, eris.Wrap(err, "render: start chrome")
	}

	r := &ChromeRenderer{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancel:      cancel,
		timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
	}
	if cfg.BlockResources {
		r.blocked = cfg.BlockedPatterns
	}
	return r, nil
}

func (c *ChromeRenderer) Name() string { return "chrome" }

func (c *ChromeRenderer) Close() error {
	c.cancel()
	c.cancelAlloc()
	return nil
}

// Render opens url in a new tab with images, fonts and stylesheets blocked
// and returns the rendered DOM.
func (c *ChromeRenderer) Render(ctx context.Context, url string) (*model.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()

	// Tie the tab to the caller's deadline.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, c.timeout)
		defer cancel()
	}

	var status, ready atomic.Int64
	start := time.Now()
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			if status.CompareAndSwap(0, e.Response.Status) {
				ready.Store(int64(time.Since(start)))
			}
		}
	})

	var html, finalURL string
	actions := []chromedp.Action{network.Enable()}
	if len(c.blocked) > 0 {
		actions = append(actions, network.SetBlockedURLs(c.blocked))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			err = eris.Wrap(ctx.Err(), err.Error())
		} else if tabCtx.Err() != nil {
			err = context.DeadlineExceeded
		}
		zap.L().Debug("chrome render failed", zap.String("url", url), zap.Error(err))
		return nil, Classify(url, err)
	}
	elapsed := time.Since(start)

	code := int(status.Load())
	if code >= 400 {
		return nil, &Error{Kind: model.FailureHTTP, URL: url, Status: code}
	}
	if code == 0 {
		code = 200
	}

	return &model.Page{
		URL:           url,
		FinalURL:      finalURL,
		StatusCode:    code,
		HTML:          html,
		Bytes:         len(html),
		Elapsed:       elapsed,
		DocumentReady: time.Duration(ready.Load()),
		Renderer:      c.Name(),
	}, nil
}
