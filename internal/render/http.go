package render

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

const defaultMaxBody = 2 << 20

// HTTPRenderer fetches the HTML document with net/http. Subresources are
// never requested, so resource blocking is implicit.
type HTTPRenderer struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewHTTPRenderer creates an HTTPRenderer from render configuration.
func NewHTTPRenderer(cfg config.RenderConfig) (*HTTPRenderer, error) {
	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return nil, err
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPRenderer{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       30 * time.Second,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return eris.New("render: too many redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
	}, nil
}

func (h *HTTPRenderer) Name() string { return "http" }

func (h *HTTPRenderer) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// Render fetches url and returns the document. Non-2xx responses and anti-bot
// interstitials are reported as http_error.
func (h *HTTPRenderer) Render(ctx context.Context, url string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: model.FailureConnection, URL: url, Err: err}
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, Classify(url, err)
	}
	ready := time.Since(start)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody))
	if err != nil {
		return nil, Classify(url, eris.Wrap(err, "render: read body"))
	}
	elapsed := time.Since(start)

	if block := DetectBlock(resp, body); block != BlockNone {
		return nil, &Error{Kind: model.FailureHTTP, URL: url, Status: resp.StatusCode, Block: block}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: model.FailureHTTP, URL: url, Status: resp.StatusCode}
	}

	return &model.Page{
		URL:           url,
		FinalURL:      resp.Request.URL.String(),
		StatusCode:    resp.StatusCode,
		HTML:          string(body),
		Bytes:         len(body),
		Elapsed:       elapsed,
		DocumentReady: ready,
		Renderer:      h.Name(),
	}, nil
}
