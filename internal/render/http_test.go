package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

func newTestRenderer(t *testing.T, maxBody string) *HTTPRenderer {
	t.Helper()
	r, err := NewHTTPRenderer(config.RenderConfig{
		TimeoutSecs: 5,
		UserAgent:   "leadgen-test",
		MaxBody:     maxBody,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

const gymPage = `<html lang="en"><head><title>Joe's Gym</title></head><body>` +
	`<p>Welcome to the friendliest gym in Fresno.</p></body></html>`

func TestHTTPRenderer_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(gymPage))
	}))
	defer srv.Close()

	r := newTestRenderer(t, "")
	page, err := r.Render(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "leadgen-test", gotUA)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, gymPage, page.HTML)
	assert.Equal(t, len(gymPage), page.Bytes)
	assert.Equal(t, srv.URL, page.FinalURL)
	assert.Equal(t, "http", page.Renderer)
}

func TestHTTPRenderer_DocumentReadyExcludesBodyTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(gymPage))
	}))
	defer srv.Close()

	page, err := newTestRenderer(t, "").Render(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Positive(t, page.DocumentReady)
	assert.GreaterOrEqual(t, page.Elapsed, 200*time.Millisecond)
	assert.Less(t, page.DocumentReady, page.Elapsed)
}

func TestHTTPRenderer_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(gymPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newTestRenderer(t, "").Render(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/home", page.FinalURL)
}

func TestHTTPRenderer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestRenderer(t, "").Render(context.Background(), srv.URL)
	require.Error(t, err)

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, model.FailureHTTP, re.Kind)
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.False(t, re.Transient())
}

func TestHTTPRenderer_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Attention Required"))
	}))
	defer srv.Close()

	_, err := newTestRenderer(t, "").Render(context.Background(), srv.URL)
	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, model.FailureHTTP, re.Kind)
	assert.Equal(t, BlockCloudflare, re.Block)
}

func TestHTTPRenderer_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestRenderer(t, "").Render(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, model.FailureTimeout, KindOf(err))
	assert.True(t, asRenderError(err).Transient())
}

func TestHTTPRenderer_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestRenderer(t, "").Render(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, model.FailureConnection, KindOf(err))
}

func TestHTTPRenderer_TruncatesBody(t *testing.T) {
	big := strings.Repeat("a", 4000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>" + big + "</body></html>"))
	}))
	defer srv.Close()

	page, err := newTestRenderer(t, "1KB").Render(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1000, page.Bytes)
}

func asRenderError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
