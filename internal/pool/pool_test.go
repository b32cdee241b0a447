package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
	"github.com/gurnoornatt/supergoodleadgen/internal/render"
	"github.com/gurnoornatt/supergoodleadgen/internal/resilience"
)

// scriptedRenderer answers each call with fn and tracks concurrency.
type scriptedRenderer struct {
	fn func(ctx context.Context, url string, call int) (*model.Page, error)

	mu     sync.Mutex
	calls  map[string]int
	active atomic.Int32
	peak   atomic.Int32
}

func newScripted(fn func(ctx context.Context, url string, call int) (*model.Page, error)) *scriptedRenderer {
	return &scriptedRenderer{fn: fn, calls: make(map[string]int)}
}

func (s *scriptedRenderer) Name() string { return "scripted" }
func (s *scriptedRenderer) Close() error { return nil }

func (s *scriptedRenderer) Render(ctx context.Context, url string) (*model.Page, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls[url]++
	call := s.calls[url]
	s.mu.Unlock()

	return s.fn(ctx, url, call)
}

func (s *scriptedRenderer) callCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func okPage(url string) *model.Page {
	return &model.Page{URL: url, FinalURL: url, StatusCode: 200, HTML: "<html></html>", Bytes: 13}
}

func testOptions(workers int) Options {
	return Options{
		Workers:        workers,
		AttemptTimeout: time.Second,
		Retry:          resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}
}

// collector records handled results keyed by job index.
type collector struct {
	mu      sync.Mutex
	results map[int]Result
	dupes   int
}

func newCollector() *collector { return &collector{results: make(map[int]Result)} }

func (c *collector) handle(_ context.Context, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[res.Job.Index]; ok {
		c.dupes++
	}
	c.results[res.Job.Index] = res
}

func jobsFor(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{Index: i, Record: &model.LeadRecord{
			IdentityKey: fmt.Sprintf("url:gym%d.test", i),
			Website:     fmt.Sprintf("https://gym%d.test", i),
		}}
	}
	return jobs
}

func TestRun_FiftyJobsFiveWorkers(t *testing.T) {
	r := newScripted(func(_ context.Context, url string, _ int) (*model.Page, error) {
		time.Sleep(2 * time.Millisecond)
		return okPage(url), nil
	})
	p := New(r, testOptions(5))
	c := newCollector()

	require.NoError(t, p.Run(context.Background(), jobsFor(50), c.handle))

	assert.Len(t, c.results, 50)
	assert.Zero(t, c.dupes)
	assert.LessOrEqual(t, r.peak.Load(), int32(5))
	for i := range 50 {
		assert.Equal(t, model.RenderRendered, c.results[i].Outcome.Status())
	}
}

func TestRun_SkipsJobsWithoutURL(t *testing.T) {
	r := newScripted(func(_ context.Context, url string, _ int) (*model.Page, error) {
		return okPage(url), nil
	})
	c := newCollector()

	err := New(r, testOptions(2)).Run(context.Background(), []Job{{Index: 0, Record: &model.LeadRecord{IdentityKey: "name:joes gym|"}}}, c.handle)
	require.NoError(t, err)

	require.Len(t, c.results, 1)
	assert.Equal(t, model.Skipped{}, c.results[0].Outcome)
	assert.Zero(t, r.callCount(""))
}

func TestRun_RetriesTransientOnce(t *testing.T) {
	r := newScripted(func(_ context.Context, url string, call int) (*model.Page, error) {
		if call == 1 {
			return nil, &render.Error{Kind: model.FailureConnection, URL: url}
		}
		return okPage(url), nil
	})
	c := newCollector()

	require.NoError(t, New(r, testOptions(1)).Run(context.Background(), jobsFor(1), c.handle))

	out, ok := c.results[0].Outcome.(model.Rendered)
	require.True(t, ok)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, r.callCount("https://gym0.test"))
}

func TestRun_FailsAfterRetry(t *testing.T) {
	r := newScripted(func(_ context.Context, url string, _ int) (*model.Page, error) {
		return nil, &render.Error{Kind: model.FailureDNS, URL: url}
	})
	c := newCollector()

	require.NoError(t, New(r, testOptions(1)).Run(context.Background(), jobsFor(1), c.handle))

	out, ok := c.results[0].Outcome.(model.Failed)
	require.True(t, ok)
	assert.Equal(t, model.FailureDNS, out.Kind)
	assert.Equal(t, 2, out.Attempts)
}

func TestRun_HTTPErrorNotRetried(t *testing.T) {
	r := newScripted(func(_ context.Context, url string, _ int) (*model.Page, error) {
		return nil, &render.Error{Kind: model.FailureHTTP, URL: url, Status: 500}
	})
	c := newCollector()

	require.NoError(t, New(r, testOptions(1)).Run(context.Background(), jobsFor(1), c.handle))

	out, ok := c.results[0].Outcome.(model.Failed)
	require.True(t, ok)
	assert.Equal(t, model.FailureHTTP, out.Kind)
	assert.Equal(t, 1, out.Attempts)
}

func TestRun_AttemptTimeout(t *testing.T) {
	r := newScripted(func(ctx context.Context, url string, _ int) (*model.Page, error) {
		<-ctx.Done()
		return nil, render.Classify(url, ctx.Err())
	})
	opts := testOptions(1)
	opts.AttemptTimeout = 20 * time.Millisecond
	c := newCollector()

	require.NoError(t, New(r, opts).Run(context.Background(), jobsFor(1), c.handle))

	out, ok := c.results[0].Outcome.(model.Failed)
	require.True(t, ok)
	assert.Equal(t, model.FailureTimeout, out.Kind)
	assert.Equal(t, 2, out.Attempts)
}

func TestRun_CancelLetsInflightFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 10)
	release := make(chan struct{})
	r := newScripted(func(ctx context.Context, url string, _ int) (*model.Page, error) {
		started <- struct{}{}
		<-release
		// the render context survives run cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return okPage(url), nil
	})
	c := newCollector()

	done := make(chan error, 1)
	go func() { done <- New(r, testOptions(2)).Run(ctx, jobsFor(10), c.handle) }()

	<-started
	<-started
	cancel()
	close(release)

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.GreaterOrEqual(t, len(c.results), 2)
	assert.Less(t, len(c.results), 10)
	for _, res := range c.results {
		assert.Equal(t, model.RenderRendered, res.Outcome.Status())
	}
}

func TestRun_StateTransitions(t *testing.T) {
	r := newScripted(func(_ context.Context, url string, _ int) (*model.Page, error) {
		return okPage(url), nil
	})
	var mu sync.Mutex
	var seen []model.RenderStatus
	opts := testOptions(1)
	opts.OnState = func(_ Job, s model.RenderStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}

	require.NoError(t, New(r, opts).Run(context.Background(), jobsFor(1), newCollector().handle))
	assert.Equal(t, []model.RenderStatus{model.RenderQueued, model.RenderRendering}, seen)
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.Default()
	opts := OptionsFrom(cfg)
	assert.Equal(t, 5, opts.Workers)
	assert.Equal(t, 15*time.Second, opts.AttemptTimeout)
	assert.Equal(t, 2, opts.Retry.MaxAttempts)
	assert.Equal(t, 5, New(nil, Options{}).Workers())
}
