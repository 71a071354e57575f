package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/policy/ratelimit"
)

func TestFetchParsesDocument(t *testing.T) {
	t.Parallel()

	var gotUA, gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotTrace = r.Header.Get("X-Trace")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a class="link-cidades" title="Santos/SP" href="/cidades/sp/santos/1">Santos</a></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{Headers: http.Header{"X-Trace": {"yes"}}})
	doc, err := f.Fetch(context.Background(), srv.URL+"/cidades")
	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "yes", gotTrace)
	title, ok := doc.Find("a.link-cidades").Attr("title")
	require.True(t, ok)
	assert.Equal(t, "Santos/SP", title)
	require.NotNil(t, doc.Url)
	assert.Equal(t, "/cidades", doc.Url.Path)
}

func TestFetchRevisitsSameURL(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := New(Config{})
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, hits)
}

func TestFetchRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}).Fetch(context.Background(), "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrInvalidInput)
}

func TestFetchNonSuccessStatusIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrTransport)
	assert.NotErrorIs(t, err, crawler.ErrTimeout)

	var fetchErr *crawler.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrTimeout)
}

func TestFetchConnectionRefusedIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrTransport)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"X-Trace": {"yes"}}})
	var result page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/x")},
	})
	assert.Equal(t, http.StatusOK, result.statusCode)
	assert.Equal(t, "body", string(result.body))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
	assert.Equal(t, http.StatusBadGateway, result.statusCode)
}

func TestFetchWaitsOnLimiterOncePerCall(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := New(Config{Limiter: limiter})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrTransport)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), limiter.calls.Load())
}

func TestFetchLimiterCancellation(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(ratelimit.Config{RPS: 0.01, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://guia.example/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Config{Limiter: l}).Fetch(ctx, "https://guia.example/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestFetchCanceledMidRequestIsTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		select {
		case <-release:
		case <-time.After(50 * time.Millisecond):
		}
		http.Error(w, "late", http.StatusBadGateway)
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{})
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := f.Fetch(ctx, srv.URL)
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, crawler.ErrTimeout)

		var fetchErr *crawler.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Zero(t, fetchErr.StatusCode)
	}
}

func TestFetchHonorsRobotsWhenAsked(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /cidades\n"))
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := New(Config{RespectRobots: true}).Fetch(context.Background(), srv.URL+"/cidades")
	require.Error(t, err)

	_, err = New(Config{}).Fetch(context.Background(), srv.URL+"/cidades")
	require.NoError(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	assert.Equal(t, DefaultUserAgent, f.cfg.UserAgent)
	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)

	c := f.buildCollector(context.Background())
	assert.Equal(t, DefaultUserAgent, c.UserAgent)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return nil
}
