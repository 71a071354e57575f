// Package collyfetcher implements crawler.Fetcher using gocolly and goquery.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultUserAgent = "GuiaTurUserAgent"
	DefaultTimeout   = 10 * time.Second
)

// Limiter paces requests before they are sent.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior. Limiter is optional.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
	Limiter   Limiter

	// RespectRobots makes colly consult robots.txt before each visit.
	RespectRobots bool
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// page is the raw response captured by the collector hooks.
type page struct {
	url        *url.URL
	statusCode int
	body       []byte
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Pagination re-fetches the same listing URLs across invocations.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch GETs rawURL once and parses the body as HTML. Failures are returned
// to the caller; there is no internal retry.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("fetch: url is required: %w", crawler.ErrInvalidInput)
	}
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return nil, classify(rawURL, 0, err)
		}
	}
	return f.fetchOnce(ctx, rawURL)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*goquery.Document, error) {
	var (
		result   page
		fetchErr error
	)
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		if ctx.Err() != nil {
			// The visit may still be running and writing result.
			return nil, classify(rawURL, 0, err)
		}
		return nil, classify(rawURL, result.statusCode, err)
	}
	if result.statusCode < http.StatusOK || result.statusCode >= http.StatusMultipleChoices {
		return nil, &crawler.FetchError{
			URL:        rawURL,
			StatusCode: result.statusCode,
			Kind:       crawler.ErrTransport,
			Err:        errors.New(http.StatusText(result.statusCode)),
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.body))
	if err != nil {
		return nil, &crawler.FetchError{
			URL:        rawURL,
			StatusCode: result.statusCode,
			Kind:       crawler.ErrTransport,
			Err:        fmt.Errorf("parse html: %w", err),
		}
	}
	doc.Url = result.url
	return doc, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.Context = ctx
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *page, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = page{
			url:        r.Request.URL,
			statusCode: r.StatusCode,
			body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.statusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	for key, values := range f.cfg.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func classify(rawURL string, statusCode int, err error) error {
	kind := crawler.ErrTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = crawler.ErrTimeout
	}
	return &crawler.FetchError{URL: rawURL, StatusCode: statusCode, Kind: kind, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
