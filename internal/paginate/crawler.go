// Package paginate walks paginated sub-listing pages and flattens their item links.
package paginate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
)

// Default selectors for the tourism directory listings.
const (
	DefaultItemSelector      = "div.col-xs-10.text-left > a"
	DefaultPageCountSelector = "ul.pagination > li"
)

// pageControlOffset accounts for the "previous" and "next" pagination controls.
const pageControlOffset = 2

// Crawler discovers the page count of a listing and walks its pages in order.
type Crawler struct {
	fetcher crawler.Fetcher
	logger  *zap.Logger
}

// New constructs a Crawler.
func New(fetcher crawler.Fetcher, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, logger: logger}
}

// TotalPages returns the number of listing pages advertised by doc.
func TotalPages(doc *goquery.Document, pageCountSelector string) int {
	return doc.Find(pageCountSelector).Length() - pageControlOffset
}

// Crawl collects the href of every itemSelector match across all pages of the
// listing at firstPageURL. The first page is always consumed before the page
// count is checked, so a listing without pagination controls still yields its
// first page of links. Page n > 0 is fetched from firstPageURL + "/n". Links
// are returned in page order without deduplication.
func (c *Crawler) Crawl(ctx context.Context, firstPageURL, itemSelector, pageCountSelector string) ([]string, error) {
	doc, err := c.fetcher.Fetch(ctx, firstPageURL)
	if err != nil {
		metrics.ObservePageFetch("error")
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	metrics.ObservePageFetch("success")

	totalPages := TotalPages(doc, pageCountSelector)
	base := strings.TrimRight(firstPageURL, "/")
	c.logger.Debug("listing pagination discovered",
		zap.String("url", firstPageURL),
		zap.Int("total_pages", totalPages),
	)

	links := []string{}
	currentPage := 0
	for {
		links = append(links, collectLinks(doc, itemSelector)...)
		currentPage++
		if currentPage >= totalPages {
			break
		}
		pageURL := base + "/" + strconv.Itoa(currentPage)
		doc, err = c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			metrics.ObservePageFetch("error")
			return nil, fmt.Errorf("fetch page %d: %w", currentPage, err)
		}
		metrics.ObservePageFetch("success")
	}

	c.logger.Debug("listing crawled",
		zap.String("url", firstPageURL),
		zap.Int("pages", currentPage),
		zap.Int("links", len(links)),
	)
	return links, nil
}

func collectLinks(doc *goquery.Document, itemSelector string) []string {
	var links []string
	doc.Find(itemSelector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links
}
