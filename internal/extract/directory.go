package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// Directory page constants.
const (
	// CityLinkSelector matches anchors whose class list carries the city link marker.
	CityLinkSelector = "a.link-cidades"
	// MaxCities caps the stubs produced per directory fetch.
	MaxCities = 5
)

// DirectoryExtractor parses the directory page into city stubs.
type DirectoryExtractor struct {
	logger *zap.Logger
}

// NewDirectoryExtractor constructs a DirectoryExtractor.
func NewDirectoryExtractor(logger *zap.Logger) *DirectoryExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryExtractor{logger: logger}
}

// Extract returns at most MaxCities stubs in document order. Anchors without a
// title, without an href, or with a malformed title are skipped.
func (e *DirectoryExtractor) Extract(doc *goquery.Document) []crawler.CityStub {
	stubs := make([]crawler.CityStub, 0, MaxCities)
	doc.Find(CityLinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title, ok := s.Attr("title")
		if !ok {
			return true
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		stub, err := parseCityAnchor(title, href)
		if err != nil {
			e.logger.Debug("skipping city anchor", zap.String("title", title), zap.Error(err))
			return true
		}
		stubs = append(stubs, stub)
		return len(stubs) < MaxCities
	})
	return stubs
}

// parseCityAnchor splits a "<name>/<uf>" title into a stub.
func parseCityAnchor(title, href string) (crawler.CityStub, error) {
	parts := strings.Split(title, "/")
	if len(parts) != 2 {
		return crawler.CityStub{}, fmt.Errorf("title %q: want exactly one '/': %w", title, crawler.ErrExtractionAssumption)
	}
	nome := strings.TrimSpace(parts[0])
	uf := strings.TrimSpace(parts[1])
	if nome == "" || uf == "" {
		return crawler.CityStub{}, fmt.Errorf("title %q: empty name or state: %w", title, crawler.ErrExtractionAssumption)
	}
	if href == "" {
		return crawler.CityStub{}, fmt.Errorf("title %q: missing href: %w", title, crawler.ErrExtractionAssumption)
	}
	return crawler.CityStub{UF: uf, Nome: nome, Href: href}, nil
}
