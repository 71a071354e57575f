package paginate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// listingPaths maps a sub-listing category to its path prefix on the site.
var listingPaths = map[string]string{
	crawler.FieldHospedagem:  "hospedagem/2",
	crawler.FieldGastronomia: "gastronomia/3",
}

// ListingURL derives the first listing page for a category from a city href
// ending in "<uf>/<nome>/<cod>", e.g. /cidades/SP/sao-paulo/193 becomes
// <base>/hospedagem/2/SP/sao-paulo/193.
func ListingURL(baseURL, category, cityHref string) (string, error) {
	prefix, ok := listingPaths[category]
	if !ok {
		return "", fmt.Errorf("unknown listing category %q: %w", category, crawler.ErrInvalidInput)
	}
	path := cityHref
	if u, err := url.Parse(cityHref); err == nil && u.Path != "" {
		path = u.Path
	}
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 3 {
		return "", fmt.Errorf("city href %q: want <uf>/<nome>/<cod> suffix: %w", cityHref, crawler.ErrInvalidInput)
	}
	tail := strings.Join(segments[len(segments)-3:], "/")
	return strings.TrimRight(baseURL, "/") + "/" + prefix + "/" + tail, nil
}

// Categories lists the sub-listings crawled for every city, in crawl order.
func Categories() []string {
	return []string{crawler.FieldHospedagem, crawler.FieldGastronomia}
}
