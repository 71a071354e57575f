package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

func TestListingURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		base     string
		category string
		href     string
		want     string
	}{
		{"relative href", "https://www.guiadoturismobrasil.com", crawler.FieldHospedagem, "/cidades/SP/sao-paulo/193", "https://www.guiadoturismobrasil.com/hospedagem/2/SP/sao-paulo/193"},
		{"absolute href", "https://www.guiadoturismobrasil.com/", crawler.FieldGastronomia, "https://www.guiadoturismobrasil.com/cidade/SP/sao-paulo/193", "https://www.guiadoturismobrasil.com/gastronomia/3/SP/sao-paulo/193"},
		{"trailing slash", "https://guia.test", crawler.FieldHospedagem, "/cidade/RJ/paraty/55/", "https://guia.test/hospedagem/2/RJ/paraty/55"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ListingURL(tc.base, tc.category, tc.href)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListingURLErrors(t *testing.T) {
	t.Parallel()

	_, err := ListingURL("https://guia.test", "museus", "/cidade/SP/sao-paulo/193")
	assert.ErrorIs(t, err, crawler.ErrInvalidInput)

	_, err = ListingURL("https://guia.test", crawler.FieldHospedagem, "/sao-paulo/193")
	assert.ErrorIs(t, err, crawler.ErrInvalidInput)
}

func TestCategoriesOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{crawler.FieldHospedagem, crawler.FieldGastronomia}, Categories())
}
