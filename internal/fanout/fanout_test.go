package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/publisher/memory"
)

func TestPublishOneMessagePerAllowListedLink(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	record := crawler.NewCityDetailRecord(
		crawler.CityDetail{
			Subtitulo:    []string{"Capital paulista"},
			Acomodacoes:  []string{"/hospedagem/2/SP/sao-paulo/193"},
			Restaurantes: []string{"/gastronomia/3/SP/sao-paulo/193"},
		},
		[]string{"/a", "/b"},
		[]string{"/c"},
		"2024-05-17T12:30:00Z",
	)

	sent := New(pub, "", zap.NewNop()).Publish(context.Background(), record)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"/a", "/b", "/c"}, pub.Payloads())
	for _, m := range pub.Messages() {
		assert.Equal(t, DefaultSubject, m.Subject)
	}
	assert.NotContains(t, pub.Payloads(), "Capital paulista")
	assert.NotContains(t, pub.Payloads(), "/hospedagem/2/SP/sao-paulo/193")
}

func TestPublishNoLinks(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	record := crawler.NewCityDetailRecord(crawler.CityDetail{}, nil, nil, "")
	assert.Equal(t, 0, New(pub, "", nil).Publish(context.Background(), record))
	assert.Empty(t, pub.Messages())
}

func TestPublishFailureIsCountedNotPropagated(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	pub.FailWhen(func(payload string) error {
		if payload == "/b" {
			return errors.New("topic unavailable")
		}
		return nil
	})
	record := crawler.NewCityDetailRecord(crawler.CityDetail{}, []string{"/a", "/b"}, []string{"/c"}, "")

	sent := New(pub, "Custom", zap.NewNop()).Publish(context.Background(), record)
	require.Equal(t, 2, sent)
	assert.Equal(t, []string{"/a", "/c"}, pub.Payloads())
	assert.Equal(t, "Custom", pub.Messages()[0].Subject)
}
