package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/clock"
	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/dispatcher"
	"github.com/JakeFAU/cidades-pipeline/internal/fanout"
	collyfetcher "github.com/JakeFAU/cidades-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/cidades-pipeline/internal/id/uuid"
	pubmemory "github.com/JakeFAU/cidades-pipeline/internal/publisher/memory"
	"github.com/JakeFAU/cidades-pipeline/internal/queue/memory"
	storemem "github.com/JakeFAU/cidades-pipeline/internal/storage/memory"
	"github.com/JakeFAU/cidades-pipeline/internal/writer"
)

// TestPipelineEndToEnd runs the directory stage and then one detail
// invocation per dispatched stub against the fake site.
func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	site, srv := newFakeSite(t)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	clk := clock.NewFixed(testNow)
	ids := uuid.New()
	q := memory.NewQueue(10)
	pub := pubmemory.New()
	store := storemem.NewBlobStore()

	directory := NewDirectory(srv.URL+"/cidades", fetcher,
		dispatcher.New(q, clk, dispatcher.ModeAbort, zap.NewNop()), ids, zap.NewNop())
	detail := NewDetail(DetailConfig{BaseURL: srv.URL}, fetcher,
		fanout.New(pub, fanout.DefaultSubject, zap.NewNop()), writer.New(store, zap.NewNop()),
		clk, ids, zap.NewNop())

	result := directory.Run(context.Background())
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, 5, q.Len())
	q.Close()

	var reports []Report
	err := q.Receive(context.Background(), func(ctx context.Context, body []byte) error {
		var stub crawler.StubMessage
		require.NoError(t, json.Unmarshal(body, &stub))
		assert.Equal(t, testNow.Format(time.RFC3339Nano), stub.Timestamp)

		report, err := detail.Process(ctx, body)
		require.NoError(t, err)
		reports = append(reports, report)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, reports, 5)

	for _, r := range reports {
		assert.Equal(t, 4, r.Hospedagem, r.Nome)
		assert.Equal(t, 4, r.Notifications, r.Nome)
		assert.True(t, r.Stored, r.Nome)
		assert.Equal(t, writer.Key(r.UF, r.Nome), r.Key)
	}
	assert.Equal(t, 2, site.count("/hospedagem/2/SP/sao-paulo/193"))
	assert.Len(t, pub.Messages(), 20)
	assert.Len(t, store.Keys(), 5)

	obj, ok := store.Get("cidades/estado=SP/cidade=sao-paulo/detalhes.json")
	require.True(t, ok)
	assert.Equal(t, writer.ContentType, obj.ContentType)

	// The two anchors without a title never reach the detail stage.
	assert.Equal(t, 0, site.count("/cidades/RJ/sem-titulo"))
	assert.Equal(t, 0, site.count("/cidades/BA/sem-titulo"))
}
