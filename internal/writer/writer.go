// Package writer persists city detail records under partitioned object keys.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
)

// ContentType is set on every stored record.
const ContentType = "application/json"

// Key derives the object key for a city. Values are used verbatim.
func Key(uf, cidade string) string {
	return fmt.Sprintf("cidades/estado=%s/cidade=%s/detalhes.json", uf, cidade)
}

// Outcome describes what a Write call did.
type Outcome struct {
	Key    string
	URI    string
	Stored bool
}

// Writer encodes records and puts them into the blob store.
type Writer struct {
	store  crawler.BlobStore
	hasher crawler.Hasher
	index  crawler.RecordIndex
	logger *zap.Logger
}

// Option customizes a Writer.
type Option func(*Writer)

// WithIndex upserts an index row after every successful put.
func WithIndex(index crawler.RecordIndex) Option {
	return func(w *Writer) { w.index = index }
}

// WithHasher sets the digest recorded in index rows.
func WithHasher(h crawler.Hasher) Option {
	return func(w *Writer) { w.hasher = h }
}

// New builds a Writer around the blob store.
func New(store crawler.BlobStore, logger *zap.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{store: store, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Encode renders the record as JSON with non-ASCII and HTML characters left as-is.
func Encode(record crawler.CityDetailRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write stores the record under Key(uf, cidade), replacing any previous
// object. Store and index failures are logged and reported through
// Outcome.Stored; only invalid input is returned as an error.
func (w *Writer) Write(ctx context.Context, uf, cidade string, record crawler.CityDetailRecord) (Outcome, error) {
	if strings.TrimSpace(uf) == "" || strings.TrimSpace(cidade) == "" {
		return Outcome{}, fmt.Errorf("%w: uf and cidade are required", crawler.ErrInvalidInput)
	}
	key := Key(uf, cidade)
	out := Outcome{Key: key}

	data, err := Encode(record)
	if err != nil {
		return out, fmt.Errorf("%w: %w", crawler.ErrInvalidInput, err)
	}

	uri, err := w.store.PutObject(ctx, key, ContentType, bytes.NewReader(data))
	if err != nil {
		metrics.ObserveRecordWrite("error")
		w.logger.Error("Failed to store city record",
			zap.String("key", key),
			zap.Error(fmt.Errorf("%w: %w", crawler.ErrStorage, err)))
		return out, nil
	}
	out.URI = uri
	out.Stored = true
	metrics.ObserveRecordWrite("success")
	w.logger.Info("City record stored", zap.String("key", key), zap.String("uri", uri), zap.Int("bytes", len(data)))

	if w.index != nil {
		w.upsertIndex(ctx, uf, cidade, out, data, record.Timestamp)
	}
	return out, nil
}

func (w *Writer) upsertIndex(ctx context.Context, uf, cidade string, out Outcome, data []byte, ts string) {
	entry := crawler.IndexEntry{
		UF:          uf,
		Nome:        cidade,
		Key:         out.Key,
		URI:         out.URI,
		GeneratedAt: ts,
	}
	if w.hasher != nil {
		sum, err := w.hasher.Hash(data)
		if err != nil {
			w.logger.Warn("Failed to hash city record", zap.String("key", out.Key), zap.Error(err))
		}
		entry.ContentHash = sum
	}
	if err := w.index.Upsert(ctx, entry); err != nil {
		w.logger.Error("Failed to index city record", zap.String("key", out.Key), zap.Error(err))
	}
}
