package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/extract"
	"github.com/JakeFAU/cidades-pipeline/internal/fanout"
	"github.com/JakeFAU/cidades-pipeline/internal/paginate"
	"github.com/JakeFAU/cidades-pipeline/internal/writer"
)

// DetailConfig controls the detail stage.
type DetailConfig struct {
	// BaseURL is the site root that stub hrefs and listing paths hang off.
	BaseURL string
	// ChunkWidth bounds description segments.
	ChunkWidth int
	// ItemSelector and PageCountSelector drive the listing crawl.
	ItemSelector      string
	PageCountSelector string
}

// Report summarizes one processed stub.
type Report struct {
	InvocationID  string `json:"invocation_id"`
	UF            string `json:"uf"`
	Nome          string `json:"nome"`
	Key           string `json:"key"`
	URI           string `json:"uri,omitempty"`
	Stored        bool   `json:"stored"`
	Hospedagem    int    `json:"hospedagem"`
	Gastronomia   int    `json:"gastronomia"`
	Notifications int    `json:"notifications"`
}

// Detail enriches one city stub into a stored detail record.
type Detail struct {
	cfg       DetailConfig
	fetcher   crawler.Fetcher
	extractor *extract.DetailExtractor
	pages     *paginate.Crawler
	fanout    *fanout.Fanout
	writer    *writer.Writer
	clock     crawler.Clock
	ids       crawler.IDGenerator
	logger    *zap.Logger
}

// NewDetail builds the detail stage.
func NewDetail(
	cfg DetailConfig,
	fetcher crawler.Fetcher,
	notify *fanout.Fanout,
	records *writer.Writer,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	logger *zap.Logger,
) *Detail {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ItemSelector == "" {
		cfg.ItemSelector = paginate.DefaultItemSelector
	}
	if cfg.PageCountSelector == "" {
		cfg.PageCountSelector = paginate.DefaultPageCountSelector
	}
	return &Detail{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extract.NewDetailExtractor(cfg.ChunkWidth),
		pages:     paginate.New(fetcher, logger.Named("paginate")),
		fanout:    notify,
		writer:    records,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// DecodeStub parses and validates a queue message.
func DecodeStub(body []byte) (crawler.StubMessage, error) {
	var msg crawler.StubMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: decode stub message: %w", crawler.ErrInvalidInput, err)
	}
	var missing []string
	if strings.TrimSpace(msg.UF) == "" {
		missing = append(missing, "uf")
	}
	if strings.TrimSpace(msg.Nome) == "" {
		missing = append(missing, "nome")
	}
	if strings.TrimSpace(msg.Href) == "" {
		missing = append(missing, "href")
	}
	if len(missing) > 0 {
		return msg, fmt.Errorf("%w: stub message missing %s", crawler.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return msg, nil
}

// Process runs fetch, extract, listing crawl, fan-out and store for one
// message, in that order. Fetch failures abort the invocation. Publish and
// store failures are logged and reflected in the Report only.
func (w *Detail) Process(ctx context.Context, body []byte) (Report, error) {
	ctx, inv := startInvocation(ctx, w.ids, StageDetail, w.logger)
	report, err := w.process(ctx, inv, body)
	report.InvocationID = inv.id
	inv.finish(err)
	return report, err
}

func (w *Detail) process(ctx context.Context, inv invocation, body []byte) (Report, error) {
	msg, err := DecodeStub(body)
	if err != nil {
		return Report{}, err
	}
	report := Report{UF: msg.UF, Nome: msg.Nome}
	logger := inv.logger.With(zap.String("uf", msg.UF), zap.String("nome", msg.Nome))

	pageURL, err := resolve(w.cfg.BaseURL, msg.Href)
	if err != nil {
		return report, err
	}
	categories := paginate.Categories()
	firstPages := make([]string, len(categories))
	for i, category := range categories {
		if firstPages[i], err = paginate.ListingURL(w.cfg.BaseURL, category, msg.Href); err != nil {
			return report, err
		}
	}

	doc, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return report, fmt.Errorf("fetch city page: %w", err)
	}
	detail := w.extractor.Extract(doc)

	listings := make(map[string][]string, 2)
	for i, category := range categories {
		links, err := w.pages.Crawl(ctx, firstPages[i], w.cfg.ItemSelector, w.cfg.PageCountSelector)
		if err != nil {
			return report, fmt.Errorf("crawl %s listing: %w", category, err)
		}
		listings[category] = links
		logger.Debug("Listing crawled", zap.String("category", category), zap.Int("links", len(links)))
	}

	record := crawler.NewCityDetailRecord(
		detail,
		listings[crawler.FieldHospedagem],
		listings[crawler.FieldGastronomia],
		w.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	report.Hospedagem = len(record.Hospedagem)
	report.Gastronomia = len(record.Gastronomia)

	report.Notifications = w.fanout.Publish(ctx, record)

	out, err := w.writer.Write(ctx, msg.UF, msg.Nome, record)
	if err != nil {
		return report, fmt.Errorf("write record: %w", err)
	}
	report.Key, report.URI, report.Stored = out.Key, out.URI, out.Stored

	logger.Info("City enriched",
		zap.Int("hospedagem", report.Hospedagem),
		zap.Int("gastronomia", report.Gastronomia),
		zap.Int("notifications", report.Notifications),
		zap.String("key", report.Key),
		zap.Bool("stored", report.Stored))
	return report, nil
}

// Handle adapts Process to crawler.MessageHandler. Messages that can never
// succeed (malformed payloads) are dropped so the transport does not
// redeliver them; every other failure is returned for redelivery.
func (w *Detail) Handle(ctx context.Context, body []byte) error {
	_, err := w.Process(ctx, body)
	if err != nil && errors.Is(err, crawler.ErrInvalidInput) {
		w.logger.Warn("Dropping unprocessable message", zap.Error(err))
		return nil
	}
	return err
}

// Run pulls messages from consumer until ctx ends.
func (w *Detail) Run(ctx context.Context, consumer crawler.Consumer) error {
	w.logger.Info("Detail worker started")
	if err := consumer.Receive(ctx, w.Handle); err != nil {
		return fmt.Errorf("receive stubs: %w", err)
	}
	w.logger.Info("Detail worker stopped")
	return nil
}
