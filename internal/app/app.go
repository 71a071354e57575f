// Package app builds the long-lived clients and pipeline stages from
// configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/cidades-pipeline/internal/clock"
	"github.com/JakeFAU/cidades-pipeline/internal/config"
	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/dispatcher"
	"github.com/JakeFAU/cidades-pipeline/internal/fanout"
	collyfetcher "github.com/JakeFAU/cidades-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/cidades-pipeline/internal/hash/sha256"
	"github.com/JakeFAU/cidades-pipeline/internal/id/uuid"
	"github.com/JakeFAU/cidades-pipeline/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/cidades-pipeline/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/cidades-pipeline/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/cidades-pipeline/internal/queue/memory"
	pubsubqueue "github.com/JakeFAU/cidades-pipeline/internal/queue/pubsub"
	"github.com/JakeFAU/cidades-pipeline/internal/storage/gcs"
	"github.com/JakeFAU/cidades-pipeline/internal/storage/local"
	storemem "github.com/JakeFAU/cidades-pipeline/internal/storage/memory"
	"github.com/JakeFAU/cidades-pipeline/internal/storage/postgres"
	"github.com/JakeFAU/cidades-pipeline/internal/worker"
	"github.com/JakeFAU/cidades-pipeline/internal/writer"
)

// consumerQueue is what a queue backend offers: both ends of the stub transport.
type consumerQueue interface {
	crawler.Queue
	crawler.Consumer
}

// App holds the clients and stages shared by every command. It is built once
// at startup and handed to the commands; nothing here is global.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Queue     consumerQueue
	Publisher crawler.Publisher
	Store     crawler.BlobStore
	Index     *postgres.CityIndex
	Directory *worker.Directory
	Detail    *worker.Detail

	pubsubClients map[string]*pubsub.Client
	closers       []func() error
}

type options struct {
	pubsubOpts  []option.ClientOption
	storageOpts []option.ClientOption
	clock       crawler.Clock
}

// Option customizes client construction.
type Option func(*options)

// WithPubSubOptions passes client options to every Pub/Sub client, e.g. an
// emulator endpoint.
func WithPubSubOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.pubsubOpts = append(o.pubsubOpts, opts...) }
}

// WithStorageOptions passes client options to the GCS client.
func WithStorageOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.storageOpts = append(o.storageOpts, opts...) }
}

// WithClock replaces the wall clock used for message and record timestamps.
func WithClock(c crawler.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New validates cfg and connects every configured backend. It fails fast:
// any client that cannot be built closes the ones already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		pubsubClients: map[string]*pubsub.Client{},
	}
	if err := a.init(ctx, o); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("Cleanup after failed start", zap.Error(closeErr))
		}
		return nil, err
	}
	logger.Info("Application services initialized",
		zap.String("queue", cfg.Queue.Backend),
		zap.String("enrichment", cfg.Enrichment.Backend),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("index", a.Index != nil))
	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	var err error
	if a.Queue, err = a.buildQueue(ctx, o); err != nil {
		return err
	}
	if a.Publisher, err = a.buildPublisher(ctx, o); err != nil {
		return err
	}
	if a.Store, err = a.buildStore(ctx, o); err != nil {
		return err
	}
	if a.Config.Database.DSN != "" {
		if a.Index, err = a.buildIndex(ctx); err != nil {
			return err
		}
	}

	mode, err := dispatcher.ParseMode(a.Config.Dispatch.Mode)
	if err != nil {
		return err
	}
	src := a.Config.Source
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     src.UserAgent,
		Timeout:       a.Config.FetchTimeout(),
		Limiter:       ratelimit.New(ratelimit.Config{RPS: src.RequestsPerSecond, Burst: src.Burst}),
		RespectRobots: src.RespectRobots,
	})
	ids := uuid.New()

	a.Directory = worker.NewDirectory(
		a.Config.DirectoryURL(),
		fetcher,
		dispatcher.New(a.Queue, o.clock, mode, a.Logger.Named("dispatcher")),
		ids,
		a.Logger.Named("directory"),
	)

	writerOpts := []writer.Option{writer.WithHasher(sha256.New())}
	if a.Index != nil {
		writerOpts = append(writerOpts, writer.WithIndex(a.Index))
	}
	a.Detail = worker.NewDetail(
		worker.DetailConfig{BaseURL: a.Config.Source.BaseURL, ChunkWidth: a.Config.Chunk.Width},
		fetcher,
		fanout.New(a.Publisher, a.Config.Enrichment.Subject, a.Logger.Named("fanout")),
		writer.New(a.Store, a.Logger.Named("writer"), writerOpts...),
		o.clock,
		ids,
		a.Logger.Named("detail"),
	)
	return nil
}

func (a *App) pubsubClient(ctx context.Context, projectID string, o options) (*pubsub.Client, error) {
	if c, ok := a.pubsubClients[projectID]; ok {
		return c, nil
	}
	c, err := pubsub.NewClient(ctx, projectID, o.pubsubOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client for %q: %w", projectID, err)
	}
	a.pubsubClients[projectID] = c
	a.closers = append(a.closers, c.Close)
	return c, nil
}

func existingTopic(ctx context.Context, client *pubsub.Client, id string) (*pubsub.Topic, error) {
	topic := client.Topic(id)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pubsub topic %q: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: pubsub topic %q does not exist", crawler.ErrInvalidInput, id)
	}
	return topic, nil
}

func (a *App) buildQueue(ctx context.Context, o options) (consumerQueue, error) {
	cfg := a.Config.Queue
	if cfg.Backend == config.BackendMemory {
		q := queuememory.NewQueue(cfg.Capacity)
		a.closers = append(a.closers, func() error { q.Close(); return nil })
		return q, nil
	}

	client, err := a.pubsubClient(ctx, cfg.ProjectID, o)
	if err != nil {
		return nil, err
	}
	topic, err := existingTopic(ctx, client, cfg.Topic)
	if err != nil {
		return nil, err
	}
	var sub *pubsub.Subscription
	if cfg.Subscription != "" {
		sub = client.Subscription(cfg.Subscription)
		if cfg.MaxOutstanding > 0 {
			sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
		}
	}
	q := pubsubqueue.New(topic, sub, a.Logger.Named("queue"))
	a.closers = append(a.closers, func() error { q.Close(); return nil })
	return q, nil
}

func (a *App) buildPublisher(ctx context.Context, o options) (crawler.Publisher, error) {
	cfg := a.Config.Enrichment
	if cfg.Backend == config.BackendMemory {
		return pubmemory.New(), nil
	}
	client, err := a.pubsubClient(ctx, a.Config.EnrichmentProject(), o)
	if err != nil {
		return nil, err
	}
	topic, err := existingTopic(ctx, client, cfg.Topic)
	if err != nil {
		return nil, err
	}
	pub := pubsubpublisher.New(topic)
	a.closers = append(a.closers, func() error { pub.Close(); return nil })
	return pub, nil
}

func (a *App) buildStore(ctx context.Context, o options) (crawler.BlobStore, error) {
	cfg := a.Config.Storage
	switch cfg.Backend {
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx, o.storageOpts...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, err
		}
		if err := store.CheckBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return storemem.NewBlobStore(), nil
	}
}

func (a *App) buildIndex(ctx context.Context) (*postgres.CityIndex, error) {
	idx, err := postgres.NewCityIndex(ctx, postgres.CityIndexConfig{
		DSN:      a.Config.Database.DSN,
		Table:    a.Config.Database.Table,
		MaxConns: a.Config.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init city index: %w", err)
	}
	a.closers = append(a.closers, func() error { idx.Close(); return nil })
	if err := idx.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Close releases every client in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close app: %w", err)
	}
	return nil
}
