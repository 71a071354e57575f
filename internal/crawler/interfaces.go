package crawler

import (
	"context"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher retrieves a URL and returns the parsed document tree.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Queue accepts serialized stub messages for the detail stage.
type Queue interface {
	Enqueue(ctx context.Context, body []byte) error
}

// MessageHandler processes one delivered message. A non-nil error asks the
// transport to redeliver.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer delivers queued messages to a handler until the context ends.
type Consumer interface {
	Receive(ctx context.Context, handler MessageHandler) error
}

// Publisher pushes enrichment notifications to a topic.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload string) (string, error)
}

// BlobStore writes objects by key and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordIndex keeps a queryable row per stored city record.
type RecordIndex interface {
	Upsert(ctx context.Context, entry IndexEntry) error
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces invocation IDs.
type IDGenerator interface {
	NewID() (string, error)
}
