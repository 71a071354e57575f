// Package dispatcher turns extracted city stubs into queue messages.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
)

// Mode controls how Dispatch reacts to an enqueue failure.
type Mode string

const (
	// ModeAbort stops at the first failed enqueue.
	ModeAbort Mode = "abort"
	// ModePartial keeps going and reports how many stubs failed.
	ModePartial Mode = "partial"
)

// ParseMode maps a config value to a Mode. Empty selects ModeAbort.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAbort:
		return ModeAbort, nil
	case ModePartial:
		return ModePartial, nil
	default:
		return "", fmt.Errorf("%w: unknown dispatch mode %q", crawler.ErrInvalidInput, s)
	}
}

// Ack reports how many stubs were enqueued.
type Ack struct {
	Sent   int
	Failed int
}

// DispatchError is returned when an enqueue failure stops a dispatch.
type DispatchError struct {
	Sent   int
	Failed int
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch stopped after %d sent, %d failed: %v", e.Sent, e.Failed, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatcher stamps stubs and enqueues them one message per stub.
type Dispatcher struct {
	queue  crawler.Queue
	clock  crawler.Clock
	mode   Mode
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(queue crawler.Queue, clock crawler.Clock, mode Mode, logger *zap.Logger) *Dispatcher {
	if mode == "" {
		mode = ModeAbort
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:  queue,
		clock:  clock,
		mode:   mode,
		logger: logger,
	}
}

// Dispatch enqueues stubs in order. Each message is the stub plus the
// dispatch timestamp in RFC 3339 form.
func (d *Dispatcher) Dispatch(ctx context.Context, stubs []crawler.CityStub) (Ack, error) {
	var (
		ack     Ack
		lastErr error
	)
	for _, stub := range stubs {
		msg := crawler.StubMessage{
			CityStub:  stub,
			Timestamp: d.clock.Now().UTC().Format(time.RFC3339Nano),
		}
		body, err := json.Marshal(msg)
		if err == nil {
			err = d.queue.Enqueue(ctx, body)
		}
		if err != nil {
			ack.Failed++
			lastErr = err
			metrics.ObserveDispatch("error")
			d.logger.Error("Failed to enqueue stub",
				zap.String("uf", stub.UF),
				zap.String("nome", stub.Nome),
				zap.Error(err))
			if d.mode == ModeAbort {
				return ack, &DispatchError{Sent: ack.Sent, Failed: ack.Failed, Err: err}
			}
			continue
		}
		ack.Sent++
		metrics.ObserveDispatch("success")
		d.logger.Debug("Stub enqueued", zap.String("uf", stub.UF), zap.String("nome", stub.Nome))
	}

	if ack.Failed > 0 && ack.Sent == 0 {
		return ack, &DispatchError{Sent: 0, Failed: ack.Failed, Err: lastErr}
	}
	return ack, nil
}
