// Package worker runs the two pipeline stages: the directory scrape that
// dispatches city stubs and the per-stub detail enrichment.
package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/logging"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
)

// Stage names used in logs and metrics.
const (
	StageDirectory = "directory"
	StageDetail    = "detail"
)

const tracerName = "github.com/JakeFAU/cidades-pipeline/internal/worker"

// invocation carries the per-call identity shared by both stages.
type invocation struct {
	id      string
	stage   string
	started time.Time
	logger  *zap.Logger
	span    trace.Span
}

// startInvocation opens the stage span; the returned context carries it so
// outgoing notifications inherit the trace.
func startInvocation(
	ctx context.Context,
	ids crawler.IDGenerator,
	stage string,
	logger *zap.Logger,
) (context.Context, invocation) {
	id, err := ids.NewID()
	if err != nil {
		logger.Warn("Failed to generate invocation id", zap.Error(err))
		id = "unknown"
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, stage,
		trace.WithAttributes(attribute.String("invocation_id", id)))
	return ctx, invocation{
		id:      id,
		stage:   stage,
		started: time.Now(),
		logger:  logging.ForInvocation(logger, stage, id),
		span:    span,
	}
}

func (inv invocation) finish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	elapsed := time.Since(inv.started)
	metrics.ObserveInvocation(inv.stage, status, elapsed)
	defer inv.span.End()
	if err != nil {
		inv.span.RecordError(err)
		inv.span.SetStatus(codes.Error, err.Error())
		inv.logger.Error("Invocation failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	inv.logger.Info("Invocation finished", zap.Duration("elapsed", elapsed))
}

// resolve joins a site-relative href onto base. Absolute hrefs are returned as-is.
func resolve(base, href string) (string, error) {
	if strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: empty href", crawler.ErrInvalidInput)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: parse href %q: %w", crawler.ErrInvalidInput, href, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return "", fmt.Errorf("%w: base url %q must be absolute", crawler.ErrInvalidInput, base)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
