package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/dispatcher"
	"github.com/JakeFAU/cidades-pipeline/internal/extract"
)

// DispatchSuccessBody is reported when every stub was enqueued.
const DispatchSuccessBody = "Mensagens enviadas com sucesso!"

// failureBody is the JSON document returned to the trigger on failure.
type failureBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Directory scrapes the city directory and enqueues one stub per city.
type Directory struct {
	url        string
	fetcher    crawler.Fetcher
	extractor  *extract.DirectoryExtractor
	dispatcher *dispatcher.Dispatcher
	ids        crawler.IDGenerator
	logger     *zap.Logger
}

// NewDirectory builds the directory stage for the page at directoryURL.
func NewDirectory(
	directoryURL string,
	fetcher crawler.Fetcher,
	dispatch *dispatcher.Dispatcher,
	ids crawler.IDGenerator,
	logger *zap.Logger,
) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		url:        directoryURL,
		fetcher:    fetcher,
		extractor:  extract.NewDirectoryExtractor(logger.Named("extract")),
		dispatcher: dispatch,
		ids:        ids,
		logger:     logger,
	}
}

// Run fetches the directory, extracts the stubs and dispatches them. The
// outcome is reported as a Result rather than an error so triggers can relay
// it verbatim.
func (d *Directory) Run(ctx context.Context) crawler.Result {
	ctx, inv := startInvocation(ctx, d.ids, StageDirectory, d.logger)

	ack, err := d.run(ctx, inv)
	inv.finish(err)
	if err != nil {
		return failureResult(err)
	}
	inv.logger.Info("Stubs dispatched", zap.Int("sent", ack.Sent), zap.Int("failed", ack.Failed))
	return crawler.Result{StatusCode: http.StatusOK, Body: DispatchSuccessBody}
}

func (d *Directory) run(ctx context.Context, inv invocation) (dispatcher.Ack, error) {
	doc, err := d.fetcher.Fetch(ctx, d.url)
	if err != nil {
		return dispatcher.Ack{}, fmt.Errorf("fetch directory: %w", err)
	}
	stubs := d.extractor.Extract(doc)
	inv.logger.Info("Directory parsed", zap.String("url", d.url), zap.Int("stubs", len(stubs)))

	ack, err := d.dispatcher.Dispatch(ctx, stubs)
	if err != nil {
		return ack, fmt.Errorf("dispatch stubs: %w", err)
	}
	return ack, nil
}

func failureResult(err error) crawler.Result {
	body, mErr := json.Marshal(failureBody{Message: "Error occurred", Error: err.Error()})
	if mErr != nil {
		body = []byte(`{"message":"Error occurred"}`)
	}
	return crawler.Result{StatusCode: http.StatusInternalServerError, Body: string(body)}
}
