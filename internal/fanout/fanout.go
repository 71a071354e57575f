// Package fanout publishes one enrichment notification per sub-listing link.
package fanout

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
)

// DefaultSubject labels every enrichment notification.
const DefaultSubject = "Dados da Cidade"

// Fields lists the record fields whose links are announced downstream.
var Fields = []string{crawler.FieldHospedagem, crawler.FieldGastronomia}

// Fanout announces sub-listing links to the enrichment topic.
type Fanout struct {
	publisher crawler.Publisher
	subject   string
	logger    *zap.Logger
}

// New builds a Fanout. An empty subject selects DefaultSubject.
func New(publisher crawler.Publisher, subject string, logger *zap.Logger) *Fanout {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{publisher: publisher, subject: subject, logger: logger}
}

// Publish sends each link of the allow-listed fields as its own message and
// returns how many publishes succeeded. Failures are logged and skipped.
func (f *Fanout) Publish(ctx context.Context, record crawler.CityDetailRecord) int {
	sent := 0
	for _, field := range Fields {
		links, _ := record.Field(field)
		for _, link := range links {
			id, err := f.publisher.Publish(ctx, f.subject, link)
			if err != nil {
				metrics.ObserveNotification(field, "error")
				f.logger.Error("Failed to publish notification",
					zap.String("field", field),
					zap.String("link", link),
					zap.Error(err))
				continue
			}
			sent++
			metrics.ObserveNotification(field, "success")
			f.logger.Debug("Notification published",
				zap.String("field", field),
				zap.String("message_id", id))
		}
	}
	return sent
}
