package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject audit lines are published on.
const DefaultSubject = "semremodel.audit"

// Publisher is the subset of *nats.Conn the NATS reporter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSReporter publishes entries as JSON. Publish failures are logged and
// otherwise ignored.
type NATSReporter struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewNATSReporter creates a reporter publishing on subject, or DefaultSubject
// when empty.
func NewNATSReporter(pub Publisher, subject string, logger *slog.Logger) *NATSReporter {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSReporter{pub: pub, subject: subject, logger: logger}
}

// Report publishes the entry.
func (r *NATSReporter) Report(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Warn("Failed to encode audit entry", "concept", e.ConceptID, "error", err)
		return
	}
	if err := r.pub.Publish(r.subject, data); err != nil {
		r.logger.Warn("Failed to publish audit entry",
			"subject", r.subject,
			"concept", e.ConceptID,
			"error", err)
	}
}

// Connect dials a NATS server for audit publishing.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("semremodel"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
