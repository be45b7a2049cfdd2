package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
)

type authorizationGate interface {
	Check(ctx context.Context, username string, op enums.Operation) (bool, error)
}

type eventJournal interface {
	Ingest(ctx context.Context, input journal.IngestInput) (*journal.IngestResult, error)
}

// PublishInput carries one producer delivery plus the identity it arrived
// under.
type PublishInput struct {
	Username    string
	MessageID   string
	EventType   string
	Payload     []byte
	PublishedAt time.Time
}

// Service accepts producer deliveries after checking publish permission.
type Service interface {
	Publish(ctx context.Context, input PublishInput) (*journal.IngestResult, error)
}

type service struct {
	gate    authorizationGate
	journal eventJournal
	metrics *metrics.JournalMetrics
}

// NewService builds the ingestion service. Metrics may be nil.
func NewService(gate authorizationGate, eventStore eventJournal, journalMetrics *metrics.JournalMetrics) (Service, error) {
	if gate == nil {
		return nil, fmt.Errorf("authorization gate required")
	}
	if eventStore == nil {
		return nil, fmt.Errorf("event journal required")
	}
	return &service{gate: gate, journal: eventStore, metrics: journalMetrics}, nil
}

// Publish records one delivery for the given username. Denied callers never
// reach the journal; redelivery of a stored key succeeds with the duplicate
// flag set.
func (s *service) Publish(ctx context.Context, input PublishInput) (*journal.IngestResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}

	allowed, err := s.gate.Check(ctx, username, enums.OperationPublish)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.IncDenied(enums.OperationPublish.String())
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "publish not permitted")
	}

	return s.journal.Ingest(ctx, journal.IngestInput{
		MessageID:   input.MessageID,
		EventType:   input.EventType,
		Payload:     input.Payload,
		PublishedAt: input.PublishedAt,
	})
}
