package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
)

type authorizationGate interface {
	Check(ctx context.Context, username string, op enums.Operation) (bool, error)
}

type eventJournal interface {
	GetByKey(ctx context.Context, messageID, eventType string) (*journal.EventRecord, error)
	ListSince(ctx context.Context, params journal.ListParams) (*journal.ListResult, error)
}

// Service reads the journal on behalf of a username after checking query
// permission.
type Service interface {
	GetByKey(ctx context.Context, username, messageID, eventType string) (*journal.EventRecord, error)
	ListSince(ctx context.Context, username string, params journal.ListParams) (*journal.ListResult, error)
}

type service struct {
	gate    authorizationGate
	journal eventJournal
	metrics *metrics.JournalMetrics
}

// NewService builds the query service. Metrics may be nil.
func NewService(gate authorizationGate, eventStore eventJournal, journalMetrics *metrics.JournalMetrics) (Service, error) {
	if gate == nil {
		return nil, fmt.Errorf("authorization gate required")
	}
	if eventStore == nil {
		return nil, fmt.Errorf("event journal required")
	}
	return &service{gate: gate, journal: eventStore, metrics: journalMetrics}, nil
}

func (s *service) authorize(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}

	allowed, err := s.gate.Check(ctx, username, enums.OperationQuery)
	if err != nil {
		return err
	}
	if !allowed {
		s.metrics.IncDenied(enums.OperationQuery.String())
		return pkgerrors.New(pkgerrors.CodeForbidden, "query not permitted")
	}
	return nil
}

// GetByKey loads the record stored for one (message_id, event_type) pair.
func (s *service) GetByKey(ctx context.Context, username, messageID, eventType string) (*journal.EventRecord, error) {
	if err := s.authorize(ctx, username); err != nil {
		return nil, err
	}
	return s.journal.GetByKey(ctx, messageID, eventType)
}

// ListSince scans records received at or after params.Since.
func (s *service) ListSince(ctx context.Context, username string, params journal.ListParams) (*journal.ListResult, error) {
	if err := s.authorize(ctx, username); err != nil {
		return nil, err
	}
	return s.journal.ListSince(ctx, params)
}
