package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
	pkgpagination "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pagination"
)

type journalRepository interface {
	Insert(ctx context.Context, message *models.Message) (*models.Message, bool, error)
	FindByKey(ctx context.Context, messageID, eventType string) (*models.Message, error)
	List(ctx context.Context, opts listMessagesQuery) ([]models.Message, *pkgpagination.Cursor, error)
}

// Service exposes the event journal: dedup-aware ingestion plus keyed and
// windowed reads.
type Service interface {
	Ingest(ctx context.Context, input IngestInput) (*IngestResult, error)
	GetByKey(ctx context.Context, messageID, eventType string) (*EventRecord, error)
	ListSince(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo    journalRepository
	metrics *metrics.JournalMetrics
	now     func() time.Time
}

// NewService builds the journal service with the provided repository. Metrics
// may be nil.
func NewService(repo journalRepository, journalMetrics *metrics.JournalMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("journal repository required")
	}
	return &service{
		repo:    repo,
		metrics: journalMetrics,
		now:     time.Now,
	}, nil
}

// Ingest records one event. Redelivery of an already-stored
// (message_id, event_type) returns the original record untouched with
// WasDuplicate set; it never fails the call.
func (s *service) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	messageID := strings.TrimSpace(input.MessageID)
	eventType := strings.TrimSpace(input.EventType)
	if messageID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message_id required")
	}
	if eventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event_type required")
	}

	// Microsecond precision keeps the returned timestamps identical to what a
	// later read of the same row reports.
	received := s.now().UTC().Truncate(time.Microsecond)
	published := input.PublishedAt.UTC().Truncate(time.Microsecond)
	if input.PublishedAt.IsZero() || published.After(received) {
		published = received
	}

	start := s.now()
	stored, wasDuplicate, err := s.repo.Insert(ctx, &models.Message{
		MessageID:          messageID,
		EventType:          eventType,
		Payload:            input.Payload,
		PublishedTimestamp: published,
		ReceivedTimestamp:  received,
		ProcessedTimestamp: s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ingest event")
	}
	s.metrics.ObserveIngestDuration(eventType, s.now().Sub(start))

	if wasDuplicate {
		s.metrics.IncDuplicate(eventType)
	} else {
		s.metrics.IncIngested(eventType)
	}
	return &IngestResult{Record: FromModel(stored), WasDuplicate: wasDuplicate}, nil
}

// GetByKey loads the record stored for one (message_id, event_type) pair.
func (s *service) GetByKey(ctx context.Context, messageID, eventType string) (*EventRecord, error) {
	messageID = strings.TrimSpace(messageID)
	eventType = strings.TrimSpace(eventType)
	if messageID == "" || eventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message_id and event_type required")
	}

	stored, err := s.repo.FindByKey(ctx, messageID, eventType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return FromModel(stored), nil
}

// ListSince scans records received at or after params.Since in
// (received_timestamp, record_id) order. Passing the returned cursor back
// resumes the scan after the last record of the previous page.
func (s *service) ListSince(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listMessagesQuery{
		since:     params.Since.UTC(),
		eventType: strings.TrimSpace(params.EventType),
		limit:     params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events")
	}

	items := make([]EventRecord, len(rows))
	for i := range rows {
		items[i] = *FromModel(&rows[i])
	}

	nextCursor := ""
	if next != nil {
		nextCursor = pkgpagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}
