package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/roles"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
)

type stubGate struct {
	allowed bool
	err     error
	lastOp  enums.Operation
}

func (s *stubGate) Check(ctx context.Context, username string, op enums.Operation) (bool, error) {
	s.lastOp = op
	if s.err != nil {
		return false, s.err
	}
	return s.allowed, nil
}

type stubJournal struct {
	record   *journal.EventRecord
	list     *journal.ListResult
	err      error
	getCalls int
}

func (s *stubJournal) GetByKey(ctx context.Context, messageID, eventType string) (*journal.EventRecord, error) {
	s.getCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubJournal) ListSince(ctx context.Context, params journal.ListParams) (*journal.ListResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func TestGetByKeyDeniedWithoutJournalCall(t *testing.T) {
	gate := &stubGate{allowed: false}
	store := &stubJournal{}
	svc, err := NewService(gate, store, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if _, err := svc.GetByKey(context.Background(), "ghost", "m1", "temp.reading"); err == nil {
		t.Fatal("expected forbidden error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
	if gate.lastOp != enums.OperationQuery {
		t.Fatalf("expected query check, got %s", gate.lastOp)
	}
	if store.getCalls != 0 {
		t.Fatalf("expected no journal call, got %d", store.getCalls)
	}
}

func TestGetByKeyDelegates(t *testing.T) {
	record := &journal.EventRecord{RecordID: 2, MessageID: "m1", EventType: "temp.reading"}
	svc, err := NewService(&stubGate{allowed: true}, &stubJournal{record: record}, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	got, err := svc.GetByKey(context.Background(), "v1", "m1", "temp.reading")
	if err != nil {
		t.Fatalf("GetByKey returned error: %v", err)
	}
	if got.RecordID != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestListSinceRequiresUsername(t *testing.T) {
	svc, err := NewService(&stubGate{allowed: true}, &stubJournal{}, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if _, err := svc.ListSince(context.Background(), "  ", journal.ListParams{}); err == nil {
		t.Fatal("expected validation error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func setupQueryScenarioDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
  message_record_id INTEGER PRIMARY KEY AUTOINCREMENT,
  message_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload BLOB,
  published_timestamp DATETIME NOT NULL,
  received_timestamp DATETIME NOT NULL,
  processed_timestamp DATETIME NOT NULL,
  is_duplicate INTEGER NOT NULL DEFAULT 0
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_messages_message_id_event_type
  ON messages (message_id, event_type);`,
		`CREATE TABLE IF NOT EXISTS user_roles (
  user_id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL,
  role_type TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_roles_username
  ON user_roles (username);`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func TestQueryAgainstRegistryAndJournal(t *testing.T) {
	db := setupQueryScenarioDB(t)
	ctx := context.Background()

	rolesRepo := roles.NewRepository(db)
	gate, err := roles.NewGate(rolesRepo)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	journalRepo := journal.NewRepository(db)
	journalSvc, err := journal.NewService(journalRepo, nil)
	if err != nil {
		t.Fatalf("journal.NewService failed: %v", err)
	}
	svc, err := NewService(gate, journalSvc, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	viewer := "v1-" + uuid.NewString()
	if _, err := rolesRepo.Upsert(ctx, viewer, enums.RoleTypeViewer); err != nil {
		t.Fatalf("seed viewer: %v", err)
	}

	eventType := "query.scenario." + uuid.NewString()
	messageID := uuid.NewString()
	ingested, err := journalSvc.Ingest(ctx, journal.IngestInput{MessageID: messageID, EventType: eventType, Payload: []byte("22.5C")})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}

	record, err := svc.GetByKey(ctx, viewer, messageID, eventType)
	if err != nil {
		t.Fatalf("GetByKey returned error: %v", err)
	}
	if record.RecordID != ingested.Record.RecordID {
		t.Fatalf("expected record %d, got %d", ingested.Record.RecordID, record.RecordID)
	}

	listed, err := svc.ListSince(ctx, viewer, journal.ListParams{
		Since:     time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		EventType: eventType,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("ListSince returned error: %v", err)
	}
	if len(listed.Items) != 1 || listed.Items[0].RecordID != ingested.Record.RecordID {
		t.Fatalf("unexpected listing: %+v", listed.Items)
	}

	if _, err := svc.GetByKey(ctx, "ghost-"+uuid.NewString(), messageID, eventType); err == nil {
		t.Fatal("expected unknown user denied")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}
