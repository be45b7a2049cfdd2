package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
)

func setupJournalTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	messages := `
CREATE TABLE IF NOT EXISTS messages (
  message_record_id INTEGER PRIMARY KEY AUTOINCREMENT,
  message_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload BLOB,
  published_timestamp DATETIME NOT NULL,
  received_timestamp DATETIME NOT NULL,
  processed_timestamp DATETIME NOT NULL,
  is_duplicate INTEGER NOT NULL DEFAULT 0
);`
	uniqueKey := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_messages_message_id_event_type
  ON messages (message_id, event_type);`
	receivedIdx := `
CREATE INDEX IF NOT EXISTS ix_messages_received_record
  ON messages (received_timestamp, message_record_id);`
	require.NoError(t, db.Exec(messages).Error)
	require.NoError(t, db.Exec(uniqueKey).Error)
	require.NoError(t, db.Exec(receivedIdx).Error)
	return db
}

func newMessage(messageID, eventType string, payload []byte, received time.Time) *models.Message {
	return &models.Message{
		MessageID:          messageID,
		EventType:          eventType,
		Payload:            payload,
		PublishedTimestamp: received,
		ReceivedTimestamp:  received,
		ProcessedTimestamp: received,
	}
}

func TestRepositoryInsertDeduplicatesByKey(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	key := uuid.NewString()
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, dup, err := repo.Insert(ctx, newMessage(key, "temp.reading", []byte(`{"temp_c":22.5}`), received))
	require.NoError(t, err)
	require.False(t, dup)
	require.Greater(t, first.RecordID, int64(0))
	assert.False(t, first.IsDuplicate)

	second, dup, err := repo.Insert(ctx, newMessage(key, "temp.reading", []byte(`{"temp_c":99.9}`), received.Add(time.Minute)))
	require.NoError(t, err)
	require.True(t, dup)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.Equal(t, []byte(`{"temp_c":22.5}`), second.Payload)
	assert.True(t, second.ReceivedTimestamp.Equal(received))
}

func TestRepositoryInsertDistinctEventTypesShareMessageID(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	key := uuid.NewString()
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, dup, err := repo.Insert(ctx, newMessage(key, "temp.reading", nil, received))
	require.NoError(t, err)
	require.False(t, dup)

	second, dup, err := repo.Insert(ctx, newMessage(key, "humidity.reading", nil, received))
	require.NoError(t, err)
	require.False(t, dup)
	assert.Greater(t, second.RecordID, first.RecordID)
}

func TestRepositoryFindByKeyNotFound(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByKey(context.Background(), uuid.NewString(), "temp.reading")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryListWindowOrderingAndCursor(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	eventType := "list.cursor." + uuid.NewString()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Two rows share a received timestamp so ordering falls back to record id.
	ids := make([]int64, 0, 5)
	for _, received := range []time.Time{base, base.Add(time.Second), base.Add(time.Second), base.Add(2 * time.Second), base.Add(3 * time.Second)} {
		stored, dup, err := repo.Insert(ctx, newMessage(uuid.NewString(), eventType, nil, received))
		require.NoError(t, err)
		require.False(t, dup)
		ids = append(ids, stored.RecordID)
	}

	page1, cursor, err := repo.List(ctx, listMessagesQuery{since: base, eventType: eventType, limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, cursor)
	assert.Equal(t, ids[0], page1[0].RecordID)
	assert.Equal(t, ids[1], page1[1].RecordID)

	page2, cursor, err := repo.List(ctx, listMessagesQuery{since: base, eventType: eventType, limit: 2, cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotNil(t, cursor)
	assert.Equal(t, ids[2], page2[0].RecordID)
	assert.Equal(t, ids[3], page2[1].RecordID)

	page3, cursor, err := repo.List(ctx, listMessagesQuery{since: base, eventType: eventType, limit: 2, cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[4], page3[0].RecordID)
	assert.Nil(t, cursor)

	windowed, cursor, err := repo.List(ctx, listMessagesQuery{since: base.Add(time.Second), eventType: eventType, limit: 10})
	require.NoError(t, err)
	require.Len(t, windowed, 4)
	assert.Nil(t, cursor)
	assert.Equal(t, ids[1], windowed[0].RecordID)
}

func TestRepositoryInsertConcurrentSameKey(t *testing.T) {
	db := setupJournalTestDB(t)

	// A single connection serializes writers; SQLite otherwise reports busy
	// errors instead of resolving the conflict.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	key := uuid.NewString()
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	const writers = 8
	type outcome struct {
		recordID int64
		dup      bool
		err      error
	}
	results := make(chan outcome, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, dup, err := repo.Insert(context.Background(), newMessage(key, "temp.reading", nil, received))
			if err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{recordID: stored.RecordID, dup: dup}
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	var recordID int64
	for res := range results {
		require.NoError(t, res.err)
		require.Greater(t, res.recordID, int64(0))
		if recordID == 0 {
			recordID = res.recordID
		}
		assert.Equal(t, recordID, res.recordID)
		if !res.dup {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
