package journal

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pagination"
)

// uniqueMessageEventConstraint names the index that enforces one row per
// (message_id, event_type). The insert path relies on it to settle concurrent
// writers of the same key.
const uniqueMessageEventConstraint = "ux_messages_message_id_event_type"

// Repository exposes persistence for journal rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a journal repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a new row unless its (message_id, event_type) already exists.
// On conflict the existing row is returned unchanged with duplicate = true;
// the database never holds two rows for the same key.
func (r *Repository) Insert(ctx context.Context, message *models.Message) (*models.Message, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "event_type"}},
			DoNothing: true,
		}).
		Create(message)
	if result.Error != nil {
		if db.IsUniqueViolation(result.Error, uniqueMessageEventConstraint) {
			existing, err := r.FindByKey(ctx, message.MessageID, message.EventType)
			if err != nil {
				return nil, false, err
			}
			return existing, true, nil
		}
		return nil, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.FindByKey(ctx, message.MessageID, message.EventType)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	return message, false, nil
}

// FindByKey loads the row for one (message_id, event_type) pair.
func (r *Repository) FindByKey(ctx context.Context, messageID, eventType string) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND event_type = ?", messageID, eventType).
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

type listMessagesQuery struct {
	since     time.Time
	eventType string
	limit     int
	cursor    *pagination.Cursor
}

// List returns rows received at or after the window start, ordered by
// (received_timestamp, message_record_id) ascending. The returned cursor
// points at the last row of the page so a follow-up scan resumes exactly
// after it.
func (r *Repository) List(ctx context.Context, opts listMessagesQuery) ([]models.Message, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(opts.limit)
	normalized := pagination.NormalizeLimit(opts.limit)

	query := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("received_timestamp >= ?", opts.since)
	if opts.eventType != "" {
		query = query.Where("event_type = ?", opts.eventType)
	}
	if opts.cursor != nil {
		query = query.Where(
			"(received_timestamp > ?) OR (received_timestamp = ? AND message_record_id > ?)",
			opts.cursor.ReceivedAt, opts.cursor.ReceivedAt, opts.cursor.RecordID,
		)
	}

	var rows []models.Message
	err := query.
		Order("received_timestamp ASC").
		Order("message_record_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		return rows, &pagination.Cursor{ReceivedAt: last.ReceivedTimestamp, RecordID: last.RecordID}, nil
	}
	return rows, nil, nil
}
