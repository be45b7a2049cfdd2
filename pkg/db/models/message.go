package models

import "time"

// Message is one journaled event occurrence. Redeliveries of the same
// (message_id, event_type) pair never create additional rows, so IsDuplicate
// is false on every persisted record; the flag exists so exports carry the
// same shape as ingest results.
type Message struct {
	RecordID           int64     `gorm:"column:message_record_id;primaryKey;autoIncrement;index:ix_messages_received_record,priority:2"`
	MessageID          string    `gorm:"column:message_id;type:text;not null;uniqueIndex:ux_messages_message_id_event_type,priority:1"`
	EventType          string    `gorm:"column:event_type;type:text;not null;uniqueIndex:ux_messages_message_id_event_type,priority:2"`
	Payload            []byte    `gorm:"column:payload"`
	PublishedTimestamp time.Time `gorm:"column:published_timestamp;not null"`
	ReceivedTimestamp  time.Time `gorm:"column:received_timestamp;not null;index:ix_messages_received_record,priority:1"`
	ProcessedTimestamp time.Time `gorm:"column:processed_timestamp;not null"`
	IsDuplicate        bool      `gorm:"column:is_duplicate;not null;default:false"`
}
