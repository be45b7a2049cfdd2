package journal

import (
	"time"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
)

// IngestInput carries one inbound event into the journal.
type IngestInput struct {
	MessageID string
	EventType string
	Payload   []byte
	// PublishedAt is the producer-reported publish time. Zero or future values
	// are clamped to the received timestamp at ingest.
	PublishedAt time.Time
}

// EventRecord is the transport shape of one journal row.
type EventRecord struct {
	RecordID           int64     `json:"record_id"`
	MessageID          string    `json:"message_id"`
	EventType          string    `json:"event_type"`
	Payload            []byte    `json:"payload,omitempty"`
	PublishedTimestamp time.Time `json:"published_timestamp"`
	ReceivedTimestamp  time.Time `json:"received_timestamp"`
	ProcessedTimestamp time.Time `json:"processed_timestamp"`
}

// IngestResult pairs the stored record with the dedup outcome. WasDuplicate
// reports redelivery; it is never an error.
type IngestResult struct {
	Record       *EventRecord `json:"record"`
	WasDuplicate bool         `json:"was_duplicate"`
}

// ListParams configures a forward scan of the journal.
type ListParams struct {
	Since     time.Time
	EventType string
	Limit     int
	Cursor    string
}

// ListResult holds one page of records plus the cursor that resumes the scan
// immediately after the last returned record.
type ListResult struct {
	Items  []EventRecord `json:"items"`
	Cursor string        `json:"cursor,omitempty"`
}

func FromModel(m *models.Message) *EventRecord {
	if m == nil {
		return nil
	}

	return &EventRecord{
		RecordID:           m.RecordID,
		MessageID:          m.MessageID,
		EventType:          m.EventType,
		Payload:            append([]byte(nil), m.Payload...),
		PublishedTimestamp: m.PublishedTimestamp,
		ReceivedTimestamp:  m.ReceivedTimestamp,
		ProcessedTimestamp: m.ProcessedTimestamp,
	}
}
