package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
)

// Sink receives each journal record the monitor tails.
type Sink interface {
	Name() string
	Emit(ctx context.Context, record journal.EventRecord) error
}

// LogSink appends one change-log line per record in the
// "<timestamp> <source-tag> key=value..." shape.
type LogSink struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	tag    string
}

// NewLogSink writes change-log lines to the provided writer.
func NewLogSink(out io.Writer, sourceTag string) (*LogSink, error) {
	if out == nil {
		return nil, errors.New("log sink writer required")
	}
	sourceTag = strings.TrimSpace(sourceTag)
	if sourceTag == "" {
		return nil, errors.New("log sink source tag required")
	}
	return &LogSink{out: out, tag: sourceTag}, nil
}

// NewFileLogSink opens (or creates) the log file in append mode.
func NewFileLogSink(path, sourceTag string) (*LogSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("log sink path required")
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}
	sink, err := NewLogSink(file, sourceTag)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	sink.closer = file
	return sink, nil
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Emit(ctx context.Context, record journal.EventRecord) error {
	line := formatLogLine(s.tag, record)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, line+"\n"); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}
	return nil
}

// Close releases the underlying file when the sink owns one.
func (s *LogSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func formatLogLine(tag string, record journal.EventRecord) string {
	parts := []string{
		record.ReceivedTimestamp.UTC().Format(time.RFC3339),
		tag,
		"record_id=" + strconv.FormatInt(record.RecordID, 10),
		"message_id=" + record.MessageID,
		"event_type=" + record.EventType,
	}
	parts = append(parts, payloadPairs(record.Payload)...)
	return strings.Join(parts, " ")
}

// payloadPairs flattens scalar payload fields into sorted key=value tokens.
// Fields already carried as line columns are skipped.
func payloadPairs(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}

	keys := make([]string, 0, len(body))
	for key := range body {
		if key == "message_id" || key == "event_type" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		switch value := body[key].(type) {
		case string:
			pairs = append(pairs, key+"="+value)
		case float64:
			pairs = append(pairs, key+"="+strconv.FormatFloat(value, 'f', -1, 64))
		case bool:
			pairs = append(pairs, key+"="+strconv.FormatBool(value))
		}
	}
	return pairs
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQuerySink streams journal records into an analytics table.
type BigQuerySink struct {
	client tableInserter
	table  string
	now    func() time.Time
}

// NewBigQuerySink builds a sink that inserts one row per record.
func NewBigQuerySink(client tableInserter, table string) (*BigQuerySink, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("bigquery table name required")
	}
	return &BigQuerySink{client: client, table: table, now: time.Now}, nil
}

func (s *BigQuerySink) Name() string { return "bigquery" }

func (s *BigQuerySink) Emit(ctx context.Context, record journal.EventRecord) error {
	row := buildJournalRow(record, s.now().UTC())
	if err := s.client.InsertRows(ctx, s.table, []any{row}); err != nil {
		return fmt.Errorf("insert journal row: %w", err)
	}
	return nil
}

type journalEventRow struct {
	RecordID           int64              `bigquery:"record_id"`
	MessageID          string             `bigquery:"message_id"`
	EventType          string             `bigquery:"event_type"`
	Payload            cbigquery.NullJSON `bigquery:"payload"`
	PublishedTimestamp time.Time          `bigquery:"published_timestamp"`
	ReceivedTimestamp  time.Time          `bigquery:"received_timestamp"`
	ProcessedTimestamp time.Time          `bigquery:"processed_timestamp"`
	ExportedAt         time.Time          `bigquery:"exported_at"`
}

func buildJournalRow(record journal.EventRecord, exportedAt time.Time) *journalEventRow {
	payloadJSON := cbigquery.NullJSON{}
	if len(record.Payload) > 0 && json.Valid(record.Payload) {
		payloadJSON.Valid = true
		payloadJSON.JSONVal = string(record.Payload)
	}

	return &journalEventRow{
		RecordID:           record.RecordID,
		MessageID:          record.MessageID,
		EventType:          record.EventType,
		Payload:            payloadJSON,
		PublishedTimestamp: record.PublishedTimestamp,
		ReceivedTimestamp:  record.ReceivedTimestamp,
		ProcessedTimestamp: record.ProcessedTimestamp,
		ExportedAt:         exportedAt,
	}
}
