package simulator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestSpool(t *testing.T) *Spool {
	t.Helper()
	spool, err := NewSpool(filepath.Join(t.TempDir(), "spool.jsonl"))
	if err != nil {
		t.Fatalf("creating spool: %v", err)
	}
	return spool
}

func spoolReading(sequence int64) Reading {
	return Reading{
		MessageID:    "msg-" + string(rune('a'+sequence)),
		DeviceID:     "dev-test",
		Mode:         "sim",
		TempC:        21.5,
		TempF:        70.7,
		TimestampUTC: "2026-03-01T12:00:00Z",
		Sequence:     sequence,
		EventType:    EventTypeTempReading,
	}
}

func TestSpoolAppendAndDrainInOrder(t *testing.T) {
	spool := newTestSpool(t)

	for i := int64(1); i <= 3; i++ {
		if err := spool.Append(spoolReading(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var drained []Reading
	flushed, err := spool.Drain(func(r Reading) error {
		drained = append(drained, r)
		return nil
	})
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if flushed != 3 || len(drained) != 3 {
		t.Fatalf("expected 3 flushed readings, got %d (%d collected)", flushed, len(drained))
	}
	for i, r := range drained {
		if r.Sequence != int64(i+1) {
			t.Fatalf("drain out of order at %d: sequence %d", i, r.Sequence)
		}
	}

	if _, err := os.Stat(spool.path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected spool file removed after drain, stat err: %v", err)
	}
}

func TestSpoolDrainKeepsRemainderOnFailure(t *testing.T) {
	spool := newTestSpool(t)

	for i := int64(1); i <= 3; i++ {
		if err := spool.Append(spoolReading(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	flushErr := errors.New("broker unavailable")
	flushed, err := spool.Drain(func(r Reading) error {
		if r.Sequence == 2 {
			return flushErr
		}
		return nil
	})
	if !errors.Is(err, flushErr) {
		t.Fatalf("expected flush error, got %v", err)
	}
	if flushed != 1 {
		t.Fatalf("expected 1 flushed reading, got %d", flushed)
	}

	remaining, err := spool.Len()
	if err != nil {
		t.Fatalf("len returned error: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 readings still spooled, got %d", remaining)
	}

	var drained []Reading
	flushed, err = spool.Drain(func(r Reading) error {
		drained = append(drained, r)
		return nil
	})
	if err != nil || flushed != 2 {
		t.Fatalf("second drain: flushed=%d err=%v", flushed, err)
	}
	if drained[0].Sequence != 2 || drained[1].Sequence != 3 {
		t.Fatalf("remainder out of order: %d, %d", drained[0].Sequence, drained[1].Sequence)
	}
}

func TestSpoolDrainWithoutFileIsNoop(t *testing.T) {
	spool := newTestSpool(t)

	flushed, err := spool.Drain(func(Reading) error {
		t.Fatal("flush should not be called")
		return nil
	})
	if err != nil || flushed != 0 {
		t.Fatalf("expected empty drain, flushed=%d err=%v", flushed, err)
	}
}

func TestNewSpoolRequiresPath(t *testing.T) {
	if _, err := NewSpool("  "); err == nil {
		t.Fatal("expected error for blank spool path")
	}
}
