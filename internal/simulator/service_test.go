package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

type fakePublisher struct {
	messages []*gcppubsub.Message
	results  []publishResult
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakePublishResult{id: "server-id"}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	id  string
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return f.id, f.err
}

func newSimulatorTestService(t *testing.T, pub publisher) *Service {
	t.Helper()
	return &Service{
		cfg: config.SimulatorConfig{
			Username: "simulator",
			DeviceID: "dev-test",
		},
		logg:           logger.New(logger.Options{ServiceName: "simulator-test"}),
		pub:            pub,
		spool:          newTestSpool(t),
		gen:            NewGenerator("dev-test", 1),
		publishTimeout: time.Second,
	}
}

func TestCyclePublishesReadingWithAttributes(t *testing.T) {
	pub := &fakePublisher{}
	svc := newSimulatorTestService(t, pub)

	reading := svc.gen.Next()
	svc.cycle(context.Background(), reading)

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	wantAttrs := map[string]string{
		"message_id":   reading.MessageID,
		"device_id":    "dev-test",
		"mode":         "sim",
		"event_type":   EventTypeTempReading,
		"username":     "simulator",
		"published_at": reading.TimestampUTC,
	}
	for key, want := range wantAttrs {
		if got := msg.Attributes[key]; got != want {
			t.Fatalf("attribute %s: got %q want %q", key, got, want)
		}
	}

	var payload Reading
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.Sequence != reading.Sequence || payload.TempC != reading.TempC {
		t.Fatalf("payload mismatch: %+v vs %+v", payload, reading)
	}

	remaining, err := svc.spool.Len()
	if err != nil || remaining != 0 {
		t.Fatalf("expected empty spool, len=%d err=%v", remaining, err)
	}
}

func TestCycleSpoolsReadingWhenPublishFails(t *testing.T) {
	pub := &fakePublisher{
		results: []publishResult{fakePublishResult{err: errors.New("broker unavailable")}},
	}
	svc := newSimulatorTestService(t, pub)

	svc.cycle(context.Background(), svc.gen.Next())

	remaining, err := svc.spool.Len()
	if err != nil {
		t.Fatalf("len returned error: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected reading spooled after failure, len=%d", remaining)
	}
}

func TestCycleDrainsSpoolAfterRecovery(t *testing.T) {
	pub := &fakePublisher{}
	svc := newSimulatorTestService(t, pub)

	first := spoolReading(1)
	second := spoolReading(2)
	if err := svc.spool.Append(first); err != nil {
		t.Fatalf("seeding spool: %v", err)
	}
	if err := svc.spool.Append(second); err != nil {
		t.Fatalf("seeding spool: %v", err)
	}

	live := svc.gen.Next()
	svc.cycle(context.Background(), live)

	if len(pub.messages) != 3 {
		t.Fatalf("expected live reading plus 2 drained, got %d messages", len(pub.messages))
	}
	if got := pub.messages[0].Attributes["message_id"]; got != live.MessageID {
		t.Fatalf("live reading should publish first, got %q", got)
	}
	if got := pub.messages[1].Attributes["message_id"]; got != first.MessageID {
		t.Fatalf("oldest spooled reading should drain first, got %q", got)
	}
	if got := pub.messages[2].Attributes["message_id"]; got != second.MessageID {
		t.Fatalf("second spooled reading out of order, got %q", got)
	}

	remaining, err := svc.spool.Len()
	if err != nil || remaining != 0 {
		t.Fatalf("expected drained spool, len=%d err=%v", remaining, err)
	}
}

func TestCycleRedeliversEveryNthReading(t *testing.T) {
	pub := &fakePublisher{}
	svc := newSimulatorTestService(t, pub)
	svc.cfg.RepeatEvery = 1

	reading := svc.gen.Next()
	svc.cycle(context.Background(), reading)

	if len(pub.messages) != 2 {
		t.Fatalf("expected original plus redelivery, got %d messages", len(pub.messages))
	}
	firstID := pub.messages[0].Attributes["message_id"]
	secondID := pub.messages[1].Attributes["message_id"]
	if firstID != reading.MessageID || secondID != reading.MessageID {
		t.Fatalf("redelivery must reuse the message id: %q vs %q", firstID, secondID)
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "simulator-test"})
	spool := newTestSpool(t)

	if _, err := NewService(ServiceParams{
		Config:    config.SimulatorConfig{Username: "  "},
		Logger:    logg,
		Publisher: &gcppubsub.Publisher{},
		Spool:     spool,
	}); err == nil {
		t.Fatal("expected error for missing username")
	}

	if _, err := NewService(ServiceParams{
		Config: config.SimulatorConfig{Username: "simulator"},
		Logger: logg,
		Spool:  spool,
	}); err == nil {
		t.Fatal("expected error for missing publisher")
	}

	svc, err := NewService(ServiceParams{
		Config:    config.SimulatorConfig{Username: "simulator", DeviceID: "dev-test"},
		Logger:    logg,
		Publisher: &gcppubsub.Publisher{},
		Spool:     spool,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.publishTimeout != defaultPublishTimeout {
		t.Fatalf("expected default publish timeout, got %v", svc.publishTimeout)
	}
	if svc.gen == nil {
		t.Fatal("expected generator to be defaulted")
	}
}
