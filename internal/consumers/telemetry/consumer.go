package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/ingest"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

const telemetryConsumerName = "ingest-worker"

type eventPublisher interface {
	Publish(ctx context.Context, input ingest.PublishInput) (*journal.IngestResult, error)
}

type deliveryGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, messageID, eventType string) (bool, error)
	Delete(ctx context.Context, consumer, messageID, eventType string) error
}

// Service consumes telemetry deliveries from Pub/Sub and records them in the
// journal under the producer's identity.
type Service struct {
	subscription *gcppubsub.Subscriber
	publisher    eventPublisher
	guard        deliveryGuard
	logg         *logger.Logger
}

// NewService creates a telemetry worker service.
func NewService(subscription *gcppubsub.Subscriber, publisher eventPublisher, guard deliveryGuard, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("telemetry subscription is required")
	}
	if publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	if guard == nil {
		return nil, errors.New("delivery guard is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		publisher:    publisher,
		guard:        guard,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming telemetry messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type envelope struct {
	MessageID   string
	EventType   string
	Username    string
	PublishedAt time.Time
	Payload     []byte
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"pubsub_id": msg.ID}
	logCtx := s.logg.WithFields(ctx, fields)

	env, err := s.buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid telemetry envelope")
		return processResult{}
	}
	fields["message_id"] = env.MessageID
	fields["event_type"] = env.EventType
	fields["username"] = env.Username
	logCtx = s.logg.WithFields(ctx, fields)

	already, err := s.guard.CheckAndMarkProcessed(logCtx, telemetryConsumerName, env.MessageID, env.EventType)
	if err != nil {
		s.logg.Error(logCtx, "delivery guard check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "delivery already processed")
		return processResult{}
	}

	result, err := s.publisher.Publish(logCtx, ingest.PublishInput{
		Username:    env.Username,
		MessageID:   env.MessageID,
		EventType:   env.EventType,
		Payload:     env.Payload,
		PublishedAt: env.PublishedAt,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
			// Keep the processed marker: redelivering a rejected event can
			// never succeed.
			fields["error"] = err.Error()
			s.logg.Warn(s.logg.WithFields(ctx, fields), "telemetry event rejected")
			return processResult{}
		}
		s.logg.Error(logCtx, "record telemetry event failed", err)
		_ = s.guard.Delete(logCtx, telemetryConsumerName, env.MessageID, env.EventType)
		return processResult{nack: true}
	}

	fields["record_id"] = result.Record.RecordID
	fields["was_duplicate"] = result.WasDuplicate
	s.logg.Info(s.logg.WithFields(ctx, fields), "telemetry event recorded")
	return processResult{}
}

func (s *Service) buildEnvelope(msg *gcppubsub.Message) (*envelope, error) {
	attr := func(key string) string {
		return strings.TrimSpace(msg.Attributes[key])
	}

	messageID := attr("message_id")
	eventType := attr("event_type")
	publishedAt := attr("published_at")

	// Producers that publish bare payloads carry the key fields in the JSON
	// body instead of attributes.
	if messageID == "" || eventType == "" || publishedAt == "" {
		var body map[string]any
		if err := json.Unmarshal(msg.Data, &body); err == nil {
			if messageID == "" {
				messageID = stringField(body, "message_id")
			}
			if eventType == "" {
				eventType = stringField(body, "event_type")
			}
			if publishedAt == "" {
				publishedAt = stringField(body, "timestamp_utc")
			}
		}
	}

	if messageID == "" {
		return nil, errors.New("message_id missing")
	}
	if eventType == "" {
		return nil, errors.New("event_type missing")
	}
	username := attr("username")
	if username == "" {
		return nil, errors.New("username missing")
	}

	var published time.Time
	if publishedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, publishedAt)
		if err != nil {
			return nil, errors.New("published_at malformed")
		}
		published = parsed.UTC()
	}

	return &envelope{
		MessageID:   messageID,
		EventType:   eventType,
		Username:    username,
		PublishedAt: published,
		Payload:     msg.Data,
	}, nil
}

func stringField(body map[string]any, key string) string {
	if body == nil {
		return ""
	}
	if raw, ok := body[key]; ok {
		if str, ok := raw.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}
