package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// ServiceParams carries the dependencies for the simulator service.
type ServiceParams struct {
	Config    config.SimulatorConfig
	Logger    *logger.Logger
	Publisher *gcppubsub.Publisher
	Spool     *Spool
	Generator *Generator
}

// Service publishes simulated temperature readings to the telemetry topic,
// spooling readings the broker refuses and draining the spool once publishing
// recovers.
type Service struct {
	cfg            config.SimulatorConfig
	logg           *logger.Logger
	pub            publisher
	spool          *Spool
	gen            *Generator
	publishTimeout time.Duration
}

// NewService creates the simulator service.
func NewService(params ServiceParams) (*Service, error) {
	if strings.TrimSpace(params.Config.Username) == "" {
		return nil, errors.New("simulator username is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("telemetry publisher is required")
	}
	if params.Spool == nil {
		return nil, errors.New("spool is required")
	}

	gen := params.Generator
	if gen == nil {
		gen = NewGenerator(params.Config.DeviceID, 0)
	}

	timeout := defaultPublishTimeout
	if params.Config.PublishExpiry > 0 {
		timeout = time.Duration(params.Config.PublishExpiry) * time.Second
	}

	return &Service{
		cfg:            params.Config,
		logg:           params.Logger,
		pub:            newGCPPublisher(params.Publisher),
		spool:          params.Spool,
		gen:            gen,
		publishTimeout: timeout,
	}, nil
}

// Run samples and publishes readings until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logg.Info(s.logg.WithField(ctx, "device_id", s.cfg.DeviceID), "simulator started")

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "simulator context canceled")
			return ctx.Err()
		default:
		}

		s.cycle(ctx, s.gen.Next())

		if err := s.sleep(ctx, s.gen.Interval()); err != nil {
			return err
		}
	}
}

func (s *Service) cycle(ctx context.Context, reading Reading) {
	fields := s.readingFields(reading)

	serverID, err := s.publish(ctx, reading)
	if err != nil {
		ctxWithFields := s.logg.WithFields(ctx, fields)
		ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
		s.logg.Warn(ctxWithFields, "publish failed; reading spooled")
		if spoolErr := s.spool.Append(reading); spoolErr != nil {
			s.logg.Error(s.logg.WithFields(ctx, fields), "spooling reading failed", spoolErr)
		}
		return
	}

	fields["pubsub_id"] = serverID
	s.logg.Info(s.logg.WithFields(ctx, fields), "telemetry reading published")

	s.drainSpool(ctx)

	// Re-sending an already published reading exercises the journal's
	// duplicate handling end to end.
	if s.cfg.RepeatEvery > 0 && reading.Sequence%int64(s.cfg.RepeatEvery) == 0 {
		if _, err := s.publish(ctx, reading); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "redelivery publish failed")
			return
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "telemetry reading redelivered")
	}
}

func (s *Service) drainSpool(ctx context.Context) {
	flushed, err := s.spool.Drain(func(spooled Reading) error {
		_, publishErr := s.publish(ctx, spooled)
		return publishErr
	})
	if err != nil {
		ctxWithFields := s.logg.WithField(ctx, "flushed", flushed)
		ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
		s.logg.Warn(ctxWithFields, "spool drain interrupted")
		return
	}
	if flushed > 0 {
		s.logg.Info(s.logg.WithField(ctx, "flushed", flushed), "spooled readings drained")
	}
}

func (s *Service) publish(ctx context.Context, reading Reading) (string, error) {
	payload, err := json.Marshal(reading)
	if err != nil {
		return "", fmt.Errorf("encoding reading: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"message_id":   reading.MessageID,
			"device_id":    reading.DeviceID,
			"mode":         reading.Mode,
			"event_type":   reading.EventType,
			"username":     s.cfg.Username,
			"published_at": reading.TimestampUTC,
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	result := s.pub.Publish(publishCtx, msg)
	if result == nil {
		return "", errors.New("publisher returned nil result")
	}
	return result.Get(publishCtx)
}

func (s *Service) readingFields(reading Reading) map[string]any {
	return map[string]any{
		"message_id": reading.MessageID,
		"device_id":  reading.DeviceID,
		"event_type": reading.EventType,
		"sequence":   reading.Sequence,
		"temp_c":     reading.TempC,
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
