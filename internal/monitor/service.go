package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/journal"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/config"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/metrics"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/pagination"
	pkgredis "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/redis"
)

const (
	monitorConsumerName = "monitor"
	defaultBatchSize    = 100
	defaultPollMs       = 1000
	maxBackoff          = 30 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type journalQuery interface {
	ListSince(ctx context.Context, username string, params journal.ListParams) (*journal.ListResult, error)
}

// ServiceParams carries the monitor dependencies.
type ServiceParams struct {
	Config  config.MonitorConfig
	Logger  *logger.Logger
	Query   journalQuery
	Cursors pkgredis.CursorStore
	Sinks   []Sink
	Metrics *metrics.JournalMetrics
}

// Service tails the journal and fans each new record out to its sinks. The
// cursor advances only after a batch reached every sink, so export is
// at-least-once.
type Service struct {
	logg         *logger.Logger
	query        journalQuery
	cursors      pkgredis.CursorStore
	sinks        []Sink
	metrics      *metrics.JournalMetrics
	username     string
	batchSize    int
	pollInterval time.Duration
	cursor       string
}

// NewService builds the monitor service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Query == nil {
		return nil, errors.New("query service is required")
	}
	if params.Cursors == nil {
		return nil, errors.New("cursor store is required")
	}
	if len(params.Sinks) == 0 {
		return nil, errors.New("at least one sink is required")
	}
	username := strings.TrimSpace(params.Config.Username)
	if username == "" {
		return nil, errors.New("monitor username is required")
	}

	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}

	return &Service{
		logg:         params.Logger,
		query:        params.Query,
		cursors:      params.Cursors,
		sinks:        params.Sinks,
		metrics:      params.Metrics,
		username:     username,
		batchSize:    batch,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run tails the journal until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.loadCursor(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "monitor context canceled")
			return ctx.Err()
		default:
		}

		emitted, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "monitor batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if emitted {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) loadCursor(ctx context.Context) error {
	value, err := s.cursors.Get(ctx, s.cursors.CursorKey(monitorConsumerName))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.cursor = ""
			return nil
		}
		return fmt.Errorf("load monitor cursor: %w", err)
	}
	s.cursor = value
	return nil
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	result, err := s.query.ListSince(ctx, s.username, journal.ListParams{
		Limit:  s.batchSize,
		Cursor: s.cursor,
	})
	if err != nil {
		return false, err
	}
	if len(result.Items) == 0 {
		return false, nil
	}

	for _, record := range result.Items {
		if err := s.emit(ctx, record); err != nil {
			return false, err
		}
	}

	last := result.Items[len(result.Items)-1]
	next := pagination.EncodeCursor(pagination.Cursor{
		ReceivedAt: last.ReceivedTimestamp,
		RecordID:   last.RecordID,
	})
	if err := s.cursors.Set(ctx, s.cursors.CursorKey(monitorConsumerName), next, 0); err != nil {
		return false, fmt.Errorf("persist monitor cursor: %w", err)
	}
	s.cursor = next

	fields := map[string]any{
		"batch_size": len(result.Items),
		"record_id":  last.RecordID,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "journal batch exported")
	return true, nil
}

func (s *Service) emit(ctx context.Context, record journal.EventRecord) error {
	var errs error
	for _, sink := range s.sinks {
		if err := sink.Emit(ctx, record); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
			continue
		}
		s.metrics.IncExported(sink.Name(), 1)
	}
	return errs
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

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
