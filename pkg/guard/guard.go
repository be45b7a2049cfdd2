package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/redis"
)

// Manager tracks processed deliveries per consumer using Redis SETNX with a TTL.
// Keys follow the `em:delivery:evt:processed:<consumer>:<message_id>:<event_type>`
// pattern. The marker is a fast-path skip for redeliveries; the journal's unique
// index stays authoritative, so a lost marker only costs one duplicate-path ingest.
type Manager struct {
	store redis.DeliveryStore
	ttl   time.Duration
}

// NewManager builds a delivery guard that marks deliveries as processed for the given TTL.
func NewManager(store redis.DeliveryStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("delivery store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the delivery has already been processed
// and otherwise marks it as processed with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, messageID, eventType string) (bool, error) {
	key, err := m.processedKey(consumer, messageID, eventType)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete clears the processed marker so a failed delivery can be retried.
func (m *Manager) Delete(ctx context.Context, consumer, messageID, eventType string) error {
	key, err := m.processedKey(consumer, messageID, eventType)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, messageID, eventType string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if messageID == "" {
		return "", errors.New("message id is required")
	}
	if eventType == "" {
		return "", errors.New("event type is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.DeliveryKey(scope, messageID+":"+eventType), nil
}
