package audit

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// EventBus publishes provenance/track-update logs onto NATS subjects, for
// downstream consumers that want a live feed rather than polling a store.
// Grounded on internal/security/events/publisher.go's Publisher shape,
// adapted to this package's two log kinds.
type EventBus struct {
	nc   *nats.Conn
	mu   sync.RWMutex
	sent int64
	errs int64
}

// EventBusConfig configures an EventBus.
type EventBusConfig struct {
	NATSURL       string
	ReconnectWait time.Duration
	MaxReconnects int
}

func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		NATSURL:       "nats://localhost:4222",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
	}
}

// NewEventBus connects to NATS with reconnect and disconnect handlers
// wired in up front.
func NewEventBus(cfg EventBusConfig) (*EventBus, error) {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[aegis audit] reconnected to NATS: %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[aegis audit] disconnected from NATS: %v", err)
			}
		}),
	}
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, err
	}
	return &EventBus{nc: nc}, nil
}

const (
	subjectProvenance  = "aegis.audit.sensor_provenance"
	subjectTrackUpdate = "aegis.audit.track_update"
)

func (b *EventBus) AppendProvenance(rec SensorProvenanceLog) error {
	data, err := json.Marshal(rec)
	if err != nil {
		b.recordError()
		return err
	}
	if err := b.nc.Publish(subjectProvenance, data); err != nil {
		b.recordError()
		return err
	}
	b.recordSent()
	return nil
}

func (b *EventBus) AppendTrackUpdate(rec TrackUpdateLog) error {
	data, err := json.Marshal(rec)
	if err != nil {
		b.recordError()
		return err
	}
	if err := b.nc.Publish(subjectTrackUpdate, data); err != nil {
		b.recordError()
		return err
	}
	b.recordSent()
	return nil
}

// PruneLogs is a no-op for EventBus: nothing is retained to prune once
// published.
func (b *EventBus) PruneLogs(time.Duration, time.Time) (int, int) { return 0, 0 }

func (b *EventBus) recordSent() {
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
}

func (b *EventBus) recordError() {
	b.mu.Lock()
	b.errs++
	b.mu.Unlock()
}

// Stats returns (published, errors) counters, for observability wiring.
func (b *EventBus) Stats() (int64, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sent, b.errs
}

func (b *EventBus) Close() { b.nc.Close() }
