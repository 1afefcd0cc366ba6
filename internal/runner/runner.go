// Package runner wires the orchestrator, fusion core, emitter, and
// retention scheduler into a single-threaded tick loop: poll adapters,
// feed the buffer, fuse, emit, and optionally run retention — one task,
// sequential init, signal-handled shutdown, matching cmd/percila/main.go's
// shape.
package runner

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/asgard/aegis/internal/emit"
	"github.com/asgard/aegis/internal/fusion"
	"github.com/asgard/aegis/internal/model"
	"github.com/asgard/aegis/internal/observability"
	"github.com/asgard/aegis/internal/orchestrator"
	"github.com/asgard/aegis/internal/retention"
)

// Config configures a Runner's tick cadence and emission mode.
type Config struct {
	PollInterval time.Duration
	MaxIterations int // 0 = forever
	LegacyEmit    bool
}

// Runner drives the tick loop: orchestrator -> fusion -> emit, with one
// retention.RunOnce per tick when a scheduler is attached and driven
// synchronously (as opposed to its own background worker).
type Runner struct {
	cfg   Config
	orch  *orchestrator.Orchestrator
	store *fusion.Store
	emitter *emit.Emitter
	retention *retention.Scheduler
	broadcast func([]model.TrackState)

	mu         sync.RWMutex
	lastTickAt time.Time
	now        func() time.Time
}

// New builds a Runner. retentionScheduler may be nil (no tick-driven
// pruning); broadcast may be nil (no websocket fan-out).
func New(cfg Config, orch *orchestrator.Orchestrator, store *fusion.Store, emitter *emit.Emitter, retentionScheduler *retention.Scheduler, broadcast func([]model.TrackState)) *Runner {
	return &Runner{
		cfg:       cfg,
		orch:      orch,
		store:     store,
		emitter:   emitter,
		retention: retentionScheduler,
		broadcast: broadcast,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewTracerProvider wraps the given span exporter in a batching
// OpenTelemetry tracer provider. w is not used, and the provider is not
// installed globally; runTick's spans go to whatever provider
// otel.SetTracerProvider last installed.
func NewTracerProvider(w io.Writer, exporter trace.SpanExporter) *trace.TracerProvider {
	return trace.NewTracerProvider(trace.WithBatcher(exporter))
}

// Run executes the tick loop until ctx is cancelled or MaxIterations is
// reached (0 means forever). It returns nil on a clean shutdown.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	iterations := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("[runner] context cancelled, finishing current tick then exiting")
			return nil
		case <-ticker.C:
			if err := r.runTick(ctx); err != nil {
				if _, ok := err.(*model.ConsentError); ok {
					log.Printf("[runner] consent rejected, skipping tick emission: %v", err)
				} else {
					return err
				}
			}
			iterations++
			if r.cfg.MaxIterations > 0 && iterations >= r.cfg.MaxIterations {
				log.Printf("[runner] reached max iterations (%d), exiting cleanly", r.cfg.MaxIterations)
				return nil
			}
		}
	}
}

func (r *Runner) runTick(ctx context.Context) error {
	start := time.Now()
	now := r.now()

	tr := otel.Tracer("aegis/runner")
	spanCtx, span := tr.Start(ctx, "fusion.tick")
	defer span.End()

	batch, ok := r.orch.Poll(spanCtx, now)
	if !ok {
		observability.RecordTick("empty", time.Since(start))
		r.mu.Lock()
		r.lastTickAt = now
		r.mu.Unlock()
		return nil
	}

	span.SetAttributes(
		attribute.Int("aegis.wifi_count", len(batch.Input.WiFi)),
		attribute.Int("aegis.vision_count", len(batch.Input.Vision)),
		attribute.Int("aegis.mmwave_count", len(batch.Input.MmWave)),
		attribute.Int("aegis.ble_count", len(batch.Input.BLE)),
	)

	tracks, err := r.store.Fuse(batch.Input, true, batch.Status.ReferenceTime)
	if err != nil {
		observability.RecordTick("consent_rejected", time.Since(start))
		return err
	}

	if len(tracks) > 0 {
		span.SetAttributes(attribute.String("aegis.alert_tier", string(tracks[0].AlertTier)))
	}

	summary := emit.NewTickSummary(batch.Input, batch.Status)
	if err := r.emitter.Emit(tracks, summary); err != nil {
		return err
	}
	if r.broadcast != nil {
		r.broadcast(tracks)
	}

	if r.retention != nil {
		result := r.retention.RunOnce(batch.Status.ReferenceTime, now)
		observability.RecordRetention(result.DeletedMeasurements, result.DeletedLogs)
	}

	observability.RecordDroppedStale("wifi", batch.Status.DroppedWiFi)
	observability.RecordDroppedStale("vision", batch.Status.DroppedVision)
	observability.RecordDroppedStale("mmwave", batch.Status.DroppedMmWave)
	observability.RecordDroppedStale("ble", batch.Status.DroppedBLE)

	r.mu.Lock()
	r.lastTickAt = now
	r.mu.Unlock()

	observability.RecordTick("emitted", time.Since(start))
	return nil
}

// Health reports whether a tick has run within 5x the poll interval.
func (r *Runner) Health() (healthy bool, lastTickAt time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastTickAt.IsZero() {
		return true, r.lastTickAt
	}
	return time.Since(r.lastTickAt) < 5*r.cfg.PollInterval, r.lastTickAt
}
