// Package retention implements the periodic pruning of the synchronization
// buffer and audit logs under TTLs. It runs as a
// cooperative background worker, or can be driven synchronously from a
// tick loop via RunOnce.
package retention

import (
	"sync"
	"time"

	"github.com/asgard/aegis/internal/syncbuf"
)

// Buffer is the subset of *syncbuf.Buffer the scheduler needs.
type Buffer interface {
	PruneHistory(ttlSeconds float64, referenceTime time.Time) (wifi, vision, mmwave, ble int)
}

// LogPruner is the subset of *audit.Logger the scheduler needs.
type LogPruner interface {
	PruneLogs(ttl time.Duration, now time.Time) (sensorDeleted, trackDeleted int)
}

var _ Buffer = (*syncbuf.Buffer)(nil)

// Config configures a Scheduler. A TTL <= 0 disables pruning for that
// dimension.
type Config struct {
	Enabled               bool
	MeasurementTTLSeconds float64
	LogTTLSeconds         float64
	CleanupIntervalSeconds float64
}

// Result reports how many entries a RunOnce pass deleted.
type Result struct {
	DeletedMeasurements int
	DeletedLogs         int
}

// Scheduler is a cooperative background worker that periodically calls
// RunOnce. Start is idempotent; Stop signals termination and joins within
// a bounded wait. A shared mutex (Mu) must be held by any caller mutating
// the buffer/audit structures concurrently with the worker — a "shared
// with exclusive mutation" model.
type Scheduler struct {
	cfg    Config
	buffer Buffer
	logs   LogPruner
	Mu     *sync.Mutex

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	now     func() time.Time
}

// New builds a Scheduler. mu, when non-nil, is locked around every
// RunOnce pass so the worker serializes against a concurrently running
// fusion loop; callers that only ever invoke RunOnce synchronously from
// their own tick loop may pass nil.
func New(cfg Config, buffer Buffer, logs LogPruner, mu *sync.Mutex) *Scheduler {
	return &Scheduler{cfg: cfg, buffer: buffer, logs: logs, Mu: mu, now: func() time.Time { return time.Now().UTC() }}
}

// Start launches the background worker if retention is enabled and it is
// not already running. Idempotent.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.run(s.stop, s.done)
}

// Stop signals the worker to terminate and waits up to timeout for it to
// exit. If the worker was never started, Stop is a no-op.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop := s.stop
	done := s.done
	s.running = false
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func (s *Scheduler) run(stop, done chan struct{}) {
	defer close(done)
	interval := s.cfg.CleanupIntervalSeconds
	if interval <= 0 {
		interval = 60
	}
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := s.now()
			s.RunOnce(now, now)
		}
	}
}

// RunOnce prunes the buffer and audit logs once, synchronously, exposed
// for tick-driven execution. If Mu is set, it is held for the duration of
// the pass.
func (s *Scheduler) RunOnce(referenceTime, now time.Time) Result {
	if s.Mu != nil {
		s.Mu.Lock()
		defer s.Mu.Unlock()
	}
	var result Result
	if s.buffer != nil && s.cfg.MeasurementTTLSeconds > 0 {
		wifi, vision, mmwave, ble := s.buffer.PruneHistory(s.cfg.MeasurementTTLSeconds, referenceTime)
		result.DeletedMeasurements = wifi + vision + mmwave + ble
	}
	if s.logs != nil && s.cfg.LogTTLSeconds > 0 {
		sensor, track := s.logs.PruneLogs(time.Duration(s.cfg.LogTTLSeconds*float64(time.Second)), now)
		result.DeletedLogs = sensor + track
	}
	return result
}
