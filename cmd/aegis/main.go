package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asgard/aegis/internal/audit"
	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/config"
	"github.com/asgard/aegis/internal/emit"
	"github.com/asgard/aegis/internal/fusion"
	"github.com/asgard/aegis/internal/httpapi"
	"github.com/asgard/aegis/internal/ingestion/blescanner"
	"github.com/asgard/aegis/internal/ingestion/localwifi"
	"github.com/asgard/aegis/internal/ingestion/mmwaveserial"
	"github.com/asgard/aegis/internal/ingestion/visionexec"
	"github.com/asgard/aegis/internal/model"
	"github.com/asgard/aegis/internal/orchestrator"
	"github.com/asgard/aegis/internal/retention"
	"github.com/asgard/aegis/internal/runner"
	"github.com/asgard/aegis/internal/syncbuf"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the fusion engine's JSON configuration")
	pollInterval := flag.Duration("poll-interval", 200*time.Millisecond, "tick cadence for polling adapters and running fusion")
	maxIterations := flag.Int("max-iterations", 0, "stop after this many ticks (0 = run forever)")
	legacyEmit := flag.Bool("legacy-emit", false, "emit one TrackState object per NDJSON line instead of the full per-tick envelope")
	httpAddr := flag.String("http-addr", "", "address to serve /healthz, /metrics, and /tracks/stream on (empty disables the HTTP surface)")
	flag.Parse()

	log.Printf("starting aegis fusion engine, config=%s poll_interval=%s", *configPath, *pollInterval)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	reg := cfg.BuildRegistry()
	log.Println("calibration registry built")

	buffer := syncbuf.New(cfg.BufferConfig())
	log.Println("synchronization buffer ready")

	orch := orchestrator.New(buffer, reg, false)
	wireSources(orch, cfg)
	log.Println("orchestrator wired to configured sources")

	auditLogger, retentionLogs := buildAudit(cfg)
	if auditLogger != nil {
		log.Println("audit sink enabled")
	}

	space := calibration.SpaceConfig{
		WidthM: cfg.Space.WidthM, HeightM: cfg.Space.HeightM,
		OriginX: cfg.Space.OriginX, OriginY: cfg.Space.OriginY,
	}
	var auditSink fusion.AuditSink
	if auditLogger != nil {
		auditSink = auditLogger
	}
	store := fusion.NewStore(reg, space, auditSink)
	log.Println("fusion store ready")

	var retentionMu sync.Mutex
	var retentionScheduler *retention.Scheduler
	if cfg.Retention.Enabled {
		retentionScheduler = retention.New(retention.Config{
			Enabled:                cfg.Retention.Enabled,
			MeasurementTTLSeconds:  cfg.Retention.MeasurementTTLSeconds,
			LogTTLSeconds:          cfg.Retention.LogTTLSeconds,
			CleanupIntervalSeconds: cfg.Retention.CleanupIntervalSeconds,
		}, buffer, retentionLogs, &retentionMu)
		log.Println("retention scheduler configured")
	}

	emitter := emit.New(os.Stdout, *legacyEmit)

	var broadcaster *httpapi.Broadcaster
	var httpServer *http.Server
	if *httpAddr != "" {
		broadcaster = httpapi.NewBroadcaster()
		go broadcaster.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := runner.New(runner.Config{
		PollInterval:  *pollInterval,
		MaxIterations: *maxIterations,
		LegacyEmit:    *legacyEmit,
	}, orch, store, emitter, retentionScheduler, broadcastFn(broadcaster))

	if *httpAddr != "" {
		router := httpapi.NewRouter(broadcaster, r.Health)
		httpServer = &http.Server{Addr: *httpAddr, Handler: router}
		go func() {
			log.Printf("http surface listening on %s", *httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Printf("runner exited with error: %v", err)
			shutdown(httpServer, broadcaster, retentionScheduler)
			os.Exit(1)
		}
	}

	shutdown(httpServer, broadcaster, retentionScheduler)
	log.Println("aegis stopped cleanly")
}

// broadcastFn adapts an optional *httpapi.Broadcaster into the plain
// func([]model.TrackState) the runner expects, so the runner package
// does not need to import httpapi.
func broadcastFn(b *httpapi.Broadcaster) func([]model.TrackState) {
	if b == nil {
		return nil
	}
	return b.Broadcast
}

func shutdown(srv *http.Server, b *httpapi.Broadcaster, sched *retention.Scheduler) {
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if b != nil {
		b.Stop()
	}
	if sched != nil {
		sched.Stop(5 * time.Second)
	}
}

// buildAudit wires the consent gate and provenance/track-update logging
// configured under the "audit" config key.
// It returns nil, nil when auditing is disabled.
func buildAudit(cfg *config.Config) (*audit.Logger, retention.LogPruner) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}

	var store audit.ConsentStore = audit.NewInMemoryConsentStore()
	var secondary []audit.LogSink
	if cfg.Audit.PostgresDSN != "" {
		pg, err := audit.NewPostgresStore(cfg.Audit.PostgresDSN)
		if err != nil {
			log.Fatalf("failed to connect audit postgres store: %v", err)
		}
		store = pg
		secondary = append(secondary, pg)
	}
	if cfg.Audit.NATSURL != "" {
		busCfg := audit.DefaultEventBusConfig()
		busCfg.NATSURL = cfg.Audit.NATSURL
		bus, err := audit.NewEventBus(busCfg)
		if err != nil {
			log.Printf("audit event bus unavailable, continuing without it: %v", err)
		} else {
			secondary = append(secondary, bus)
		}
	}

	logger := audit.New(audit.Config{
		ConsentStore:   store,
		RequireConsent: cfg.Audit.RequireConsent,
		Secondary:      secondary,
	})

	for _, rec := range cfg.Audit.ConsentRecords {
		if err := logger.RecordConsent(rec.Status, rec.ParticipantID, rec.SessionID); err != nil {
			log.Printf("failed to seed consent record for %s: %v", rec.ParticipantID, err)
		}
	}

	return logger, logger
}

func wireSources(orch *orchestrator.Orchestrator, cfg *config.Config) {
	for _, src := range cfg.Ingestion.WiFi {
		switch src.Type {
		case "localwifi":
			orch.AddWiFiSource(localwifi.New(localwifi.Config{
				Interface:  src.Interface,
				CSICommand: src.CSICommand,
				Timeout:    durationOrDefault(src.TimeoutSeconds, 5*time.Second),
			}))
		default:
			log.Printf("unknown wifi source type %q, skipping", src.Type)
		}
	}

	for _, src := range cfg.Ingestion.Vision {
		switch src.Type {
		case "exec":
			orch.AddVisionSource(visionexec.New(visionexec.Config{
				Command: src.Command,
				Timeout: durationOrDefault(src.TimeoutSeconds, 5*time.Second),
			}))
		default:
			log.Printf("unknown vision source type %q, skipping", src.Type)
		}
	}

	for _, src := range cfg.Ingestion.MmWave {
		switch src.Type {
		case "serial":
			orch.AddMmWaveSource(mmwaveserial.New(mmwaveserial.Config{
				PortName: src.Port,
			}))
		default:
			log.Printf("unknown mmwave source type %q, skipping", src.Type)
		}
	}

	for _, src := range cfg.Ingestion.BLE {
		switch src.Type {
		case "offline":
			orch.AddBLESource(blescanner.NewOffline(blescanner.OfflineConfig{
				HashIdentifiers: src.HashIdentifiers,
			}))
		default:
			log.Printf("unknown ble source type %q, skipping", src.Type)
		}
	}
}

func durationOrDefault(seconds float64, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}
