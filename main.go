package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealerwatch/config"
	"dealerwatch/httputil"
	"dealerwatch/logging"
	"dealerwatch/media"
	"dealerwatch/models"
	"dealerwatch/proc"
	"dealerwatch/progress"
	"dealerwatch/scheduler"
	"dealerwatch/scraper"
	"dealerwatch/services"
	"dealerwatch/storage"
)

var (
	scrapeMode = flag.Bool("scrape", false, "Run one scrape as a worker process and exit")
	runID      = flag.String("run-id", "", "Run ID assigned by the triggering daemon")
	pages      = flag.Int("pages", 0, "Max listing pages, 0 = all")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	progressStore, err := progress.NewStore(cfg.ProgressDir)
	if err != nil {
		log.Fatalf("Failed to init progress dir: %v", err)
	}

	if *scrapeMode {
		runWorker(ctx, cfg, store, progressStore)
		return
	}
	runDaemon(ctx, cfg, store, progressStore)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Store.Driver == "postgres" {
		log.Printf("Connecting to Postgres")
		return storage.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
	}
	log.Printf("SQLite database: %s", cfg.Store.SQLitePath)
	return storage.NewSQLiteStore(cfg.Store.SQLitePath)
}

func buildPipeline(ctx context.Context, cfg *config.Config) *media.Pipeline {
	clients := httputil.NewClients(cfg.ProxyURL)

	var uploader storage.Uploader
	if cfg.S3.Enabled {
		up, err := storage.NewS3Uploader(ctx, storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
		})
		if err != nil {
			log.Printf("Warning: S3 mirroring disabled: %v", err)
		} else {
			uploader = up
			log.Printf("S3 mirroring enabled: %s", cfg.S3.Bucket)
		}
	}

	return media.NewPipeline(clients.Media, cfg.MediaDir, cfg.Source.Watermark, uploader, cfg.S3.KeyPrefix)
}

// runWorker executes one scrape run in this process. The daemon spawns
// workers so a browser crash can never take the daemon down with it.
func runWorker(ctx context.Context, cfg *config.Config, store storage.Store, progressStore *progress.Store) {
	id := *runID
	if id == "" {
		id = "manual-" + time.Now().UTC().Format("20060102-150405")
	}

	// Run recovers its own panics; this catches setup failures so the
	// run row the trigger created never sticks on "running".
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker panic: %v", r)
			markWorkerFailure(ctx, store, progressStore, id, fmt.Sprintf("panic: %v", r))
			os.Exit(1)
		}
	}()

	recorder := logging.NewRecorder(store, "scraper")
	orchestrator := scraper.NewOrchestrator(
		cfg, store,
		buildPipeline(ctx, cfg),
		services.NewReconciler(store),
		progressStore,
		recorder,
	)

	if err := orchestrator.Run(ctx, id, *pages); err != nil {
		log.Printf("Scrape run %s failed: %v", id, err)
		os.Exit(1)
	}
}

func markWorkerFailure(ctx context.Context, store storage.Store, progressStore *progress.Store, runID, msg string) {
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	run, err := store.GetRunByRunID(ctx, runID)
	if err != nil || run == nil {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusFailed
	run.Errors = append(run.Errors, msg)
	run.Summary = msg
	_ = store.UpdateRun(ctx, run)
	_ = progressStore.Write(runID, &models.ProgressSnapshot{
		RunID:     runID,
		Status:    models.ProgressStatusFailed,
		Message:   msg,
		UpdatedAt: now,
	})
}

func runDaemon(ctx context.Context, cfg *config.Config, store storage.Store, progressStore *progress.Store) {
	log.Printf("Starting dealerwatch daemon for %s", cfg.Source.Name)

	if err := store.EnsureMonitorConfig(ctx, models.MonitorConfig{
		Enabled:         cfg.Monitor.Enabled,
		IntervalMinutes: cfg.Monitor.IntervalMinutes,
		PagesToCheck:    cfg.Monitor.PagesToCheck,
	}); err != nil {
		log.Fatalf("Failed to seed monitor config: %v", err)
	}

	spawner, err := proc.NewExecSpawner()
	if err != nil {
		log.Fatalf("Failed to init worker spawner: %v", err)
	}

	scanner := scraper.NewScanner(&cfg.Scraper, cfg.Source)
	comparer := services.NewComparer(store, scanner, progressStore)
	control := services.NewControl(store, spawner, progressStore, comparer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, store, control, comparer)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
}
