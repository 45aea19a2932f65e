package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pojakpijak/H-5N1P3R/internal/config"
	"github.com/pojakpijak/H-5N1P3R/internal/database"
	"github.com/pojakpijak/H-5N1P3R/internal/domain"
	"github.com/pojakpijak/H-5N1P3R/internal/ledger"
	"github.com/pojakpijak/H-5N1P3R/internal/monitor"
	"github.com/pojakpijak/H-5N1P3R/internal/optimizer"
	"github.com/pojakpijak/H-5N1P3R/internal/oracle"
	"github.com/pojakpijak/H-5N1P3R/internal/regime"
	"github.com/pojakpijak/H-5N1P3R/internal/reliability"
	"github.com/pojakpijak/H-5N1P3R/internal/server"
	"github.com/pojakpijak/H-5N1P3R/internal/weights"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

// pendingVerifier answers every query with PendingConfirmation, so tracked
// transactions resolve through the confirmation timeout. Replaced by the
// RPC verifier when one is configured.
type pendingVerifier struct{}

func (pendingVerifier) VerifyTransaction(context.Context, string) (domain.Outcome, error) {
	return domain.PendingConfirmation(), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)
	log.Info().Msg("Starting oracle daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage. A failure here is the one unrecoverable startup condition.
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath,
		Profile: database.ProfileLedger,
		Name:    "decisions",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open decisions database")
	}
	defer db.Close()

	store, err := ledger.NewSQLiteLedger(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger")
	}

	// Message channels between the long-lived tasks.
	candidates := make(chan domain.ScoredCandidate, 256)
	decisions := make(chan domain.TransactionRecord, 256)
	updates := make(chan domain.OutcomeUpdate, 256)
	reports := make(chan domain.PerformanceReport, 8)
	optimizerReports := make(chan domain.PerformanceReport, 8)
	proposals := make(chan domain.OptimizedParameters, 8)

	// Shared cells.
	cell, err := oracle.NewConfigCell(domain.DefaultFeatureWeights(), domain.DefaultScoreThresholds())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build initial configuration")
	}
	regimeState := regime.NewState()
	reportCache := &server.ReportCache{}

	// Long-lived tasks.
	ledgerSvc := ledger.NewService(store, decisions, updates, log)
	go ledgerSvc.Run(ctx)

	perfMonitor := monitor.NewPerformanceMonitor(store, reports, cfg.AnalysisWindowHours, cfg.AnalysisInterval, log)
	go perfMonitor.Run(ctx)

	// Fan reports out to the optimizer and the status API.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-reports:
				reportCache.Set(r)
				select {
				case optimizerReports <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	strategyOpt := optimizer.NewStrategyOptimizer(
		store, optimizerReports, proposals,
		domain.DefaultFeatureWeights(), domain.DefaultScoreThresholds(),
		0, log,
	)
	go strategyOpt.Run(ctx)

	// TODO: replace the static macro source and pending verifier with the
	// RPC-backed implementations once the fetch layer lands.
	macroSource := regime.StaticSource{Price: 0, TPS: 1000, DexVolumeUSD: 50_000_000}
	detector := regime.NewDetector(macroSource, regimeState, cfg.RegimeInterval, log)
	go detector.Run(ctx)

	txMonitor := monitor.NewTransactionMonitor(pendingVerifier{}, updates, cfg.ConfirmationTimeout, 2*time.Second, log)
	go txMonitor.Run(ctx)

	engine := weights.NewAdaptiveEngine(domain.DefaultFeatureWeights(), 0, log)
	oracleLoop := oracle.New(cell, engine, regimeState, candidates, proposals, decisions, cfg.RecalcEvery, log)
	go oracleLoop.Run(ctx)

	// Scheduled maintenance and backups.
	scheduler := cron.New()
	maintenance := reliability.NewMaintenanceJob(db, log)
	if _, err := scheduler.AddFunc("0 2 * * *", func() {
		if err := maintenance.Run(); err != nil {
			log.Error().Err(err).Msg("Maintenance failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance")
	}

	if cfg.BackupEnabled() {
		s3Client, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}

		backupSvc := reliability.NewBackupService(db, s3Client, s3Client, cfg.DataDir, log)
		if _, err := scheduler.AddFunc(cfg.BackupCronSpec, func() {
			backupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if err := backupSvc.CreateAndUploadBackup(backupCtx); err != nil {
				log.Error().Err(err).Msg("Backup failed")
				return
			}
			if err := backupSvc.RotateOldBackups(backupCtx, cfg.BackupRetentionDays); err != nil {
				log.Error().Err(err).Msg("Backup rotation failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Status server.
	var srv *server.Server
	if cfg.ListenAddr != "" {
		srv = server.New(server.Config{
			Addr:    cfg.ListenAddr,
			Log:     log,
			Storage: store,
			Regimes: regimeState,
			Reports: reportCache,
		})
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("Status server failed")
			}
		}()
	}

	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("Oracle daemon started")

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server forced to shutdown")
		}
	}

	log.Info().Msg("Oracle daemon stopped")
}
