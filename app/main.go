package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cimon/app/internal/config"
	"cimon/app/internal/database"
	"cimon/app/internal/ingest"
	"cimon/app/internal/metrics"
	"cimon/app/internal/notify"
	"cimon/app/internal/scheduler"
	"cimon/app/internal/snapshot"
)

const (
	logFileName = "cimon.log"

	// Bound of the recent-incidents list in the statistics snapshot.
	recentIncidentLimit = 10
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// Failures before the loop starts are fatal (exit 1); failures
	// inside the loop never are.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, logFileName),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open log file")
	}
	defer logFile.Close()
	log = zerolog.New(zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339},
		logFile,
	)).With().Timestamp().Logger()

	store, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open sample store")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("source", cfg.SourceURL).Dur("poll", cfg.PollInterval).Msg("starting availability monitor")
	run(ctx, cfg, store, log)
	log.Info().Msg("shutdown complete")
}

// run is the steady-state orchestration loop. Every step is isolated:
// a failure is logged and never prevents the following steps or the
// next iteration. Only an interrupt leaves the loop.
func run(ctx context.Context, cfg *config.Config, store *database.Store, log zerolog.Logger) {
	fetcher := ingest.NewFetcher(cfg.SourceURL, cfg.SourceTimeout, log.With().Str("component", "ingest").Logger())
	collector := &metrics.Collector{
		Source: store,
		Log:    log.With().Str("component", "metrics").Logger(),
	}
	dispatcher := notify.NewDispatcher(store, log.With().Str("component", "notify").Logger())
	writer := &snapshot.Writer{Dir: cfg.DataDir}

	statsTask := scheduler.NewTask("statistics", cfg.StatsInterval)
	notifyTask := scheduler.NewTask("notifications", cfg.NotifyInterval)
	retentionTask := scheduler.NewTask("retention", cfg.RetentionInterval)

	for iteration := 1; ; iteration++ {
		log.Info().Int("iteration", iteration).Msg("iteration started")

		// Ingestion runs first so refreshed statistics reflect the
		// just-ingested batch.
		runStep(log, "ingest", func() error {
			return fetcher.Run(ctx, store)
		})

		now := time.Now()

		if statsTask.Due(now) {
			runStep(log, statsTask.Name, func() error {
				return refreshStatistics(collector, writer)
			})
			statsTask.MarkRan(now)
		}

		runStep(log, "downtimes", func() error {
			return refreshDowntimes(collector, writer)
		})

		if notifyTask.Due(now) {
			runStep(log, notifyTask.Name, func() error {
				processed, err := dispatcher.Dispatch(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("profiles", processed).Msg("notification pass completed")
				return nil
			})
			notifyTask.MarkRan(now)
		}

		if retentionTask.Due(now) {
			runStep(log, retentionTask.Name, func() error {
				horizon := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)
				removed, err := store.ApplyRetention(horizon)
				if err != nil {
					return err
				}
				log.Info().Int64("removed", removed).Time("horizon", horizon).Msg("retention applied")
				return nil
			})
			retentionTask.MarkRan(now)
		}

		runStep(log, "log housekeeping", func() error {
			return cleanupOldLogs(cfg.DataDir, cfg.LogRetentionDays)
		})

		select {
		case <-ctx.Done():
			log.Info().Msg("interrupt received, leaving loop")
			return
		case <-time.After(cfg.PollInterval):
		}
	}
}

// runStep executes one orchestration step inside its isolation
// boundary. Errors and panics are logged with the task name; nothing
// propagates to the loop.
func runStep(log zerolog.Logger, task string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", task).Msg(fmt.Sprintf("task panicked: %v", r))
		}
	}()

	if err := fn(); err != nil {
		log.Error().Str("task", task).Err(err).Msg("task failed")
	}
}

// refreshStatistics recomputes the global report and the recent
// incident list at one shared as-of time and publishes the snapshot.
// On store failure the previous artifact stays in place, stale but
// valid.
func refreshStatistics(collector *metrics.Collector, writer *snapshot.Writer) error {
	asOf := time.Now().UTC()

	report, err := collector.Report(asOf)
	if err != nil {
		return err
	}
	incidents, err := collector.Incidents(asOf, recentIncidentLimit)
	if err != nil {
		return err
	}

	return writer.WriteStatistics(snapshot.New(report, incidents, asOf))
}

// refreshDowntimes recomputes and publishes the trailing 7d/30d
// downtime artifact.
func refreshDowntimes(collector *metrics.Collector, writer *snapshot.Writer) error {
	asOf := time.Now().UTC()

	downtimes, err := collector.Downtimes(asOf)
	if err != nil {
		return err
	}
	return writer.WriteDowntimes(downtimes)
}

// cleanupOldLogs removes rotated log files older than the retention
// horizon. The live log file is always kept.
func cleanupOldLogs(dir string, retentionDays int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	for _, e := range entries {
		name := e.Name()
		if name == logFileName || !strings.HasPrefix(name, logFileName+".") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, name))
	}
	return nil
}
