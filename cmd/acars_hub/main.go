// Command acars_hub ingests streamed datalink messages (ACARS, VDL-M2, HFDL,
// Inmarsat L-band, Iridium) from decoder sockets, persists them to SQLite
// with a full-text index, evaluates alert terms, and serves a live websocket
// view plus a search API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"acars_hub/internal/alerts"
	"acars_hub/internal/api"
	"acars_hub/internal/config"
	"acars_hub/internal/feed"
	"acars_hub/internal/hub"
	"acars_hub/internal/logging"
	"acars_hub/internal/lookup"
	"acars_hub/internal/message"
	"acars_hub/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (overrides search path)")
	downgrade := flag.Bool("downgrade", false, "roll back the newest schema revision and exit")
	flag.Parse()

	if *configPath != "" {
		_ = os.Setenv(config.ConfigPathEnvVar, *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, *downgrade, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("hub exited", zap.Error(err))
	}
}

func run(cfg *config.Config, downgrade bool, log *zap.Logger) error {
	store, err := storage.Open(cfg.Database.Path, log)
	if err != nil {
		// A broken or missing schema is not recoverable at runtime.
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if downgrade {
		return store.Downgrade()
	}

	if err := store.SetAlertTerms(cfg.AlertTerms()); err != nil {
		return fmt.Errorf("seed alert terms: %w", err)
	}
	if err := store.SetIgnoreTerms(cfg.IgnoreTerms()); err != nil {
		return fmt.Errorf("seed ignore terms: %w", err)
	}
	matcher := alerts.NewMatcher(cfg.AlertTerms(), cfg.IgnoreTerms())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backup, err := storage.OpenBackup(ctx, cfg.Database.BackupKind, storage.BackupConfig{
		Host:     cfg.Database.BackupHost,
		Port:     cfg.Database.BackupPort,
		Database: cfg.Database.BackupDatabase,
		User:     cfg.Database.BackupUser,
		Password: cfg.Database.BackupPassword,
	})
	if err != nil {
		// The backup store is best-effort; the hub runs without it.
		log.Error("backup store unavailable", zap.String("kind", cfg.Database.BackupKind), zap.Error(err))
		backup = nil
	}
	if backup != nil {
		defer func() { _ = backup.Close() }()
	}

	var egress hub.Feed
	if cfg.Feed.Enabled {
		pub, err := feed.Connect(cfg.Feed.URL, cfg.Feed.Subject, log)
		if err != nil {
			log.Error("feed unavailable", zap.Error(err))
		} else {
			defer pub.Close()
			egress = pub
		}
	}

	tables := lookup.Load(cfg.Lookup.DataDir, cfg.Lookup.IATAOverride, log)
	enricher := message.NewEnricher(tables, cfg.Lookup.TrackingURL, log)

	persistQ := hub.NewQueue("persist", hub.QueueCapacity)
	broadcastQ := hub.NewQueue("broadcast", hub.QueueCapacity)
	stats := hub.NewStats()
	wsHub := api.NewWSHub(log)

	sup := suture.New("acars_hub", suture.Spec{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
		EventHook: func(e suture.Event) {
			log.Warn("supervisor event", zap.String("event", e.String()))
		},
	})

	var enabled []string
	for name, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		source, ok := message.ParseSourceType(name)
		if !ok {
			return fmt.Errorf("unknown source %q in config", name)
		}
		sup.Add(hub.NewListener(source, src.Addr, persistQ, broadcastQ,
			wsHub.HasClients, stats.Source(source), log))
		enabled = append(enabled, string(source))
	}
	if len(enabled) == 0 {
		log.Warn("no decoder sources enabled")
	}
	wsHub.Info = func() map[string]any {
		return map[string]any{
			"sources":      enabled,
			"terms":        matcher.Terms(),
			"ignore_terms": matcher.IgnoreTerms(),
		}
	}

	sup.Add(hub.NewWriter(persistQ, store, backup, egress, matcher, cfg.Database.SaveAll, log))
	sup.Add(hub.NewBroadcaster(broadcastQ, enricher, wsHub, log))
	sup.Add(hub.NewMaintenance(stats, store, wsHub,
		cfg.Database.SaveDays, cfg.Database.AlertSaveDays, log))
	sup.Add(wsHub)
	sup.Add(api.NewServer(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		store, matcher, wsHub, log))

	log.Info("acars hub starting",
		zap.Strings("sources", enabled),
		zap.String("database", cfg.Database.Path),
		zap.Bool("save_all", cfg.Database.SaveAll))

	return sup.Serve(ctx)
}
