package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wyrmgate/server/internal/ai"
	"github.com/wyrmgate/server/internal/config"
	"github.com/wyrmgate/server/internal/persist"
	"github.com/wyrmgate/server/internal/rng"
	"github.com/wyrmgate/server/internal/scripting"
	"github.com/wyrmgate/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("WYRMGATE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("wyrmgated starting",
		zap.String("server", cfg.Server.Name),
		zap.Int("id", cfg.Server.ID),
		zap.Duration("tick", cfg.Server.TickRate))

	// 3. Connect to PostgreSQL and run migrations. An empty DSN runs the
	// server without persisted spawns.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var spawnSource scripting.SpawnSource
	if cfg.Database.DSN != "" {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		spawnSource = persist.NewSpawnRepo(db)
		log.Info("database connected")
	} else {
		log.Info("database disabled, persisted spawns skipped")
	}

	// 4. World state, behavior engine, script registry
	r := rng.NewFromClock()
	worldState := world.NewState(r, cfg.AI.LeashDistance, log)

	engine := ai.NewEngine(worldState, nil, r, ai.Config{
		Tick:          cfg.Server.TickRate,
		AudioRadius:   cfg.AI.AudioRadius,
		VisualRadius:  cfg.AI.VisualRadius,
		VisualConeDeg: cfg.AI.VisualConeDeg,
		IdleWaitMinMS: cfg.AI.IdleWaitMinMS,
		IdleWaitMaxMS: cfg.AI.IdleWaitMaxMS,
	}, log)

	registry := scripting.NewRegistry(cfg.Scripts, r, worldState, engine, spawnSource, log)
	defer registry.Close()
	engine.SetInvoker(registry)

	// Combat feeds hits back into behavior instances; removal detaches them.
	worldState.SetEventSink(engine.Deliver)
	worldState.SetRemoveHook(engine.Detach)
	worldState.SetHookRunner(registry.RunActorHooks)
	worldState.SetDeathSink(registry.ScheduleRespawn)

	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}

	// 5. Optional source watcher for live reload
	var watcher *scripting.Watcher
	if cfg.Scripts.WatchSources {
		watcher, err = scripting.NewWatcher(
			[]string{cfg.Scripts.BaseRoot, cfg.Scripts.OverrideRoot},
			[]string{cfg.Scripts.ItemData},
			log,
		)
		if err != nil {
			return fmt.Errorf("script watcher: %w", err)
		}
		defer watcher.Close()
		log.Info("watching script sources for changes")
	}

	// 6. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Server.TickRate)
	defer ticker.Stop()

	log.Info("game loop running",
		zap.Int("actors", worldState.Count()),
		zap.Int("instances", engine.Count()))

	var reloads <-chan struct{}
	if watcher != nil {
		reloads = watcher.Reloads
	}

	for {
		select {
		case <-ticker.C:
			engine.Advance()
			registry.TickRespawns(time.Now())
		case <-reloads:
			log.Info("script sources changed, reloading")
			if err := registry.Reload(context.Background()); err != nil {
				log.Error("reload failed, previous generation still live", zap.Error(err))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			engine.DetachAll()
			log.Info("server stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
