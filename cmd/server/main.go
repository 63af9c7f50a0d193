package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"raidsrv/internal/config"
	"raidsrv/internal/httpapi"
	"raidsrv/internal/hub"
	"raidsrv/internal/player"
	"raidsrv/internal/reward"
	"raidsrv/internal/scaling"
	"raidsrv/internal/session"
	"raidsrv/internal/spawn"
	"raidsrv/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	// In-flight sessions never survive a restart.
	if err := db.ClearAll(ctx); err != nil {
		logger.Fatal("clear sessions", zap.Error(err))
	}

	players := player.NewMemory() // TODO: swap for the profile-service client once its API lands

	sessCfg := session.Config{
		LobbyWait:             cfg.LobbyWait,
		BattleTimeoutStandard: cfg.BattleTimeoutStandard,
		BattleTimeoutWorld:    cfg.BattleTimeoutWorld,
		RetaliateMinStandard:  cfg.RetaliateMinStandard,
		RetaliateMaxStandard:  cfg.RetaliateMaxStandard,
		RetaliateMinWorld:     cfg.RetaliateMinWorld,
		RetaliateMaxWorld:     cfg.RetaliateMaxWorld,
		Scaling:               scaling.Defaults(),
		Reward:                reward.Defaults(),
	}

	h := hub.NewHub(ctx, db, players, logger, sessCfg)

	tracker := spawn.NewTracker(cfg.ActivityWindow)
	h.OnResolved = tracker.RecordOutcome

	spawnCfg := spawn.DefaultConfig()
	spawnCfg.Tick = cfg.SpawnTick
	spawnCfg.BaseChance = cfg.SpawnBaseChance
	spawnCfg.DefeatCooldown = cfg.SpawnCooldownDefeat
	spawnCfg.DespawnCooldown = cfg.SpawnCooldownDespawn
	spawnCfg.SpecialChance = cfg.SpecialSpawnChance
	scheduler := spawn.NewScheduler(tracker, h, logger, rand.New(rand.NewSource(time.Now().UnixNano())), spawnCfg)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	handler := httpapi.SetupRoutes(&httpapi.Server{
		Hub:       h,
		Players:   players,
		Tracker:   tracker,
		Scheduler: scheduler,
		Log:       logger,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
