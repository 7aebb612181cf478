package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finpulse/pkg/api"
	"finpulse/pkg/core/agent"
	"finpulse/pkg/core/assessor"
	"finpulse/pkg/core/config"
	"finpulse/pkg/core/logging"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/prompt"
	"finpulse/pkg/core/store"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Get().WithError(err).Fatal("load configuration")
	}
	logging.Configure(cfg.LogLevel, os.Stdout)
	log := logging.For("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, opts, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("open history store")
	}
	defer closeStore()

	agentMgr := agent.NewManager(cfg.Models.Config, nil)
	a, err := buildAssessor(cfg, agentMgr)
	if err != nil {
		log.WithError(err).Fatal("build assessor")
	}

	orch := pipeline.New(a, history, cfg.Pipeline(), opts...)
	handler := api.NewRouter(api.Deps{
		Pipeline: orch,
		Store:    history,
		Agents:   agentMgr,
		Timeout:  cfg.LockTTL(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"store":    cfg.StoreBackend,
			"assessor": cfg.Assessor,
			"provider": agentMgr.GetActiveProvider(),
		}).Info("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// openStore returns the configured backend, plus the in-flight guard that
// must go with it: a Redis lock when instances share Redis.
func openStore(ctx context.Context, cfg config.Config) (store.HistoryStore, []pipeline.Option, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
		if err := store.RunMigrations(ctx, store.GetPool()); err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		return store.NewPostgresStore(store.GetPool(), cfg.Limits()), nil, store.Close, nil

	case config.BackendRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, nil, err
		}
		guard := pipeline.NewRedisGuard(rdb, cfg.RedisPrefix, cfg.LockTTL())
		return store.NewRedisStore(rdb, cfg.RedisPrefix, cfg.Limits()),
			[]pipeline.Option{pipeline.WithGuard(guard)},
			func() { _ = rdb.Close() },
			nil
	}
	return store.NewMemoryStore(cfg.Limits()), nil, func() {}, nil
}

func buildAssessor(cfg config.Config, agentMgr *agent.Manager) (assessor.Assessor, error) {
	if cfg.Assessor == config.AssessorSimulated {
		return assessor.NewSimulated(cfg.Models.RatePolicy, cfg.Models.TenurePolicy), nil
	}

	prompts := prompt.Get()
	if cfg.PromptsDir != "" {
		if err := prompt.LoadFromDirectory(prompts, cfg.PromptsDir); err != nil {
			return nil, err
		}
	}
	return assessor.NewLLMAssessor(agentMgr,
		assessor.WithPrompts(prompts),
		assessor.WithTenurePolicy(cfg.Models.TenurePolicy),
	), nil
}
