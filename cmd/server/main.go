package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clearvet/internal/adjudication"
	adjudicationhandler "clearvet/internal/adjudication/handler"
	adjudicationmetrics "clearvet/internal/adjudication/metrics"
	"clearvet/internal/adverseaction"
	adverseactionhandler "clearvet/internal/adverseaction/handler"
	adverseactionmetrics "clearvet/internal/adverseaction/metrics"
	clearvethttp "clearvet/internal/http"
	matrixhandler "clearvet/internal/matrix/handler"
	"clearvet/internal/matrix/models"
	matrixservice "clearvet/internal/matrix/service"
	matrixstore "clearvet/internal/matrix/store"
	"clearvet/internal/order"
	"clearvet/internal/platform/config"
	"clearvet/internal/platform/httpserver"
	"clearvet/internal/platform/logger"
	"clearvet/internal/platform/postgres"
	"clearvet/internal/platform/redis"
	"clearvet/internal/timeline"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores fall back to in-memory when no database is configured, which
	// keeps local development a single binary.
	var (
		matrices matrixservice.Store
		orders   interface {
			adjudication.OrderStore
			adverseaction.OrderStore
		}
		decisions     adjudication.DecisionStore
		actions       adverseaction.Store
		timelineStore timeline.Store
	)
	if db != nil {
		matrices = matrixstore.NewPostgres(db)
		orders = order.NewPostgres(db)
		decisions = adjudication.NewPostgres(db)
		actions = adverseaction.NewPostgres(db)
		timelineStore = timeline.NewPostgres(db)
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		matrices = matrixstore.NewInMemory()
		orders = order.NewMemoryStore()
		decisions = adjudication.NewMemoryStore()
		actions = adverseaction.NewMemoryStore()
		timelineStore = timeline.NewMemoryStore()
	}

	recorderOpts := []timeline.Option{timeline.WithLogger(log)}
	if redisClient != nil {
		recorderOpts = append(recorderOpts,
			timeline.WithPublisher(timeline.NewRedisPublisher(redisClient.Client, "clearvet:timeline")))
	}
	recorder := timeline.NewRecorder(timelineStore, recorderOpts...)

	matrixSvc := matrixservice.New(matrices, log)

	adjudicationSvc := adjudication.New(decisions, matrices, orders, recorder,
		adjudication.WithLogger(log),
		adjudication.WithMetrics(adjudicationmetrics.New()),
		adjudication.WithDefaultDecision(models.Decision(cfg.DefaultDecision)),
	)

	adverseSvc := adverseaction.New(actions, orders, recorder,
		adverseaction.WithLogger(log),
		adverseaction.WithMetrics(adverseactionmetrics.New()),
		adverseaction.WithStatutoryWaitDays(cfg.StatutoryWaitDays),
	)

	router := clearvethttp.New(clearvethttp.Deps{
		Matrix:        matrixhandler.New(matrixSvc, log),
		Adjudication:  adjudicationhandler.New(adjudicationSvc, log),
		AdverseAction: adverseactionhandler.New(adverseSvc, log),
		Timeline:      recorder,
		AdminToken:    cfg.AdminToken,
		Logger:        log,
		Health: func() error {
			if db != nil {
				return db.Ping()
			}
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SweepEnabled {
		sweeper := adverseaction.NewSweeper(actions, recorder, log, time.Hour)
		go sweeper.Run(ctx)
	}

	server := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
