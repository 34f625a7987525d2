package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"taqui-realtime/middleware/auth"
	"taqui-realtime/middleware/ratelimit/domain"
	"taqui-realtime/middleware/ratelimit/infra"
	"taqui-realtime/realtime"
	rtapp "taqui-realtime/realtime/application"
	rtinfra "taqui-realtime/realtime/infra"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.logLevel, cfg.logFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	limits := infra.DefaultLimits()
	if cfg.limitsFile != "" {
		limits, err = infra.LoadLimits(cfg.limitsFile, limits)
		if err != nil {
			logger.Fatal("rate limits", zap.Error(err))
		}
	}

	buckets := infra.NewBuckets(
		infra.WithIdleTTL(cfg.bucketIdleTTL),
		infra.WithCleanupEvery(cfg.bucketCleanupEvery),
		infra.WithLogger(logger.Named("buckets")),
	)

	var statsStore domain.StatsStore
	switch cfg.rateStatsBackend {
	case "memory":
		statsStore = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatal("redis stats ping", zap.Error(err))
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	buckets.StartJanitor(ctx)

	broadcaster := rtinfra.NewBroadcaster(rtinfra.WithLogger(logger.Named("broadcaster")))
	typing := rtapp.NewCoordinator(broadcaster,
		rtapp.WithTimeout(cfg.typingTimeout),
		rtapp.WithLogger(logger.Named("typing")),
	)

	s := &server{
		cfg:      cfg,
		logger:   logger,
		limits:   limits,
		buckets:  buckets,
		stats:    statsStore,
		verifier: auth.NewVerifier([]byte(cfg.jwtSecret)),
		handlers: &realtime.Handlers{
			Broadcaster: broadcaster,
			Typing:      typing,
			Messages:    rtinfra.NewMemoryMessages(nil),
			KeepAlive:   cfg.keepAlive,
			Logger:      logger.Named("realtime"),
		},
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// streams SSE limpam o próprio deadline de escrita
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
		// com o sinal, os streams abertos terminam e o Shutdown não fica esperando por eles
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("chatd listening", zap.String("addr", cfg.listenAddr))
	for ns, bc := range limits {
		logger.Info("rate limit", zap.String("namespace", ns),
			zap.Uint64("capacity", bc.Capacity), zap.Uint64("refill_rate", bc.RefillRate))
	}
	logger.Info("streams",
		zap.Int("max", cfg.streamsMax), zap.Duration("keep_alive", cfg.keepAlive),
		zap.Duration("typing_timeout", cfg.typingTimeout), zap.String("stats", cfg.rateStatsBackend))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	// indicadores ainda ativos publicam o EndTyping pendente antes de sair
	typing.Wait()
}
