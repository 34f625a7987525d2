package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	listenAddr string
	jwtSecret  string
	logLevel   string
	logFormat  string

	limitsFile         string
	trustXFF           bool
	addHeaders         bool
	bucketIdleTTL      time.Duration
	bucketCleanupEvery time.Duration

	streamsMax            int
	streamsAcquireTimeout time.Duration
	keepAlive             time.Duration
	typingTimeout         time.Duration

	rateStatsBackend       string
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.jwtSecret = os.Getenv("JWT_SECRET")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = getenvDefault("LOG_FORMAT", "json")

	cfg.limitsFile = os.Getenv("RATE_LIMITS_FILE")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.bucketIdleTTL = getenvDurationDefault("RATE_BUCKET_IDLE_TTL", 15*time.Minute)
	cfg.bucketCleanupEvery = getenvDurationDefault("RATE_BUCKET_CLEANUP_EVERY", 2*time.Minute)

	cfg.streamsMax = getenvIntDefault("STREAMS_MAX", 1000)
	cfg.streamsAcquireTimeout = getenvDurationDefault("STREAMS_ACQUIRE_TIMEOUT", time.Second)
	cfg.keepAlive = getenvDurationDefault("STREAM_KEEP_ALIVE", 30*time.Second)
	cfg.typingTimeout = getenvDurationDefault("TYPING_TIMEOUT", 7*time.Second)

	// "" desliga, "memory" guarda no processo, "redis" grava em hashes do Redis
	cfg.rateStatsBackend = strings.ToLower(strings.TrimSpace(os.Getenv("RATE_STATS_BACKEND")))
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "taqui:ratelimit")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	switch cfg.rateStatsBackend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
			return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_BACKEND=redis")
		}
	default:
		return config{}, errors.New("RATE_STATS_BACKEND must be empty, memory or redis")
	}

	if len(cfg.jwtSecret) < 32 {
		return config{}, errors.New("JWT_SECRET must have at least 32 bytes")
	}
	if cfg.streamsMax < 0 {
		return config{}, errors.New("STREAMS_MAX must be >= 0")
	}
	if cfg.keepAlive <= 0 {
		return config{}, errors.New("STREAM_KEEP_ALIVE must be > 0")
	}
	if cfg.typingTimeout <= 0 {
		return config{}, errors.New("TYPING_TIMEOUT must be > 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
