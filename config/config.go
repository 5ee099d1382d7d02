// Package config loads KASS's environment-driven configuration the same way
// the teacher repo's config package does: godotenv for local .env files,
// os.Getenv with typed defaults for everything else.
package config

import (
	"fmt"
	"log"
	"os"
)

// Config holds every tunable recognized by KASS, enumerated in spec §6.3.
type Config struct {
	// Bus / store endpoints.
	RedisHost     string
	RedisPort     string
	RedisPassword string

	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	ConsumerGroupPrefix string
	LogLevel            string

	VPIN      VPINConfig
	OI        OIConfig
	Regime    RegimeConfig
	Cross     CrossMarketConfig
	Agg       AggregatorConfig
	Lifecycle LifecycleConfig

	// Per-market emit gating shared by every processor (spec §4.1).
	CooldownSeconds int
	MinDelta        float64

	Ingest IngestConfig
}

// IngestConfig points the ingest collaborator at the exchange's push-stream
// and discovery endpoints (spec §3, §6.1's "raw input streams").
type IngestConfig struct {
	WebSocketURL     string
	DiscoveryBaseURL string
	BearerToken      string
	PingIntervalSec  int
	DiscoveryPollSec int
}

type VPINConfig struct {
	BucketMinVolume int
	Window          int
	Threshold       float64
	High            float64
}

type OIConfig struct {
	ZScoreThreshold float64
	EWMAHalfLifeSec float64
}

type RegimeConfig struct {
	EvalPeriodSec   int
	HysteresisSec   int
	PreSettleMinute int
}

type CrossMarketConfig struct {
	LeaderMinMove   int
	FollowerMaxMove int
	WindowSec       int
}

type LifecycleConfig struct {
	CascadeTTLSec int
}

// AggregatorConfig carries the emission-gating thresholds and the signal
// weight / regime multiplier vectors from spec §4.7.
type AggregatorConfig struct {
	EmitDelta       float64
	NeutralBand     float64
	HeartbeatSec    int
	DedupeWindowSec int

	Weights map[string]float64
}

// DefaultWeights are the example weights given in spec §4.7.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"toxicity_vpin":        0.25,
		"toxicity_burst":       0.15,
		"oi_divergence":        0.25,
		"cross_market":         0.20,
		"lifecycle_cascade":    0.30,
		"lifecycle_new_market": 0.15,
	}
}

// Load reads configuration from the environment, falling back to a local
// .env file exactly like the teacher's LoadFromEnv.
func Load() *Config {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "kass"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "kass"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "kass"),

		ConsumerGroupPrefix: getEnvOrDefault("CONSUMER_GROUP_PREFIX", "kass"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),

		CooldownSeconds: getEnvInt("PROCESSOR_COOLDOWN_SEC", 30),
		MinDelta:        getEnvFloat("PROCESSOR_MIN_DELTA", 0.05),

		VPIN: VPINConfig{
			BucketMinVolume: getEnvInt("VPIN_BUCKET_MIN_VOL", 50),
			Window:          getEnvInt("VPIN_WINDOW", 50),
			Threshold:       getEnvFloat("VPIN_THRESHOLD", 0.60),
			High:            getEnvFloat("VPIN_HIGH", 0.80),
		},
		OI: OIConfig{
			ZScoreThreshold: getEnvFloat("OI_ZSCORE_THRESHOLD", 2.0),
			EWMAHalfLifeSec: getEnvFloat("OI_EWMA_HALFLIFE_SEC", 300),
		},
		Regime: RegimeConfig{
			EvalPeriodSec:   getEnvInt("REGIME_EVAL_PERIOD_SEC", 5),
			HysteresisSec:   getEnvInt("REGIME_HYSTERESIS_SEC", 15),
			PreSettleMinute: getEnvInt("PRE_SETTLE_MIN", 15),
		},
		Cross: CrossMarketConfig{
			LeaderMinMove:   getEnvInt("CROSS_LEADER_MIN_MOVE", 3),
			FollowerMaxMove: getEnvInt("CROSS_FOLLOWER_MAX_MOVE", 1),
			WindowSec:       getEnvInt("CROSS_WINDOW_SEC", 120),
		},
		Lifecycle: LifecycleConfig{
			CascadeTTLSec: getEnvInt("LIFECYCLE_CASCADE_TTL_SEC", 60),
		},
		Agg: AggregatorConfig{
			EmitDelta:       getEnvFloat("AGG_EMIT_DELTA", 0.10),
			NeutralBand:     getEnvFloat("AGG_NEUTRAL_BAND", 0.05),
			HeartbeatSec:    getEnvInt("AGG_HEARTBEAT_SEC", 60),
			DedupeWindowSec: getEnvInt("AGG_DEDUPE_WINDOW_SEC", 300),
			Weights:         DefaultWeights(),
		},
		Ingest: IngestConfig{
			WebSocketURL:     getEnvOrDefault("INGEST_WS_URL", "wss://exchange.example.com/stream"),
			DiscoveryBaseURL: getEnvOrDefault("INGEST_DISCOVERY_URL", "https://exchange.example.com/discovery"),
			BearerToken:      getEnvOrDefault("INGEST_BEARER_TOKEN", ""),
			PingIntervalSec:  getEnvInt("INGEST_PING_INTERVAL_SEC", 30),
			DiscoveryPollSec: getEnvInt("INGEST_DISCOVERY_POLL_SEC", 60),
		},
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
