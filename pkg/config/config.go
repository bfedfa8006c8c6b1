package config

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Settings is a typed snapshot of the loaded configuration.
type Settings struct {
	LogLevel string

	HTTPPort string
	GRPCPort string

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaOffersTopic string
	KafkaEventsTopic string

	AutoLinkThreshold  float64
	AutoLinkMargin     float64
	SuggestionLimit    int
	CandidateLimit     int
	BatchSize          int
	BatchInterval      time.Duration
	DuplicateThreshold float64

	SweepSchedule          string
	CatalogRefreshSchedule string
}

// Load initializes configuration from environment variables and .env file.
func Load() error {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		logrus.WithError(err).Warn("Failed to read .env file, using environment variables")
	}

	logrus.Info("Configuration loaded successfully")
	return nil
}

func setDefaults() {
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "oraculo")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("GRPC_PORT", "9090")

	viper.SetDefault("KAFKA_ENABLED", false)
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_OFFERS_TOPIC", "SCRAPED_OFFERS")
	viper.SetDefault("KAFKA_EVENTS_TOPIC", "MATCH_EVENTS")

	viper.SetDefault("MATCH_AUTO_THRESHOLD", 95.0)
	viper.SetDefault("MATCH_AUTO_MARGIN", 5.0)
	viper.SetDefault("MATCH_SUGGESTION_LIMIT", 5)
	viper.SetDefault("MATCH_CANDIDATE_LIMIT", 20)
	viper.SetDefault("MATCH_BATCH_SIZE", 100)
	viper.SetDefault("MATCH_BATCH_INTERVAL", "50ms")
	viper.SetDefault("RADAR_FUZZY_THRESHOLD", 90.0)

	viper.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	viper.SetDefault("CATALOG_REFRESH_SCHEDULE", "@every 15m")
}

// Current reads the active configuration into Settings.
func Current() Settings {
	return Settings{
		LogLevel: viper.GetString("LOG_LEVEL"),

		HTTPPort: viper.GetString("HTTP_PORT"),
		GRPCPort: viper.GetString("GRPC_PORT"),

		KafkaEnabled:     viper.GetBool("KAFKA_ENABLED"),
		KafkaBrokers:     splitList(viper.GetString("KAFKA_BROKERS")),
		KafkaOffersTopic: viper.GetString("KAFKA_OFFERS_TOPIC"),
		KafkaEventsTopic: viper.GetString("KAFKA_EVENTS_TOPIC"),

		AutoLinkThreshold:  viper.GetFloat64("MATCH_AUTO_THRESHOLD"),
		AutoLinkMargin:     viper.GetFloat64("MATCH_AUTO_MARGIN"),
		SuggestionLimit:    viper.GetInt("MATCH_SUGGESTION_LIMIT"),
		CandidateLimit:     viper.GetInt("MATCH_CANDIDATE_LIMIT"),
		BatchSize:          viper.GetInt("MATCH_BATCH_SIZE"),
		BatchInterval:      viper.GetDuration("MATCH_BATCH_INTERVAL"),
		DuplicateThreshold: viper.GetFloat64("RADAR_FUZZY_THRESHOLD"),

		SweepSchedule:          viper.GetString("SWEEP_SCHEDULE"),
		CatalogRefreshSchedule: viper.GetString("CATALOG_REFRESH_SCHEDULE"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
