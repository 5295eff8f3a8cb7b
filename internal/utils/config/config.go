package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradegraph/clearing-backend/internal/types/environments"
)

type AppConfig struct {
	Environment environments.Environment
	ApiServer   ApiServerConfig
	Postgres    DBConnection
	Bitcoin     BitcoinConfig
	Ethereum    EthereumConfig
	Clearing    ClearingConfig
}

type ApiServerConfig struct {
	AllowedOrigins string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

type BitcoinConfig struct {
	BlockstreamAPIURL string
	ConfirmationDepth int64
}

type EthereumConfig struct {
	RPCEndpoint       string
	ConfirmationDepth int64
}

// ClearingConfig carries the reconciliation tunables. Confirmation depth,
// retry budget and poll period have no single correct value, so they are
// always read from the environment with conservative defaults.
type ClearingConfig struct {
	ReconcilePeriod   string
	RetryBudget       int
	RetryBackoffBase  time.Duration
	NotifyWebhookURL  string
	PollRatePerSecond int
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Environment(env),
		ApiServer: ApiServerConfig{
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: os.Getenv("DB_SSL_MODE"),
		},
		Bitcoin: BitcoinConfig{
			BlockstreamAPIURL: os.Getenv("BTC_BLOCKSTREAM_API_URL"),
			ConfirmationDepth: envVarAsInt64("BTC_CONFIRMATION_DEPTH", 6),
		},
		Ethereum: EthereumConfig{
			RPCEndpoint:       os.Getenv("ETH_RPC_ENDPOINT"),
			ConfirmationDepth: envVarAsInt64("ETH_CONFIRMATION_DEPTH", 12),
		},
		Clearing: ClearingConfig{
			ReconcilePeriod:   envVarOrDefault("CLEARING_RECONCILE_PERIOD", "30s"),
			RetryBudget:       envVarAsInt("CLEARING_RETRY_BUDGET", 5),
			RetryBackoffBase:  envVarAsDuration("CLEARING_RETRY_BACKOFF_BASE", 500*time.Millisecond),
			NotifyWebhookURL:  os.Getenv("CLEARING_NOTIFY_WEBHOOK_URL"),
			PollRatePerSecond: envVarAsInt("CLEARING_POLL_RATE_PER_SECOND", 10),
		},
	}
}

func envVarOrDefault(envName, defaultValue string) string {
	value := os.Getenv(envName)
	if value == "" {
		return defaultValue
	}

	return value
}

func envVarAsInt(envName string, defaultValue int) int {
	valueStr := os.Getenv(envName)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func envVarAsInt64(envName string, defaultValue int64) int64 {
	valueStr := os.Getenv(envName)
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func envVarAsDuration(envName string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(envName)
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
