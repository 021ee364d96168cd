package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DebugMode enables verbose provider logging. Read once at Load.
var DebugMode bool

type Config struct {
	MetricsAddr string

	KucoinBaseURL    string
	KucoinAPIKey     string
	KucoinSecretKey  string
	KucoinPassphrase string

	UpbitAccessKey string
	UpbitSecretKey string
}

// Load reads configuration from the environment, with .env as an optional
// local override file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	DebugMode, _ = strconv.ParseBool(os.Getenv("DEBUG"))
	if DebugMode {
		logrus.SetLevel(logrus.DebugLevel)
	}

	return &Config{
		MetricsAddr: getEnvOr("METRICS_ADDR", ":8080"),

		KucoinBaseURL:    getEnvOr("KUCOIN_BASE_URL", "https://api.kucoin.com"),
		KucoinAPIKey:     os.Getenv("KUCOIN_API_KEY"),
		KucoinSecretKey:  os.Getenv("KUCOIN_SECRET_KEY"),
		KucoinPassphrase: os.Getenv("KUCOIN_PASSPHRASE"),

		UpbitAccessKey: os.Getenv("UPBIT_ACCESS_KEY"),
		UpbitSecretKey: os.Getenv("UPBIT_SECRET_KEY"),
	}
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
