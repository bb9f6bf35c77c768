package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string `env:"ENV" default:"dev"`

	Port string `env:"PORT" default:"8080"`

	StoreBackend string `env:"STORE_BACKEND" default:"memory"` // memory | mysql | sqlite | workbook
	MySQLDSN     string `env:"DB_DSN" default:""`              // required when STORE_BACKEND=mysql
	SQLitePath   string `env:"SQLITE_PATH" default:"data/celltrack.db"`
	WorkbookPath string `env:"WORKBOOK_PATH" default:"data/celltrack.xlsx"`

	// Optional: run migrations at startup (dev convenience)
	RunMigrations bool `env:"RUN_MIGRATIONS" default:"false"`

	LogLevel string `env:"LOG_LEVEL" default:"info"`

	// PEM public key; when empty, bearer tokens are not checked.
	JWTPublicKeyEnv string `env:"JWT_PUBLIC_KEY_ENV" default:"JWT_PUBLIC_KEY_PEM"`

	// Client side (trackctl)
	APIBaseURL   string        `env:"API_BASE_URL" default:"http://localhost:8080"`
	APIToken     string        `env:"API_TOKEN" default:""`
	Debounce     time.Duration `env:"DEBOUNCE_MS" default:"1000"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             getenv("ENV", "dev"),
		Port:            getenv("PORT", "8080"),
		StoreBackend:    getenv("STORE_BACKEND", "memory"),
		MySQLDSN:        getenv("DB_DSN", ""),
		SQLitePath:      getenv("SQLITE_PATH", "data/celltrack.db"),
		WorkbookPath:    getenv("WORKBOOK_PATH", "data/celltrack.xlsx"),
		RunMigrations:   getenv("RUN_MIGRATIONS", "false") == "true",
		LogLevel:        getenv("LOG_LEVEL", "info"),
		JWTPublicKeyEnv: getenv("JWT_PUBLIC_KEY_ENV", "JWT_PUBLIC_KEY_PEM"),
		APIBaseURL:      getenv("API_BASE_URL", "http://localhost:8080"),
		APIToken:        getenv("API_TOKEN", ""),
		Debounce:        getMillis("DEBOUNCE_MS", 1000*time.Millisecond),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
	}
	return cfg
}

func getenv(key string, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getMillis(key string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
