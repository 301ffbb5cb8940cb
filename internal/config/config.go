package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	AppName string `env:"APP_NAME,default=ChatFlow API"`
	Env     string `env:"APP_ENV,default=development"`
	Host    string `env:"HTTP_HOST,default=0.0.0.0"`
	Port    int    `env:"HTTP_PORT,default=5000"`

	DBDriver   string `env:"DB_DRIVER,default=sqlite"`
	SQLitePath string `env:"SQLITE_PATH,default=chatflow.db"`
	PGHost     string `env:"POSTGRES_HOST,default=localhost"`
	PGPort     string `env:"POSTGRES_PORT,default=5432"`
	PGUser     string `env:"POSTGRES_USER,default=postgres"`
	PGPassword string `env:"POSTGRES_PASSWORD,default=postgres"`
	PGDatabase string `env:"POSTGRES_DB,default=chatflow"`

	JWTSecret          string `env:"JWT_SECRET,required=true"`
	AccessTokenMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=43200"`
	EncryptKey         string `env:"ENCRYPTION_KEY,required=true"`
	EncryptLegacyKeys  string `env:"ENCRYPTION_LEGACY_KEYS"`

	UploadDir   string `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB,default=50"`
	CORSOrigins string `env:"CORS_ORIGINS,default=http://localhost:5173"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`

	WSSendBuffer      int           `env:"WS_SEND_BUFFER,default=64"`
	WSEventsPerSecond float64       `env:"WS_EVENTS_PER_SECOND,default=20"`
	WSEventBurst      int           `env:"WS_EVENT_BURST,default=40"`
	WSPingInterval    time.Duration `env:"WS_PING_INTERVAL,default=30s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.EncryptKey == "" {
		return errors.New("ENCRYPTION_KEY is required")
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.WSSendBuffer <= 0 {
		return errors.New("WS_SEND_BUFFER must be positive")
	}
	if c.WSEventBurst <= 0 {
		c.WSEventBurst = 1
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PGUser, c.PGPassword),
		Host:     fmt.Sprintf("%s:%s", c.PGHost, c.PGPort),
		Path:     c.PGDatabase,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

func (c *Config) LegacyKeys() []string {
	return splitList(c.EncryptLegacyKeys)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
