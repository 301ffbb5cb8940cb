package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatflow/internal/config"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENCRYPTION_KEY", "k3y")
	t.Setenv("UPLOAD_DIR", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "0.0.0.0:5000", cfg.HTTPAddr())
	assert.Equal(t, 30*24*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins())
	assert.Equal(t, 64, cfg.WSSendBuffer)
	assert.Equal(t, 30*time.Second, cfg.WSPingInterval)
	assert.Equal(t, "chatflow.db", cfg.DSN())
}

func TestLoadPostgresDSN(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "chat")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://postgres:postgres@db:5432/chat?sslmode=disable", cfg.DSN())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "mongo")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "k3y")
	t.Setenv("UPLOAD_DIR", t.TempDir())

	_, err := config.Load()
	assert.Error(t, err)
}

func TestListSplitting(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", " http://a , ,http://b")
	t.Setenv("ENCRYPTION_LEGACY_KEYS", "x,y")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins())
	assert.Equal(t, []string{"x", "y"}, cfg.LegacyKeys())
}
