package config

import (
	"testing"
	"time"

	apperrors "tidyframe/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HISTORY_DEPTH", "")
	t.Setenv("DISPLAY_MAX_ROWS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, 10, cfg.Session.HistoryDepth)
	assert.Equal(t, 999, cfg.Display.MaxRows)
	assert.Equal(t, 15, cfg.Display.SuggestionLimit)
	assert.Equal(t, "tidyframe_session", cfg.Server.SessionCookie)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tidyframe")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("HISTORY_DEPTH", "25")
	t.Setenv("UPLOAD_MAX_MB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 25, cfg.Session.HistoryDepth)
	assert.Equal(t, int64(50), cfg.Server.UploadMaxMB, "unparseable values fall back to the default")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("HISTORY_DEPTH", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestQueryConfig(t *testing.T) {
	t.Setenv("DATABASE_QUERY_ENABLED", "")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("QUERY_MAX_ROWS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Query.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Query.Timeout)
	assert.Equal(t, 1000000, cfg.Query.MaxRows)

	t.Setenv("QUERY_MAX_ROWS", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))

	t.Setenv("DATABASE_QUERY_ENABLED", "false")
	cfg, err = Load()
	require.NoError(t, err, "limits are not checked while queries are disabled")
	assert.False(t, cfg.Query.Enabled)
}

func TestDatabaseDriverFromURL(t *testing.T) {
	pg := DatabaseConfig{URL: "postgres://localhost/tidyframe?sslmode=disable"}
	assert.Equal(t, DriverPostgres, pg.Driver())
	assert.Equal(t, pg.URL, pg.DSN())

	lite := DatabaseConfig{URL: "sqlite://./data/tidyframe.db"}
	assert.Equal(t, DriverSQLite, lite.Driver())
	assert.Equal(t, "./data/tidyframe.db", lite.DSN())
}
