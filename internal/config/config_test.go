package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so no config file is found.
func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv(ConfigPathEnvVar, "")
}

func TestDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "127.0.0.1", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "ccsuggest", cfg.Database.Name)
	assert.Equal(t, "ccsuggest", cfg.Database.User)
	assert.Equal(t, "gini", cfg.Training.Criterion)
	assert.True(t, cfg.Training.Bootstrap)
	assert.Equal(t, 0, cfg.Training.MaxFeatures)
	assert.Equal(t, 10, cfg.Training.MinRows)
	assert.Equal(t, 100, cfg.Training.Trees)
	assert.Equal(t, int64(42), cfg.Training.RandomState)
	assert.Equal(t, []string{"answer", "response", "value", "response_value", "answer_text"}, cfg.Training.AnswerColumns)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:5001", cfg.Server.Addr())
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_PASS", "hunter2")
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MIN_TRAINING_ROWS", "25")
	t.Setenv("JWT_TOKEN_TTL", "2h")
	t.Setenv("CRITERION", "entropy")
	t.Setenv("MAX_FEATURES", "3")
	t.Setenv("BOOTSTRAP", "false")
	t.Setenv("HOME_DIR_UNRELATED", "ignored")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 25, cfg.Training.MinRows)
	assert.Equal(t, 2*time.Hour, cfg.Security.TokenTTL)
	assert.Equal(t, "entropy", cfg.Training.Criterion)
	assert.Equal(t, 3, cfg.Training.MaxFeatures)
	assert.False(t, cfg.Training.Bootstrap)
}

func TestFileThenEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  path: /tmp/q.db
training:
  trees: 7
logging:
  format: json
`), 0o644))
	t.Setenv("N_ESTIMATORS", "9")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/q.db", cfg.Database.Path)
	assert.Equal(t, 9, cfg.Training.Trees)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfigPathEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestValidation(t *testing.T) {
	isolate(t)

	t.Run("bad driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("PORT", "70000")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("zero min rows", func(t *testing.T) {
		cfg := Default()
		cfg.Training.MinRows = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad criterion", func(t *testing.T) {
		cfg := Default()
		cfg.Training.Criterion = "log_loss"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sqlite needs path", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = ""
		assert.Error(t, cfg.Validate())
	})
}
