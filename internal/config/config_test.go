package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/limaJavier/examtabling/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults apply without a config file", func(t *testing.T) {
		//** Arrange
		t.Chdir(t.TempDir())

		//** Act
		settings, err := Load("")

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, model.DefaultConfiguration(), settings.Model)
		assert.Equal(t, "gophersat", settings.Solver)
		assert.Equal(t, "file", settings.Store.Kind)
		assert.Positive(t, settings.Jobs.Concurrency)
		assert.Equal(t, time.Hour, settings.Jobs.Retention)
	})

	t.Run("The file and the environment override the defaults", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "examtabling.yaml")
		content := `
solver: kissat
store:
  kind: redis
  redis_addr: cache:6379
model:
  days: 14
  week_three:
    start: 8
    end: 13
  weights:
    congestion: 3
`
		require.NoError(t, os.WriteFile(file, []byte(content), 0666))
		t.Setenv("EXAMTABLING_MODEL_TIME_BUDGET", "30s")
		t.Setenv("EXAMTABLING_JOBS_CONCURRENCY", "3")

		settings, err := Load(file)

		require.NoError(t, err)
		assert.Equal(t, "kissat", settings.Solver)
		assert.Equal(t, "cache:6379", settings.Store.RedisAddr)
		assert.Equal(t, uint64(14), settings.Model.Days)
		assert.Equal(t, model.WeekRange{Start: 8, End: 13}, settings.Model.WeekThree)
		assert.Equal(t, int64(3), settings.Model.Weights.Congestion)
		assert.Equal(t, int64(1), settings.Model.Weights.ExtraTime)
		assert.Equal(t, 30*time.Second, settings.Model.TimeBudget)
		assert.Equal(t, 3, settings.Jobs.Concurrency)
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "examtabling.yaml")
		require.NoError(t, os.WriteFile(file, []byte("solver: glucose\n"), 0666))

		_, err := Load(file)

		assert.Error(t, err)
	})

	t.Run("Missing explicit files are an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		assert.Error(t, err)
	})
}
