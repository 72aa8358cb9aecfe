package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInit(t *testing.T) {
	t.Run("Levels are honored", func(t *testing.T) {
		err := Init("production", "warn")

		assert.NoError(t, err)
		assert.False(t, Get().Core().Enabled(zap.InfoLevel))
		assert.True(t, Get().Core().Enabled(zap.WarnLevel))
	})

	t.Run("Unknown levels are rejected", func(t *testing.T) {
		err := Init("development", "loud")

		assert.Error(t, err)
		assert.NotNil(t, Get())
	})
}
