package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug", "").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("nonsense", "").GetLevel())
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releasebot.log")
	logger := NewLogger("info", path)

	logger.WithField("user_id", 42).Info("Started tracking movie")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Started tracking movie")
	assert.Contains(t, string(data), "user_id=42")
}
