package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWritesRotatedFile(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	file := filepath.Join(t.TempDir(), "medstore.log")
	logger, err := Init("production", file)
	require.NoError(t, err)

	zap.S().Infow("sale committed", "sale_id", "s1")
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sale_id":"s1"`)
}

func TestInitDevelopment(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger, err := Init("development", "")
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())
}
