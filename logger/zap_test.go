package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapFileLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.log")

	l := NewZapFileLogger("debug", FileConfig{Path: path})
	l.Info("payment initiated", map[string]any{"tx": "0xT", "err": errors.New("boom")})
	_ = l.(*ZapLogger).Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "payment initiated")
	assert.Contains(t, string(data), `"tx":"0xT"`)
	assert.Contains(t, string(data), `"err":"boom"`)
}

func TestZapLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.log")

	l := NewZapFileLogger("warn", FileConfig{Path: path})
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	_ = l.(*ZapLogger).Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))
}
