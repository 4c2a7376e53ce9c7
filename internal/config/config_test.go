package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParse(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		config, err := Parse([]byte(`
watches:
  - "0123"
  - "0456"
sensors:
  - charging
  - state
scan_interval: 90s
geocoding: true
metrics_addr: ":9191"
`))
		require.NoError(t, err)

		assert.Equal(t, []string{"0123", "0456"}, config.Watches)
		assert.Equal(t, []string{"charging", "state"}, config.EnabledSensors())
		assert.Equal(t, 90*time.Second, config.Interval())
		assert.True(t, config.Geocoding)
		assert.Equal(t, ":9191", config.MetricsAddr)
	})

	t.Run("defaults", func(t *testing.T) {
		config, err := Parse([]byte(`watches: ["0123"]`))
		require.NoError(t, err)

		assert.Equal(t, DefaultScanInterval, config.Interval())
		assert.Equal(t, DefaultMetricsAddr, config.MetricsAddr)
		assert.Equal(t, []string{"charging", "safezone", "state"}, config.EnabledSensors())
		assert.False(t, config.Geocoding)
	})

	t.Run("no watches", func(t *testing.T) {
		_, err := Parse([]byte(`sensors: [charging]`))
		assert.ErrorContains(t, err, "at least one watch")
	})

	t.Run("empty watch ID", func(t *testing.T) {
		_, err := Parse([]byte(`watches: ["0123", ""]`))
		assert.ErrorContains(t, err, "non-empty")
	})

	t.Run("unknown sensor kind", func(t *testing.T) {
		_, err := Parse([]byte("watches: [\"0123\"]\nsensors: [temperature]"))
		assert.ErrorContains(t, err, "unknown sensor kind")
	})

	t.Run("bad scan interval", func(t *testing.T) {
		_, err := Parse([]byte("watches: [\"0123\"]\nscan_interval: soon"))
		assert.ErrorContains(t, err, "scan_interval")
	})

	t.Run("negative scan interval", func(t *testing.T) {
		_, err := Parse([]byte("watches: [\"0123\"]\nscan_interval: -3m"))
		assert.ErrorContains(t, err, "must be positive")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Parse([]byte("watches: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoader_Load(t *testing.T) {
	logger := zap.NewNop()

	t.Run("reads from config dir", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "watch_config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`watches: ["0123"]`), 0o644))

		config, err := NewLoader(dir, logger).Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"0123"}, config.Watches)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(t.TempDir(), logger).Load()
		assert.ErrorContains(t, err, "failed to read watch config")
	})
}
