// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	assert.Equal(t, []int{60, 180, 300, 600}, cfg.TimeControls)
	assert.Equal(t, "arena_settlements", cfg.SettlementQueue)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ARENA_PORT", "9090")
	t.Setenv("ARENA_GRACE_PERIOD", "45s")
	t.Setenv("ARENA_TIME_CONTROLS", "30, 60")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.GracePeriod)
	assert.Equal(t, []int{30, 60}, cfg.TimeControls)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("ARENA_GRACE_PERIOD", "soon")
	t.Setenv("ARENA_TIME_CONTROLS", "60,fast")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	assert.Equal(t, []int{60, 180, 300, 600}, cfg.TimeControls)
}

func TestAllowsTimeControl(t *testing.T) {
	cfg := &Config{TimeControls: []int{60, 300}}
	assert.True(t, cfg.AllowsTimeControl(60))
	assert.True(t, cfg.AllowsTimeControl(300))
	assert.False(t, cfg.AllowsTimeControl(180))
	assert.False(t, cfg.AllowsTimeControl(0))
}
