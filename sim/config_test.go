package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSearchConfig_FieldEquivalence(t *testing.T) {
	got := NewSearchConfig(20, 500, 25)
	want := SearchConfig{Particles: 20, Iterations: 500, ScheduleTTL: 25}
	assert.Equal(t, want, got)
}

func TestNewScheduleConfig_FieldEquivalence(t *testing.T) {
	assert.Equal(t, ScheduleConfig{MaxSkyline: 8}, NewScheduleConfig(8))
}

func TestNewAllocatorConfig_FieldEquivalence(t *testing.T) {
	assert.Equal(t, AllocatorConfig{CostQuantum: 100}, NewAllocatorConfig(100))
}

func TestNewSearchConfig_ZeroValues_NoDefaults(t *testing.T) {
	// Zero-value arguments must NOT inject non-zero defaults
	assert.Equal(t, SearchConfig{}, NewSearchConfig(0, 0, 0))
}

func TestDefaultConfigs_AreUsable(t *testing.T) {
	s := DefaultSearchConfig()
	assert.Greater(t, s.Particles, 0)
	assert.Greater(t, s.Iterations, 0)
	assert.Greater(t, DefaultScheduleConfig().MaxSkyline, 0)
	assert.GreaterOrEqual(t, DefaultAllocatorConfig().CostQuantum, int64(1))
}
