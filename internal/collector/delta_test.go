package collector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPUPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                             string
		cpuNow, cpuPrev, sysNow, sysPrev uint64
		cores                            uint32
		want                             float64
	}{
		{name: "quarter of one core on four", cpuNow: 250, cpuPrev: 0, sysNow: 4000, sysPrev: 0, cores: 4, want: 25},
		{name: "delta based", cpuNow: 1500, cpuPrev: 1000, sysNow: 12000, sysPrev: 10000, cores: 2, want: 50},
		{name: "zero cpu delta", cpuNow: 1000, cpuPrev: 1000, sysNow: 2000, sysPrev: 1000, cores: 2, want: 0},
		{name: "zero sys delta", cpuNow: 2000, cpuPrev: 1000, sysNow: 1000, sysPrev: 1000, cores: 2, want: 0},
		{name: "cpu counter reset", cpuNow: 10, cpuPrev: 1000, sysNow: 2000, sysPrev: 1000, cores: 1, want: 0},
		{name: "sys counter reset", cpuNow: 2000, cpuPrev: 1000, sysNow: 10, sysPrev: 1000, cores: 1, want: 0},
		{name: "unknown cores counts as one", cpuNow: 100, cpuPrev: 0, sysNow: 1000, sysPrev: 0, cores: 0, want: 10},
		{name: "clamped above", cpuNow: 900, cpuPrev: 0, sysNow: 1000, sysPrev: 0, cores: 8, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cpuPercent(tt.cpuNow, tt.cpuPrev, tt.sysNow, tt.sysPrev, tt.cores)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPercentOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, percentOf(10, 0))
	assert.InDelta(t, 25.0, percentOf(25, 100), 1e-9)
	assert.Equal(t, 100.0, percentOf(300, 100))
}

func TestClampPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, clampPercent(math.NaN()))
	assert.Equal(t, 0.0, clampPercent(-3))
	assert.Equal(t, 42.5, clampPercent(42.5))
	assert.Equal(t, 100.0, clampPercent(math.Inf(1)))
}

func TestRound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 12.3, round(12.345, 1))
	assert.Equal(t, 12.35, round(12.345678, 2))
	assert.Equal(t, 0.0, round(0, 2))
}
