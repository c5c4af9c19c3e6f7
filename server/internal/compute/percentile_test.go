package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile_Interpolates(t *testing.T) {
	// k = 4*0.95 = 3.8 → 400*0.2 + 500*0.8 = 480
	got, ok := Percentile([]float64{100, 200, 300, 400, 500}, 95)
	require.True(t, ok)
	assert.InDelta(t, 480.0, got, 1e-9)
}

func TestPercentile_UnsortedInput(t *testing.T) {
	in := []float64{500, 100, 400, 200, 300}
	got, ok := Percentile(in, 95)
	require.True(t, ok)
	assert.InDelta(t, 480.0, got, 1e-9)
	assert.Equal(t, []float64{500, 100, 400, 200, 300}, in, "input must not be reordered")
}

func TestPercentile_ExactRank(t *testing.T) {
	// n=21 → k = 20*0.95 = 19, an exact index.
	values := make([]float64, 21)
	for i := range values {
		values[i] = float64(i * 10)
	}
	got, ok := Percentile(values, 95)
	require.True(t, ok)
	assert.InDelta(t, 190.0, got, 1e-9)
}

func TestPercentile_SingleValue(t *testing.T) {
	got, ok := Percentile([]float64{150}, 95)
	require.True(t, ok)
	assert.Equal(t, 150.0, got)
}

func TestPercentile_TwoValues(t *testing.T) {
	// k = 0.95 → 10*0.05 + 20*0.95 = 19.5
	got, ok := Percentile([]float64{20, 10}, 95)
	require.True(t, ok)
	assert.InDelta(t, 19.5, got, 1e-9)
}

func TestPercentile_Ties(t *testing.T) {
	got, ok := Percentile([]float64{100, 100, 100, 300}, 95)
	require.True(t, ok)
	// k = 2.85 → 100*0.15 + 300*0.85 = 270
	assert.InDelta(t, 270.0, got, 1e-9)
}

func TestPercentile_Bounds(t *testing.T) {
	values := []float64{3, 1, 2}

	lo, _ := Percentile(values, 0)
	assert.Equal(t, 1.0, lo)
	hi, _ := Percentile(values, 100)
	assert.Equal(t, 3.0, hi)
	med, _ := Percentile(values, 50)
	assert.Equal(t, 2.0, med)

	clampedLo, _ := Percentile(values, -5)
	assert.Equal(t, 1.0, clampedLo)
	clampedHi, _ := Percentile(values, 250)
	assert.Equal(t, 3.0, clampedHi)
}

func TestPercentile_Empty(t *testing.T) {
	_, ok := Percentile(nil, 95)
	assert.False(t, ok)
}
