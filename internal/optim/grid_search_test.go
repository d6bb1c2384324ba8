package optim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/servoloop/internal/config"
)

func baseConfig() *config.Config {
	cfg := config.GetPreset("step")
	cfg.Duration = 1
	return cfg
}

func TestGridPoints(t *testing.T) {
	g := NewGridSearch([]string{"kp", "kd"}, [][]float64{{1, 2}, {10, 20, 30}})
	points := g.points()
	require.Len(t, points, 6)
	assert.Equal(t, map[string]float64{"kp": 1, "kd": 10}, points[0])
	assert.Equal(t, map[string]float64{"kp": 1, "kd": 20}, points[1])
	assert.Equal(t, map[string]float64{"kp": 2, "kd": 30}, points[5])

	assert.Empty(t, NewGridSearch([]string{"kp"}, nil).points())
	assert.Empty(t, NewGridSearch(nil, nil).points())
}

func TestSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch([]string{"kp", "kd"}, [][]float64{{8000, 35000}, {1000, 6000}})
	g.Workers = 2

	res, err := g.Search(context.Background(), Gains(baseConfig(), "tracking_rms"), "tracking_rms")
	require.NoError(t, err)
	require.Len(t, res.All, 4)
	assert.Equal(t, 4, res.Valid)

	for _, c := range res.All {
		require.NoError(t, c.Err)
		assert.GreaterOrEqual(t, c.Value, res.Best.Value)
	}
	assert.Contains(t, res.All, res.Best)
}

func TestSearchUnknownParameter(t *testing.T) {
	g := NewGridSearch([]string{"kf"}, [][]float64{{1, 2}})
	res, err := g.Search(context.Background(), Gains(baseConfig(), "tracking_rms"), "tracking_rms")
	assert.ErrorIs(t, err, ErrNoResult)
	require.NotNil(t, res)
	for _, c := range res.All {
		assert.ErrorIs(t, c.Err, ErrUnknownParam)
	}
}

func TestSearchMissingMetric(t *testing.T) {
	g := NewGridSearch([]string{"kp"}, [][]float64{{20000}})
	_, err := g.Search(context.Background(), Gains(baseConfig(), "peak_speed"), "tracking_rms")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSearchEmptyGrid(t *testing.T) {
	_, err := NewGridSearch(nil, nil).Search(context.Background(), Gains(baseConfig()), "tracking_rms")
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestSearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch([]string{"kp"}, [][]float64{{10000, 20000}})
	_, err := g.Search(ctx, Gains(baseConfig(), "tracking_rms"), "tracking_rms")
	assert.ErrorIs(t, err, context.Canceled)
}
