package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEstimatorRejectsNonPositiveSpeed(t *testing.T) {
	_, err := NewEstimator(0)
	require.Error(t, err)

	_, err = NewEstimator(-10)
	require.Error(t, err)
}

func TestEstimateKnownDistance(t *testing.T) {
	est, err := NewEstimator(30)
	require.NoError(t, err)

	// Cairo Tower to the Giza pyramids is roughly 13 km as the crow flies.
	got, err := est.Estimate(30.0459, 31.2243, 29.9773, 31.1325)
	require.NoError(t, err)

	assert.InDelta(t, 11.7, got.DistanceKm, 0.5)
	// At 30 km/h the ETA is distance * 2 minutes per km.
	assert.InDelta(t, got.DistanceKm*2, got.ETAMinutes, 0.2)
}

func TestEstimateIdenticalPoints(t *testing.T) {
	est, err := NewEstimator(30)
	require.NoError(t, err)

	got, err := est.Estimate(30.0459, 31.2243, 30.0459, 31.2243)
	require.NoError(t, err)

	assert.Zero(t, got.DistanceKm)
	assert.Zero(t, got.ETAMinutes)
}

func TestEstimateDeterministic(t *testing.T) {
	est, err := NewEstimator(42.5)
	require.NoError(t, err)

	first, err := est.Estimate(30.1, 31.1, 29.9, 31.3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := est.Estimate(30.1, 31.1, 29.9, 31.3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEstimateSingleDecimalRounding(t *testing.T) {
	est, err := NewEstimator(30)
	require.NoError(t, err)

	got, err := est.Estimate(30.0459, 31.2243, 29.9773, 31.1325)
	require.NoError(t, err)

	assert.Equal(t, got.DistanceKm, float64(int(got.DistanceKm*10))/10)
	assert.Equal(t, got.ETAMinutes, float64(int(got.ETAMinutes*10))/10)
}

func TestEstimateInvalidCoordinates(t *testing.T) {
	est, err := NewEstimator(30)
	require.NoError(t, err)

	cases := []struct {
		name                   string
		dLat, dLng, tLat, tLng float64
	}{
		{"driver latitude too high", 91, 0, 0, 0},
		{"driver longitude too low", 0, -181, 0, 0},
		{"target latitude too low", 0, 0, -90.5, 0},
		{"target longitude too high", 0, 0, 0, 180.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := est.Estimate(tc.dLat, tc.dLng, tc.tLat, tc.tLng)
			assert.Error(t, err)
		})
	}
}
