package geo

import (
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Estimate is a straight-line distance and travel-time approximation
// between a driver and a target point.
type Estimate struct {
	DistanceKm float64 `json:"distance_km"`
	ETAMinutes float64 `json:"eta_minutes"`
}

// Estimator computes haversine distances and converts them to ETAs using a
// configured average speed. It is deterministic: the same inputs always
// produce the same estimate.
type Estimator struct {
	speedKmh float64
}

// NewEstimator builds an Estimator with the assumed average speed in km/h.
func NewEstimator(speedKmh float64) (*Estimator, error) {
	if speedKmh <= 0 {
		return nil, fmt.Errorf("assumed speed must be positive, got %v", speedKmh)
	}
	return &Estimator{speedKmh: speedKmh}, nil
}

// Estimate returns the distance and ETA from the driver position to the
// target. Coordinates outside the valid latitude/longitude ranges are
// rejected rather than silently clamped.
func (e *Estimator) Estimate(driverLat, driverLng, targetLat, targetLng float64) (Estimate, error) {
	for _, c := range []struct {
		name string
		lat  float64
		lng  float64
	}{
		{"driver", driverLat, driverLng},
		{"target", targetLat, targetLng},
	} {
		if err := validateCoordinates(c.lat, c.lng); err != nil {
			return Estimate{}, fmt.Errorf("%s position: %w", c.name, err)
		}
	}

	distance := haversineKm(driverLat, driverLng, targetLat, targetLng)
	est := Estimate{DistanceKm: round1(distance)}
	if est.DistanceKm == 0 {
		return est, nil
	}
	est.ETAMinutes = round1(distance / e.speedKmh * 60)
	return est, nil
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinates must be finite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
