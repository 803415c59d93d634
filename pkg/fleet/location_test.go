package fleet

import (
	"math"
	"testing"
)

func TestDistanceKmZeroAtSamePoint(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"origin", 0, 0},
		{"islamabad", 33.6844, 73.0479},
		{"southern hemisphere", -41.2865, 174.7762},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			distance := DistanceKm(tt.lat, tt.lon, tt.lat, tt.lon)
			if distance != 0 {
				t.Errorf("expected zero distance, got %f", distance)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	forward := DistanceKm(33.6844, 73.0479, 33.7294, 73.0931)
	backward := DistanceKm(33.7294, 73.0931, 33.6844, 73.0479)

	if math.Abs(forward-backward) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", forward, backward)
	}
}

func TestDistanceKmKnownValues(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		expected  float64
		tolerance float64
	}{
		{
			// Classic haversine reference pair
			name:      "north sea crossing",
			lat1:      50.0359,
			lon1:      -5.4253,
			lat2:      58.3838,
			lon2:      -3.0412,
			expected:  940.9,
			tolerance: 1.5,
		},
		{
			name:      "short urban hop",
			lat1:      33.6844,
			lon1:      73.0479,
			lat2:      33.6944,
			lon2:      73.0479,
			expected:  1.112,
			tolerance: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			distance := DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(distance-tt.expected) > tt.tolerance {
				t.Errorf("expected ~%fkm, got %fkm", tt.expected, distance)
			}
		})
	}
}

func TestLocationDistanceMatchesPackageFunction(t *testing.T) {
	a := Location{Latitude: 33.6844, Longitude: 73.0479}
	b := Location{Latitude: 33.5651, Longitude: 73.0169}

	if a.DistanceKm(b) != DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude) {
		t.Error("method and package function disagree")
	}
}
