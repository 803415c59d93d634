package fleet

import "math"

const earthRadiusKm = 6371

type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude" groups:"basic"`
	Longitude float64 `json:"longitude" bson:"longitude" groups:"basic"`
}

// DistanceKm returns the great-circle (haversine) distance between the two
// coordinates in kilometres.
func (l Location) DistanceKm(other Location) float64 {
	deltaLat := toRadians(other.Latitude - l.Latitude)
	deltaLon := toRadians(other.Longitude - l.Longitude)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(toRadians(l.Latitude))*math.Cos(toRadians(other.Latitude))*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func DistanceKm(lat1 float64, lon1 float64, lat2 float64, lon2 float64) float64 {
	return Location{Latitude: lat1, Longitude: lon1}.DistanceKm(Location{Latitude: lat2, Longitude: lon2})
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
