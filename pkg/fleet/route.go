package fleet

// Route is read-mostly reference data owned by the administrative subsystem.
// The core treats a route and its ordered stop list as immutable within a
// request.
type Route struct {
	Name  string `json:"name" bson:"name" groups:"basic"`
	Stops []Stop `json:"stops" bson:"stops" groups:"basic"`
}

type Stop struct {
	PrimaryIdentifier string `json:"primaryIdentifier" bson:"primaryidentifier" groups:"basic"`
	Name              string `json:"name" bson:"name" groups:"basic"`

	// Approximate coordinates used for geofence distance checks only. Stops
	// without coordinates are skipped by the notifier.
	Location Location `json:"location" bson:"location" groups:"basic"`
}

func (s *Stop) HasLocation() bool {
	return s.Location.Latitude != 0 || s.Location.Longitude != 0
}

func (r *Route) Stop(identifier string) *Stop {
	for index, stop := range r.Stops {
		if stop.PrimaryIdentifier == identifier {
			return &r.Stops[index]
		}
	}

	return nil
}
