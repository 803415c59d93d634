package fleet

import (
	"encoding/json"
	"time"
)

// VehiclePosition is the latest known position for an active vehicle. It is
// ephemeral: superseded by the next update for the same vehicle and evicted
// after a TTL if no update arrives.
type VehiclePosition struct {
	VehicleID  string    `json:"vehicleId" groups:"basic"`
	RouteName  string    `json:"routeName" groups:"basic"`
	Location   Location  `json:"location" groups:"basic"`
	ObservedAt time.Time `json:"observedAt" groups:"basic"`
}

// MarshalBinary lets positions be stored directly in the redis mirror cache.
func (p VehiclePosition) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}
