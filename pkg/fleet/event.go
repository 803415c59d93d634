package fleet

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeLocationUpdate  EventType = "LocationUpdate"
	EventTypeStopApproaching EventType = "StopApproaching"
	EventTypeStudentBoarded  EventType = "StudentBoarded"
	EventTypeSessionEnded    EventType = "SessionEnded"
)

// Event is the envelope pushed through the broadcast fabric. Body holds one
// of the typed event payloads below.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Body      interface{} `json:"body"`
}

// EventEnvelope is the decode-side counterpart of Event for consumers that
// need to inspect Type before unmarshalling the payload.
type EventEnvelope struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

type StopApproachingEvent struct {
	StopID     string    `json:"stopId"`
	StopName   string    `json:"stopName"`
	VehicleID  string    `json:"vehicleId"`
	DistanceKm float64   `json:"distanceKm"`
	RouteName  string    `json:"routeName"`
	At         time.Time `json:"at"`
}

type StudentBoardedEvent struct {
	StudentID    string    `json:"studentId"`
	SessionID    string    `json:"sessionId"`
	RouteName    string    `json:"routeName"`
	OnboardCount int       `json:"onboardCount"`
	At           time.Time `json:"at"`
}

type SessionEndedEvent struct {
	SessionID    string    `json:"sessionId"`
	CaptainID    string    `json:"captainId"`
	RouteName    string    `json:"routeName"`
	OnboardCount int       `json:"onboardCount"`
	At           time.Time `json:"at"`
}
