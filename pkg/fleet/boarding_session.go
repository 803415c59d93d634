package fleet

import "time"

// BoardingSession is the bounded window during which a vehicle accepts
// boarding scans for a route. At most one active session exists per
// (captain, route) pair; OnboardCount only grows while the session is active
// and is frozen once it ends.
type BoardingSession struct {
	PrimaryIdentifier string     `json:"sessionId" bson:"primaryidentifier" groups:"basic"`
	CaptainID         string     `json:"captainId" bson:"captainid" groups:"basic"`
	RouteName         string     `json:"routeName" bson:"routename" groups:"basic"`
	StartedAt         time.Time  `json:"startedAt" bson:"startedat" groups:"basic"`
	EndedAt           *time.Time `json:"endedAt,omitempty" bson:"endedat,omitempty" groups:"basic"`
	OnboardCount      int        `json:"onboardCount" bson:"onboardcount" groups:"basic"`
	Active            bool       `json:"active" bson:"active" groups:"basic"`
}

// AttendanceRecord is one append-only ledger entry. Records are never mutated
// or deleted.
type AttendanceRecord struct {
	PrimaryIdentifier string    `json:"recordId" bson:"primaryidentifier" groups:"basic"`
	StudentID         string    `json:"studentId" bson:"studentid" groups:"basic"`
	SessionID         string    `json:"sessionId" bson:"sessionid" groups:"basic"`
	RouteName         string    `json:"routeName" bson:"routename" groups:"basic"`
	CaptainID         string    `json:"captainId" bson:"captainid" groups:"basic"`
	ScannedAt         time.Time `json:"scannedAt" bson:"scannedat" groups:"basic"`
	Location          *Location `json:"location,omitempty" bson:"location,omitempty" groups:"detailed"`
}
