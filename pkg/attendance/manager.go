package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/fleet"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrRouteMismatch   = errors.New("student is not assigned to the token's route")
	ErrNoActiveVehicle = errors.New("no active vehicle for route")
	ErrDuplicateScan   = errors.New("student already scanned within the suppression window")
)

type Roster interface {
	Student(ctx context.Context, identifier string) (*fleet.Student, error)
	ActiveCaptainForRoute(ctx context.Context, routeName string) (*fleet.Captain, error)
}

type TokenValidator interface {
	Validate(serialized string, now time.Time) (string, error)
}

// ScanResult is what the rider's client displays after a successful scan.
type ScanResult struct {
	Success      bool      `json:"success"`
	RouteName    string    `json:"routeName"`
	CaptainID    string    `json:"captainId"`
	CaptainName  string    `json:"captainName"`
	SessionID    string    `json:"sessionId"`
	OnboardCount int       `json:"onboardCount"`
	ScannedAt    time.Time `json:"scannedAt"`
}

// Manager owns the boarding session lifecycle and the attendance ledger. The
// recent-scan map is a fast path only; the authoritative duplicate check runs
// inside the store's transaction.
type Manager struct {
	Suppression time.Duration

	store  Store
	roster Roster
	tokens TokenValidator
	hub    *broadcast.Hub

	mu          sync.Mutex
	recentScans map[string]time.Time

	now func() time.Time
}

func NewManager(store Store, roster Roster, tokens TokenValidator, hub *broadcast.Hub, suppression time.Duration) *Manager {
	return &Manager{
		Suppression: suppression,

		store:       store,
		roster:      roster,
		tokens:      tokens,
		hub:         hub,
		recentScans: map[string]time.Time{},
		now:         time.Now,
	}
}

// RecordScan validates the rider's token and appends one ledger entry. All
// business-rule failures return before any durable mutation; the append and
// counter increment are atomic inside the store.
func (m *Manager) RecordScan(ctx context.Context, studentID string, serializedToken string, location *fleet.Location) (*ScanResult, error) {
	now := m.now()

	routeName, err := m.tokens.Validate(serializedToken, now)
	if err != nil {
		m.auditScan(studentID, routeName, "", err, now)
		return nil, err
	}

	student, err := m.roster.Student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		m.auditScan(studentID, routeName, "", ErrStudentNotFound, now)
		return nil, ErrStudentNotFound
	}
	if student.RouteName != routeName {
		m.auditScan(studentID, routeName, "", ErrRouteMismatch, now)
		return nil, ErrRouteMismatch
	}

	captain, err := m.roster.ActiveCaptainForRoute(ctx, routeName)
	if err != nil {
		return nil, err
	}
	if captain == nil {
		m.auditScan(studentID, routeName, "", ErrNoActiveVehicle, now)
		return nil, ErrNoActiveVehicle
	}

	suppressionKey := fmt.Sprintf("%s:%s", studentID, routeName)

	m.mu.Lock()
	if last, ok := m.recentScans[suppressionKey]; ok && now.Sub(last) < m.Suppression {
		m.mu.Unlock()
		m.auditScan(studentID, routeName, captain.PrimaryIdentifier, ErrDuplicateScan, now)
		return nil, ErrDuplicateScan
	}
	m.mu.Unlock()

	record := fleet.AttendanceRecord{
		PrimaryIdentifier: uuid.New().String(),
		StudentID:         studentID,
		RouteName:         routeName,
		CaptainID:         captain.PrimaryIdentifier,
		ScannedAt:         now,
		Location:          location,
	}

	session, err := m.store.AppendScan(ctx, captain.PrimaryIdentifier, routeName, record, m.Suppression)
	if err != nil {
		m.auditScan(studentID, routeName, captain.PrimaryIdentifier, err, now)
		return nil, err
	}

	m.mu.Lock()
	m.recentScans[suppressionKey] = now
	m.mu.Unlock()

	m.hub.Publish(routeName, fleet.Event{
		Type:      fleet.EventTypeStudentBoarded,
		Timestamp: now,
		Body: fleet.StudentBoardedEvent{
			StudentID:    studentID,
			SessionID:    session.PrimaryIdentifier,
			RouteName:    routeName,
			OnboardCount: session.OnboardCount,
			At:           now,
		},
	})

	m.auditScan(studentID, routeName, captain.PrimaryIdentifier, nil, now)

	log.Info().
		Str("student", studentID).
		Str("route", routeName).
		Int("onboard", session.OnboardCount).
		Msg("Student boarded")

	return &ScanResult{
		Success:      true,
		RouteName:    routeName,
		CaptainID:    captain.PrimaryIdentifier,
		CaptainName:  captain.Name,
		SessionID:    session.PrimaryIdentifier,
		OnboardCount: session.OnboardCount,
		ScannedAt:    now,
	}, nil
}

// StartSession explicitly opens (or returns) the active session for the
// pair. Sessions are otherwise created lazily on the first valid scan.
func (m *Manager) StartSession(ctx context.Context, captainID string, routeName string) (*fleet.BoardingSession, error) {
	return m.store.GetOrCreateSession(ctx, captainID, routeName, m.now())
}

// EndSession is idempotent: ending a pair with no active session is a no-op
// success.
func (m *Manager) EndSession(ctx context.Context, captainID string, routeName string) ([]fleet.BoardingSession, error) {
	now := m.now()

	sessions, err := m.store.EndSessions(ctx, captainID, routeName, now)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		m.hub.Publish(session.RouteName, fleet.Event{
			Type:      fleet.EventTypeSessionEnded,
			Timestamp: now,
			Body: fleet.SessionEndedEvent{
				SessionID:    session.PrimaryIdentifier,
				CaptainID:    session.CaptainID,
				RouteName:    session.RouteName,
				OnboardCount: session.OnboardCount,
				At:           now,
			},
		})

		log.Info().
			Str("session", session.PrimaryIdentifier).
			Str("captain", session.CaptainID).
			Int("onboard", session.OnboardCount).
			Msg("Boarding session ended")
	}

	return sessions, nil
}

// EndForCaptain ends every active session the captain holds. Invoked by the
// location registry when a vehicle stops broadcasting.
func (m *Manager) EndForCaptain(ctx context.Context, captainID string) error {
	_, err := m.EndSession(ctx, captainID, "")
	return err
}

func (m *Manager) ActiveSessions(ctx context.Context, captainID string, routeName string) ([]fleet.BoardingSession, error) {
	return m.store.ActiveSessions(ctx, captainID, routeName)
}

func (m *Manager) History(ctx context.Context, studentID string, from *time.Time, to *time.Time, limit int64) ([]fleet.AttendanceRecord, error) {
	return m.store.History(ctx, studentID, from, to, limit)
}
