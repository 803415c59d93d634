package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vanit/vanit/pkg/boardingtoken"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/fleet"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions []fleet.BoardingSession
	records  []fleet.AttendanceRecord

	sessionCounter int
}

func (s *memoryStore) GetOrCreateSession(ctx context.Context, captainID string, routeName string, now time.Time) (*fleet.BoardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(captainID, routeName, now), nil
}

func (s *memoryStore) getOrCreateLocked(captainID string, routeName string, now time.Time) *fleet.BoardingSession {
	for index := range s.sessions {
		session := &s.sessions[index]
		if session.Active && session.CaptainID == captainID && session.RouteName == routeName {
			copied := *session
			return &copied
		}
	}

	s.sessionCounter += 1
	s.sessions = append(s.sessions, fleet.BoardingSession{
		PrimaryIdentifier: fmt.Sprintf("session-%d", s.sessionCounter),
		CaptainID:         captainID,
		RouteName:         routeName,
		StartedAt:         now,
		Active:            true,
	})

	copied := s.sessions[len(s.sessions)-1]
	return &copied
}

func (s *memoryStore) AppendScan(ctx context.Context, captainID string, routeName string, record fleet.AttendanceRecord, suppressionWindow time.Duration) (*fleet.BoardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for index := len(s.records) - 1; index >= 0; index -= 1 {
		previous := s.records[index]
		if previous.StudentID == record.StudentID && previous.RouteName == routeName {
			if record.ScannedAt.Sub(previous.ScannedAt) < suppressionWindow {
				return nil, ErrDuplicateScan
			}
			break
		}
	}

	s.getOrCreateLocked(captainID, routeName, record.ScannedAt)

	for index := range s.sessions {
		session := &s.sessions[index]
		if session.Active && session.CaptainID == captainID && session.RouteName == routeName {
			record.SessionID = session.PrimaryIdentifier
			s.records = append(s.records, record)
			session.OnboardCount += 1

			copied := *session
			return &copied, nil
		}
	}

	return nil, errors.New("session vanished")
}

func (s *memoryStore) EndSessions(ctx context.Context, captainID string, routeName string, now time.Time) ([]fleet.BoardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ended []fleet.BoardingSession
	for index := range s.sessions {
		session := &s.sessions[index]
		if !session.Active || session.CaptainID != captainID {
			continue
		}
		if routeName != "" && session.RouteName != routeName {
			continue
		}

		endedAt := now
		session.Active = false
		session.EndedAt = &endedAt
		ended = append(ended, *session)
	}

	return ended, nil
}

func (s *memoryStore) ActiveSessions(ctx context.Context, captainID string, routeName string) ([]fleet.BoardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []fleet.BoardingSession
	for _, session := range s.sessions {
		if !session.Active {
			continue
		}
		if captainID != "" && session.CaptainID != captainID {
			continue
		}
		if routeName != "" && session.RouteName != routeName {
			continue
		}
		active = append(active, session)
	}

	return active, nil
}

func (s *memoryStore) History(ctx context.Context, studentID string, from *time.Time, to *time.Time, limit int64) ([]fleet.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []fleet.AttendanceRecord
	for index := len(s.records) - 1; index >= 0; index -= 1 {
		record := s.records[index]
		if record.StudentID != studentID {
			continue
		}
		if from != nil && record.ScannedAt.Before(*from) {
			continue
		}
		if to != nil && record.ScannedAt.After(*to) {
			continue
		}
		matched = append(matched, record)

		if limit > 0 && int64(len(matched)) >= limit {
			break
		}
	}

	return matched, nil
}

type fakeAttendanceRoster struct {
	students map[string]*fleet.Student
	captains map[string]*fleet.Captain
}

func (r *fakeAttendanceRoster) Student(ctx context.Context, identifier string) (*fleet.Student, error) {
	return r.students[identifier], nil
}

func (r *fakeAttendanceRoster) ActiveCaptainForRoute(ctx context.Context, routeName string) (*fleet.Captain, error) {
	return r.captains[routeName], nil
}

type managerFixture struct {
	manager *Manager
	store   *memoryStore
	roster  *fakeAttendanceRoster
	tokens  *boardingtoken.Service
	hub     *broadcast.Hub
	at      time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	store := &memoryStore{}
	roster := &fakeAttendanceRoster{
		students: map[string]*fleet.Student{
			"S1": {PrimaryIdentifier: "S1", Name: "First Student", RouteName: "R1", StopName: "North Gate"},
			"S2": {PrimaryIdentifier: "S2", Name: "Second Student", RouteName: "R1", StopName: "South Gate"},
			"S3": {PrimaryIdentifier: "S3", Name: "Third Student", RouteName: "R2", StopName: "East Gate"},
		},
		captains: map[string]*fleet.Captain{
			"R1": {PrimaryIdentifier: "C1", Name: "First Captain", RouteName: "R1", Active: true},
		},
	}

	tokens := boardingtoken.NewService([]byte("fixture-secret"), 5*time.Minute)
	hub := broadcast.NewHub()

	fixture := &managerFixture{
		manager: NewManager(store, roster, tokens, hub, time.Minute),
		store:   store,
		roster:  roster,
		tokens:  tokens,
		hub:     hub,
		at:      time.Date(2024, time.March, 4, 7, 30, 0, 0, time.UTC),
	}
	fixture.manager.now = func() time.Time { return fixture.at }

	return fixture
}

func (f *managerFixture) token(routeName string) string {
	return f.tokens.Encode(f.tokens.Issue(routeName, f.at))
}

func waitForEvent(t *testing.T, subscriber *broadcast.Subscriber) fleet.Event {
	t.Helper()

	select {
	case event := <-subscriber.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return fleet.Event{}
	}
}

func TestRecordScanSharesSessionOnRoute(t *testing.T) {
	fixture := newManagerFixture(t)

	first, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}

	fixture.at = fixture.at.Add(5 * time.Second)
	second, err := fixture.manager.RecordScan(context.Background(), "S2", fixture.token("R1"), nil)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if first.SessionID != second.SessionID {
		t.Errorf("scans landed in different sessions: %q vs %q", first.SessionID, second.SessionID)
	}
	if second.OnboardCount != 2 {
		t.Errorf("onboard count = %d, want 2", second.OnboardCount)
	}
	if len(fixture.store.records) != 2 {
		t.Errorf("ledger has %d records, want 2", len(fixture.store.records))
	}
}

func TestRecordScanSuppressesDuplicates(t *testing.T) {
	fixture := newManagerFixture(t)

	if _, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	fixture.at = fixture.at.Add(20 * time.Second)
	_, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil)
	if !errors.Is(err, ErrDuplicateScan) {
		t.Fatalf("rescan error = %v, want ErrDuplicateScan", err)
	}

	if len(fixture.store.records) != 1 {
		t.Errorf("ledger has %d records, want 1", len(fixture.store.records))
	}
}

func TestRecordScanAllowedAfterSuppressionWindow(t *testing.T) {
	fixture := newManagerFixture(t)

	if _, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	fixture.at = fixture.at.Add(2 * time.Minute)
	result, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.OnboardCount != 2 {
		t.Errorf("onboard count = %d, want 2", result.OnboardCount)
	}
}

func TestRecordScanRejectsRouteMismatch(t *testing.T) {
	fixture := newManagerFixture(t)

	_, err := fixture.manager.RecordScan(context.Background(), "S3", fixture.token("R1"), nil)
	if !errors.Is(err, ErrRouteMismatch) {
		t.Fatalf("error = %v, want ErrRouteMismatch", err)
	}

	if len(fixture.store.records) != 0 {
		t.Errorf("ledger has %d records, want 0", len(fixture.store.records))
	}
	if len(fixture.store.sessions) != 0 {
		t.Errorf("store has %d sessions, want 0", len(fixture.store.sessions))
	}
}

func TestRecordScanRejectsUnknownStudent(t *testing.T) {
	fixture := newManagerFixture(t)

	_, err := fixture.manager.RecordScan(context.Background(), "S99", fixture.token("R1"), nil)
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("error = %v, want ErrStudentNotFound", err)
	}
}

func TestRecordScanRejectsRouteWithoutVehicle(t *testing.T) {
	fixture := newManagerFixture(t)

	_, err := fixture.manager.RecordScan(context.Background(), "S3", fixture.token("R2"), nil)
	if !errors.Is(err, ErrNoActiveVehicle) {
		t.Fatalf("error = %v, want ErrNoActiveVehicle", err)
	}
}

func TestRecordScanRejectsExpiredToken(t *testing.T) {
	fixture := newManagerFixture(t)

	token := fixture.token("R1")
	fixture.at = fixture.at.Add(10 * time.Minute)

	_, err := fixture.manager.RecordScan(context.Background(), "S1", token, nil)
	if !errors.Is(err, boardingtoken.ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
	if len(fixture.store.records) != 0 {
		t.Errorf("ledger has %d records, want 0", len(fixture.store.records))
	}
}

func TestRecordScanPublishesBoardedEvent(t *testing.T) {
	fixture := newManagerFixture(t)

	subscriber := fixture.hub.Subscribe("R1")
	defer fixture.hub.Unsubscribe(subscriber)

	result, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	event := waitForEvent(t, subscriber)
	if event.Type != fleet.EventTypeStudentBoarded {
		t.Fatalf("event type = %q, want %q", event.Type, fleet.EventTypeStudentBoarded)
	}

	boarded, ok := event.Body.(fleet.StudentBoardedEvent)
	if !ok {
		t.Fatalf("event body is %T", event.Body)
	}
	if boarded.StudentID != "S1" || boarded.SessionID != result.SessionID || boarded.OnboardCount != 1 {
		t.Errorf("unexpected event body: %+v", boarded)
	}
}

func TestEndSessionFreezesCountAndPublishes(t *testing.T) {
	fixture := newManagerFixture(t)

	subscriber := fixture.hub.Subscribe("R1")
	defer fixture.hub.Unsubscribe(subscriber)

	if _, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
	waitForEvent(t, subscriber)

	ended, err := fixture.manager.EndSession(context.Background(), "C1", "R1")
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if len(ended) != 1 {
		t.Fatalf("ended %d sessions, want 1", len(ended))
	}
	if ended[0].Active {
		t.Error("ended session still marked active")
	}
	if ended[0].OnboardCount != 1 {
		t.Errorf("final onboard count = %d, want 1", ended[0].OnboardCount)
	}
	if ended[0].EndedAt == nil {
		t.Error("ended session has no end timestamp")
	}

	event := waitForEvent(t, subscriber)
	if event.Type != fleet.EventTypeSessionEnded {
		t.Fatalf("event type = %q, want %q", event.Type, fleet.EventTypeSessionEnded)
	}

	active, err := fixture.manager.ActiveSessions(context.Background(), "C1", "R1")
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("%d sessions still active, want 0", len(active))
	}
}

func TestEndSessionWithoutActiveSessionIsNoOp(t *testing.T) {
	fixture := newManagerFixture(t)

	ended, err := fixture.manager.EndSession(context.Background(), "C1", "R1")
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if len(ended) != 0 {
		t.Errorf("ended %d sessions, want 0", len(ended))
	}
}

func TestEndForCaptainEndsAllRoutes(t *testing.T) {
	fixture := newManagerFixture(t)

	if _, err := fixture.manager.StartSession(context.Background(), "C1", "R1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := fixture.manager.StartSession(context.Background(), "C1", "R2"); err != nil {
		t.Fatalf("start session: %v", err)
	}

	if err := fixture.manager.EndForCaptain(context.Background(), "C1"); err != nil {
		t.Fatalf("end for captain: %v", err)
	}

	active, err := fixture.manager.ActiveSessions(context.Background(), "C1", "")
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("%d sessions still active, want 0", len(active))
	}
}

func TestStartSessionConcurrentCallsShareOneSession(t *testing.T) {
	fixture := newManagerFixture(t)

	const callers = 16

	sessionIDs := make([]string, callers)
	callErrors := make([]error, callers)

	var wait sync.WaitGroup
	for index := 0; index < callers; index += 1 {
		wait.Add(1)
		go func(index int) {
			defer wait.Done()

			session, err := fixture.manager.StartSession(context.Background(), "C1", "R1")
			if err != nil {
				callErrors[index] = err
				return
			}
			sessionIDs[index] = session.PrimaryIdentifier
		}(index)
	}
	wait.Wait()

	for index := 0; index < callers; index += 1 {
		if callErrors[index] != nil {
			t.Fatalf("caller %d: %v", index, callErrors[index])
		}
		if sessionIDs[index] != sessionIDs[0] {
			t.Fatalf("caller %d landed in session %q, caller 0 in %q", index, sessionIDs[index], sessionIDs[0])
		}
	}
	if len(fixture.store.sessions) != 1 {
		t.Errorf("store has %d sessions, want 1", len(fixture.store.sessions))
	}
}

func TestRecordScanConcurrentFirstScansShareOneSession(t *testing.T) {
	fixture := newManagerFixture(t)

	const scanners = 16
	for index := 0; index < scanners; index += 1 {
		identifier := fmt.Sprintf("CS%d", index)
		fixture.roster.students[identifier] = &fleet.Student{
			PrimaryIdentifier: identifier,
			Name:              fmt.Sprintf("Student %d", index),
			RouteName:         "R1",
			StopName:          "North Gate",
		}
	}

	token := fixture.token("R1")

	results := make([]*ScanResult, scanners)
	scanErrors := make([]error, scanners)

	var wait sync.WaitGroup
	for index := 0; index < scanners; index += 1 {
		wait.Add(1)
		go func(index int) {
			defer wait.Done()

			result, err := fixture.manager.RecordScan(context.Background(), fmt.Sprintf("CS%d", index), token, nil)
			results[index] = result
			scanErrors[index] = err
		}(index)
	}
	wait.Wait()

	for index := 0; index < scanners; index += 1 {
		if scanErrors[index] != nil {
			t.Fatalf("scanner %d: %v", index, scanErrors[index])
		}
		if !results[index].Success {
			t.Errorf("scanner %d: result not marked successful", index)
		}
		if results[index].SessionID != results[0].SessionID {
			t.Fatalf("scanner %d landed in session %q, scanner 0 in %q", index, results[index].SessionID, results[0].SessionID)
		}
	}

	if len(fixture.store.sessions) != 1 {
		t.Fatalf("store has %d sessions, want 1", len(fixture.store.sessions))
	}
	if count := fixture.store.sessions[0].OnboardCount; count != scanners {
		t.Errorf("onboard count = %d, want %d", count, scanners)
	}
	if len(fixture.store.records) != scanners {
		t.Errorf("ledger has %d records, want %d", len(fixture.store.records), scanners)
	}
}

func TestStartSessionReturnsExistingSession(t *testing.T) {
	fixture := newManagerFixture(t)

	first, err := fixture.manager.StartSession(context.Background(), "C1", "R1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	second, err := fixture.manager.StartSession(context.Background(), "C1", "R1")
	if err != nil {
		t.Fatalf("start session again: %v", err)
	}

	if first.PrimaryIdentifier != second.PrimaryIdentifier {
		t.Errorf("got two sessions for one pair: %q vs %q", first.PrimaryIdentifier, second.PrimaryIdentifier)
	}
}

func TestHistoryFiltersByWindow(t *testing.T) {
	fixture := newManagerFixture(t)

	if _, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	firstScanAt := fixture.at

	fixture.at = fixture.at.Add(3 * time.Minute)
	if _, err := fixture.manager.RecordScan(context.Background(), "S1", fixture.token("R1"), nil); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	from := firstScanAt.Add(time.Minute)
	records, err := fixture.manager.History(context.Background(), "S1", &from, nil, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("history returned %d records, want 1", len(records))
	}
	if !records[0].ScannedAt.Equal(fixture.at) {
		t.Errorf("record scanned at %v, want %v", records[0].ScannedAt, fixture.at)
	}
}
