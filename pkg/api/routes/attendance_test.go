package routes

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vanit/vanit/pkg/attendance"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/fleet"
)

type endSessionCall struct {
	CaptainID string
	RouteName string
}

type recordingSessionStore struct {
	mu       sync.Mutex
	endCalls []endSessionCall
	sessions []fleet.BoardingSession
}

func (s *recordingSessionStore) GetOrCreateSession(ctx context.Context, captainID string, routeName string, now time.Time) (*fleet.BoardingSession, error) {
	return &fleet.BoardingSession{
		PrimaryIdentifier: "BS1",
		CaptainID:         captainID,
		RouteName:         routeName,
		StartedAt:         now,
		Active:            true,
	}, nil
}

func (s *recordingSessionStore) AppendScan(ctx context.Context, captainID string, routeName string, record fleet.AttendanceRecord, suppressionWindow time.Duration) (*fleet.BoardingSession, error) {
	return nil, nil
}

func (s *recordingSessionStore) EndSessions(ctx context.Context, captainID string, routeName string, now time.Time) ([]fleet.BoardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endCalls = append(s.endCalls, endSessionCall{CaptainID: captainID, RouteName: routeName})
	return s.sessions, nil
}

func (s *recordingSessionStore) ActiveSessions(ctx context.Context, captainID string, routeName string) ([]fleet.BoardingSession, error) {
	return nil, nil
}

func (s *recordingSessionStore) History(ctx context.Context, studentID string, from *time.Time, to *time.Time, limit int64) ([]fleet.AttendanceRecord, error) {
	return nil, nil
}

func newAttendanceTestApp(store attendance.Store) *fiber.App {
	manager := attendance.NewManager(store, nil, nil, broadcast.NewHub(), time.Minute)

	app := fiber.New()
	AttendanceRouter(app.Group("/attendance"), manager)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body string) int {
	t.Helper()

	request := httptest.NewRequest("POST", path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")

	response, err := app.Test(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	response.Body.Close()

	return response.StatusCode
}

func TestEndSessionWithoutRouteEndsAllCaptainSessions(t *testing.T) {
	store := &recordingSessionStore{
		sessions: []fleet.BoardingSession{
			{PrimaryIdentifier: "BS1", CaptainID: "C1", RouteName: "R1"},
			{PrimaryIdentifier: "BS2", CaptainID: "C1", RouteName: "R2"},
		},
	}
	app := newAttendanceTestApp(store)

	status := postJSON(t, app, "/attendance/sessions/end", `{"captainId": "C1"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 ending sessions without a route, got %d", status)
	}

	if len(store.endCalls) != 1 {
		t.Fatalf("expected 1 EndSessions call, got %d", len(store.endCalls))
	}
	if call := store.endCalls[0]; call.CaptainID != "C1" || call.RouteName != "" {
		t.Errorf("expected captain C1 with no route filter, got %+v", call)
	}
}

func TestEndSessionForwardsRouteFilter(t *testing.T) {
	store := &recordingSessionStore{}
	app := newAttendanceTestApp(store)

	status := postJSON(t, app, "/attendance/sessions/end", `{"captainId": "C1", "routeName": "R2"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	if len(store.endCalls) != 1 {
		t.Fatalf("expected 1 EndSessions call, got %d", len(store.endCalls))
	}
	if call := store.endCalls[0]; call.RouteName != "R2" {
		t.Errorf("expected route filter R2, got %+v", call)
	}
}

func TestEndSessionRequiresCaptain(t *testing.T) {
	store := &recordingSessionStore{}
	app := newAttendanceTestApp(store)

	status := postJSON(t, app, "/attendance/sessions/end", `{"routeName": "R1"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without a captain, got %d", status)
	}

	if len(store.endCalls) != 0 {
		t.Errorf("expected no EndSessions call, got %d", len(store.endCalls))
	}
}

func TestStartSessionRequiresRoute(t *testing.T) {
	store := &recordingSessionStore{}
	app := newAttendanceTestApp(store)

	status := postJSON(t, app, "/attendance/sessions/start", `{"captainId": "C1"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without a route, got %d", status)
	}
}
