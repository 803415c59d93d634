package attendance

import (
	"context"
	"time"

	"github.com/vanit/vanit/pkg/fleet"
)

// Store is the durable side of the session manager and the ledger. Sessions
// and attendance records must survive restarts; everything the Manager keeps
// in memory is a rebuildable cache.
type Store interface {
	// GetOrCreateSession returns the active session for the pair, creating
	// one atomically when none exists. Concurrent calls for the same pair
	// must yield a single session.
	GetOrCreateSession(ctx context.Context, captainID string, routeName string, now time.Time) (*fleet.BoardingSession, error)

	// AppendScan performs the duplicate-scan ledger check, resolves the
	// session, appends the record and increments the onboard counter as one
	// atomic unit. Returns the session after the increment.
	AppendScan(ctx context.Context, captainID string, routeName string, record fleet.AttendanceRecord, suppressionWindow time.Duration) (*fleet.BoardingSession, error)

	// EndSessions marks the captain's active sessions (optionally narrowed to
	// one route) as ended and returns them. No active sessions is not an
	// error.
	EndSessions(ctx context.Context, captainID string, routeName string, now time.Time) ([]fleet.BoardingSession, error)

	ActiveSessions(ctx context.Context, captainID string, routeName string) ([]fleet.BoardingSession, error)

	History(ctx context.Context, studentID string, from *time.Time, to *time.Time, limit int64) ([]fleet.AttendanceRecord, error)
}
