package models

import "time"

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCanceled  SessionStatus = "canceled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionCompleted, SessionCanceled:
		return true
	}
	return false
}

const (
	SourceApp      = "app"
	SourceCalendar = "calendar"
)

// Session is the local side of the calendar sync. Participant ids are
// nullable so a session survives roster deletions; the name snapshots keep
// the event title reconstructible afterwards.
type Session struct {
	ID              int64         `json:"id"`
	CoachID         *int64        `json:"coach_id"`
	PlayerID        *int64        `json:"player_id"`
	CoachName       *string       `json:"coach_name"`
	PlayerName      *string       `json:"player_name"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Status          SessionStatus `json:"status"`
	Notes           *string       `json:"notes"`
	CalendarEventID *string       `json:"calendar_event_id"`
	SyncHash        string        `json:"-"`
	IsDirty         bool          `json:"is_dirty"`
	Version         int           `json:"version"`
	Source          string        `json:"source"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	LastSyncAt      *time.Time    `json:"last_sync_at"`
}

// EventID returns the linked calendar event id, or "" when unlinked.
func (s *Session) EventID() string {
	if s.CalendarEventID == nil {
		return ""
	}
	return *s.CalendarEventID
}

func (s *Session) Linked() bool {
	return s.EventID() != ""
}
