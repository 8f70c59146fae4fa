package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

// Calendar UI colors assigned per session state.
const (
	colorScheduled = "9"  // blueberry
	colorCompleted = "2"  // sage
	colorCanceled  = "11" // tomato
)

func ColorForStatus(status models.SessionStatus) string {
	switch status {
	case models.SessionCompleted:
		return colorCompleted
	case models.SessionCanceled:
		return colorCanceled
	default:
		return colorScheduled
	}
}

// StatusFromColor maps any red shade to canceled and any green shade to
// completed, so manual recoloring in the calendar UI still round-trips.
func StatusFromColor(colorID string) models.SessionStatus {
	switch colorID {
	case "11", "6", "5":
		return models.SessionCanceled
	case "2", "10", "12", "13":
		return models.SessionCompleted
	default:
		return models.SessionScheduled
	}
}

// ErrUntimedEvent marks events without a timed, offset-qualified start and
// end. All-day events and naive local times are never guessed at.
var ErrUntimedEvent = errors.New("event has no timed start and end")

// Event is the normalized view of a remote calendar event that the sync
// engine works with.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	ColorID     string
	Updated     time.Time
	SessionID   int64
	CoachID     int64
	PlayerID    int64
	Status      models.SessionStatus
}

// ParseEvent converts a raw API event into its normal form. It fails for
// all-day events and for datetimes missing a timezone offset; callers turn
// that into a structured rejection rather than a fatal error.
func ParseEvent(raw *gcal.Event) (Event, error) {
	if raw.Start == nil || raw.Start.DateTime == "" || raw.End == nil || raw.End.DateTime == "" {
		return Event{}, fmt.Errorf("%w (all-day events are not syncable)", ErrUntimedEvent)
	}

	start, err := time.Parse(time.RFC3339, raw.Start.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("start %q is not a timezone-aware datetime: %v", raw.Start.DateTime, err)
	}
	end, err := time.Parse(time.RFC3339, raw.End.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("end %q is not a timezone-aware datetime: %v", raw.End.DateTime, err)
	}

	ev := Event{
		ID:          raw.Id,
		Summary:     raw.Summary,
		Description: raw.Description,
		Start:       start,
		End:         end,
		ColorID:     raw.ColorId,
		Status:      StatusFromColor(raw.ColorId),
	}

	if raw.Updated != "" {
		if updated, err := time.Parse(time.RFC3339Nano, raw.Updated); err == nil {
			ev.Updated = updated
		}
	}

	if raw.ExtendedProperties != nil && raw.ExtendedProperties.Private != nil {
		private := raw.ExtendedProperties.Private
		ev.SessionID = parseID(private["session_id"])
		ev.CoachID = parseID(private["coach_id"])
		ev.PlayerID = parseID(private["player_id"])
	}

	return ev, nil
}

func parseID(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// BuildSummary renders the canonical event title. Tags are only emitted for
// participants that still exist; name snapshots cover the rest.
func BuildSummary(s *models.Session) string {
	coach := "Coach"
	if s.CoachName != nil && *s.CoachName != "" {
		coach = *s.CoachName
	}
	player := "Player"
	if s.PlayerName != nil && *s.PlayerName != "" {
		player = *s.PlayerName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s × %s", coach, player)
	if s.CoachID != nil {
		fmt.Fprintf(&b, " #C%d", *s.CoachID)
	}
	if s.PlayerID != nil {
		fmt.Fprintf(&b, " #P%d", *s.PlayerID)
	}
	return b.String()
}

// BuildBody renders the full event payload for inserts and patches: UTC
// times, status color and the private metadata that makes identity
// resolution trivial on the way back.
func BuildBody(s *models.Session) *gcal.Event {
	description := ""
	if s.Notes != nil {
		description = *s.Notes
	}

	private := map[string]string{
		"session_id": strconv.FormatInt(s.ID, 10),
	}
	if s.CoachID != nil {
		private["coach_id"] = strconv.FormatInt(*s.CoachID, 10)
	}
	if s.PlayerID != nil {
		private["player_id"] = strconv.FormatInt(*s.PlayerID, 10)
	}

	return &gcal.Event{
		Summary:     BuildSummary(s),
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: s.StartTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &gcal.EventDateTime{
			DateTime: s.EndTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		ColorId:            ColorForStatus(s.Status),
		ExtendedProperties: &gcal.EventExtendedProperties{Private: private},
		// An emptied description must still reach the remote side.
		ForceSendFields: []string{"Description"},
	}
}
