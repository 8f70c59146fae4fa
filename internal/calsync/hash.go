package calsync

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

// Fingerprint is the canonical content of a session or event: exactly the
// fields both sides share, nothing else.
type Fingerprint struct {
	CoachID  int64
	PlayerID int64
	Start    time.Time
	End      time.Time
	Status   models.SessionStatus
	Notes    string
}

// Hash digests the canonical form: fields joined with "|" in fixed order,
// timestamps in UTC truncated to whole seconds. Two sides describing the
// same logical state always produce the same hash.
func (f Fingerprint) Hash() string {
	parts := []string{
		strconv.FormatInt(f.CoachID, 10),
		strconv.FormatInt(f.PlayerID, 10),
		canonicalTime(f.Start),
		canonicalTime(f.End),
		string(f.Status),
		f.Notes,
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func canonicalTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// SessionFingerprint captures a session's canonical content. A deleted
// participant hashes as id 0.
func SessionFingerprint(s *models.Session) Fingerprint {
	notes := ""
	if s.Notes != nil {
		notes = *s.Notes
	}
	return Fingerprint{
		CoachID:  derefID(s.CoachID),
		PlayerID: derefID(s.PlayerID),
		Start:    s.StartTime,
		End:      s.EndTime,
		Status:   s.Status,
		Notes:    notes,
	}
}

// EventFingerprint captures an event's canonical content. Events we created
// carry their ids in metadata; for tagless events the matched session's ids
// keep the two fingerprints comparable.
func EventFingerprint(ev calendar.Event, fallbackCoach, fallbackPlayer int64) Fingerprint {
	coach, player := ev.CoachID, ev.PlayerID
	if coach == 0 {
		coach = fallbackCoach
	}
	if player == 0 {
		player = fallbackPlayer
	}
	return Fingerprint{
		CoachID:  coach,
		PlayerID: player,
		Start:    ev.Start,
		End:      ev.End,
		Status:   ev.Status,
		Notes:    ev.Description,
	}
}

func HashSession(s *models.Session) string {
	return SessionFingerprint(s).Hash()
}

// NeedsPush reports whether a linked session's content diverged from the
// last reconciled state.
func NeedsPush(s *models.Session) bool {
	if s.IsDirty {
		return true
	}
	if s.SyncHash == "" {
		return true
	}
	return HashSession(s) != s.SyncHash
}

func derefID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
