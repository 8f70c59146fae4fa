package calsync

import (
	"testing"
	"time"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func buildHashSession() *models.Session {
	return &models.Session{
		ID:        42,
		CoachID:   int64Ptr(1),
		PlayerID:  int64Ptr(5),
		StartTime: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC),
		Status:    models.SessionScheduled,
		Notes:     strPtr("bring cones"),
	}
}

func TestHashStableAcrossTimezones(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	utc := buildHashSession()
	local := buildHashSession()
	local.StartTime = utc.StartTime.In(madrid)
	local.EndTime = utc.EndTime.In(madrid)

	if HashSession(utc) != HashSession(local) {
		t.Fatalf("same instant in different zones must hash equal")
	}
}

func TestHashIgnoresSubsecondPrecision(t *testing.T) {
	a := buildHashSession()
	b := buildHashSession()
	b.StartTime = b.StartTime.Add(300 * time.Millisecond)
	b.EndTime = b.EndTime.Add(999 * time.Millisecond)

	if HashSession(a) != HashSession(b) {
		t.Fatalf("sub-second differences must not change the hash")
	}
}

func TestHashChangesWithContent(t *testing.T) {
	base := HashSession(buildHashSession())

	edited := buildHashSession()
	edited.Notes = strPtr("bring cones and bibs")
	if HashSession(edited) == base {
		t.Errorf("notes change must change the hash")
	}

	moved := buildHashSession()
	moved.StartTime = moved.StartTime.Add(time.Hour)
	if HashSession(moved) == base {
		t.Errorf("start change must change the hash")
	}

	canceled := buildHashSession()
	canceled.Status = models.SessionCanceled
	if HashSession(canceled) == base {
		t.Errorf("status change must change the hash")
	}
}

func TestHashFormat(t *testing.T) {
	hash := HashSession(buildHashSession())
	if len(hash) != 32 {
		t.Fatalf("expected 32 hex characters, got %d (%q)", len(hash), hash)
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("unexpected character %q in hash %q", r, hash)
		}
	}
}

func TestSessionAndEventFingerprintsAgree(t *testing.T) {
	ses := buildHashSession()

	// The event as our own push would produce it.
	ev := calendar.Event{
		ID:          "evt-1",
		Summary:     calendar.BuildSummary(ses),
		Description: *ses.Notes,
		Start:       ses.StartTime,
		End:         ses.EndTime,
		Status:      ses.Status,
		SessionID:   ses.ID,
		CoachID:     *ses.CoachID,
		PlayerID:    *ses.PlayerID,
	}

	if got, want := EventFingerprint(ev, 0, 0).Hash(), HashSession(ses); got != want {
		t.Fatalf("event hash %s != session hash %s", got, want)
	}
}

func TestEventFingerprintFallsBackToSessionIDs(t *testing.T) {
	ses := buildHashSession()

	// A hand-written event has no metadata ids; the matched session's ids
	// must keep the fingerprints comparable.
	ev := calendar.Event{
		Summary:     "Juan × Carlos",
		Description: *ses.Notes,
		Start:       ses.StartTime,
		End:         ses.EndTime,
		Status:      ses.Status,
	}

	if got, want := EventFingerprint(ev, *ses.CoachID, *ses.PlayerID).Hash(), HashSession(ses); got != want {
		t.Fatalf("fallback ids must restore hash symmetry: %s != %s", got, want)
	}
}

func TestNilParticipantHashesAsZero(t *testing.T) {
	ses := buildHashSession()
	ses.CoachID = nil

	fp := SessionFingerprint(ses)
	if fp.CoachID != 0 {
		t.Fatalf("deleted coach must hash as id 0, got %d", fp.CoachID)
	}
}

func TestNeedsPush(t *testing.T) {
	ses := buildHashSession()

	ses.IsDirty = true
	ses.SyncHash = HashSession(ses)
	if !NeedsPush(ses) {
		t.Errorf("dirty sessions always need a push")
	}

	ses.IsDirty = false
	ses.SyncHash = ""
	if !NeedsPush(ses) {
		t.Errorf("sessions without a recorded hash need a push")
	}

	ses.SyncHash = HashSession(ses)
	if NeedsPush(ses) {
		t.Errorf("clean session with matching hash must not need a push")
	}

	ses.Notes = strPtr("changed")
	if !NeedsPush(ses) {
		t.Errorf("content drift from the recorded hash needs a push")
	}
}
