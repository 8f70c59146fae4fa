package calsync

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

var engineNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

// fakeState is the in-memory session store shared by fakeStore and its
// transactions. Writes apply immediately; the commit counters are what
// the batching tests observe.
type fakeState struct {
	sessions map[int64]*models.Session
	coaches  []models.Coach
	players  []models.Player
	nextID   int64

	begins    int
	commits   int
	rollbacks int

	creates      int
	allowCreates int
	createErr    error
}

func newFakeState() *fakeState {
	return &fakeState{
		sessions: make(map[int64]*models.Session),
		coaches: []models.Coach{
			{ID: 1, Name: "Juan Pérez", IsActive: true},
			{ID: 2, Name: "María García", IsActive: true},
		},
		players: []models.Player{
			{ID: 5, Name: "Carlos Ruiz", IsActive: true},
			{ID: 6, Name: "Lucía Fernández", IsActive: true},
		},
		nextID: 100,
	}
}

func (st *fakeState) put(s *models.Session) *models.Session {
	if s.ID == 0 {
		st.nextID++
		s.ID = st.nextID
	}
	st.sessions[s.ID] = s
	return s
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	return &c
}

func (st *fakeState) GetSessionByID(_ context.Context, id int64) (*models.Session, error) {
	s, ok := st.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (st *fakeState) GetSessionByEventID(_ context.Context, eventID string) (*models.Session, error) {
	for _, s := range st.sessions {
		if s.EventID() == eventID && eventID != "" {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (st *fakeState) FindUnlinkedOnDay(_ context.Context, coachID, playerID int64, day time.Time) (*models.Session, error) {
	dy, dm, dd := day.UTC().Date()
	for _, s := range st.sessions {
		if s.Linked() || derefID(s.CoachID) != coachID || derefID(s.PlayerID) != playerID {
			continue
		}
		sy, sm, sd := s.StartTime.UTC().Date()
		if sy == dy && sm == dm && sd == dd {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (st *fakeState) ListAllSessions(_ context.Context) ([]models.Session, error) {
	out := make([]models.Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *fakeState) ListLinkedInRange(_ context.Context, from, to time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range st.sessions {
		if !s.Linked() {
			continue
		}
		if s.StartTime.Before(from) || s.StartTime.After(to) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *fakeState) ListElapsedScheduled(_ context.Context, now time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range st.sessions {
		if s.Status == models.SessionScheduled && s.EndTime.Before(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *fakeState) ListActiveCoaches(_ context.Context) ([]models.Coach, error) {
	return st.coaches, nil
}

func (st *fakeState) ListActivePlayers(_ context.Context) ([]models.Player, error) {
	return st.players, nil
}

func (st *fakeState) CreateImported(_ context.Context, imp ImportedSession) (*models.Session, error) {
	if st.createErr != nil && st.creates >= st.allowCreates {
		return nil, st.createErr
	}
	st.creates++
	eventID := imp.EventID
	s := &models.Session{
		CoachID:         &imp.CoachID,
		PlayerID:        &imp.PlayerID,
		CoachName:       &imp.CoachName,
		PlayerName:      &imp.PlayerName,
		StartTime:       imp.Start,
		EndTime:         imp.End,
		Status:          imp.Status,
		CalendarEventID: &eventID,
		SyncHash:        imp.Hash,
		Source:          models.SourceCalendar,
		UpdatedAt:       engineNow,
	}
	if imp.Notes != "" {
		notes := imp.Notes
		s.Notes = &notes
	}
	return cloneSession(st.put(s)), nil
}

func (st *fakeState) ApplyRemoteState(_ context.Context, sessionID int64, state RemoteState) (*models.Session, error) {
	s := st.sessions[sessionID]
	s.StartTime = state.Start
	s.EndTime = state.End
	s.Status = state.Status
	if state.Notes != "" {
		notes := state.Notes
		s.Notes = &notes
	} else {
		s.Notes = nil
	}
	s.SyncHash = state.Hash
	s.IsDirty = false
	s.Version++
	s.UpdatedAt = engineNow
	return cloneSession(s), nil
}

func (st *fakeState) LinkEvent(_ context.Context, sessionID int64, eventID string) error {
	id := eventID
	st.sessions[sessionID].CalendarEventID = &id
	return nil
}

func (st *fakeState) UpdateSyncTracking(_ context.Context, sessionID int64, hash string) (*models.Session, error) {
	s := st.sessions[sessionID]
	s.SyncHash = hash
	s.IsDirty = false
	now := engineNow
	s.LastSyncAt = &now
	return cloneSession(s), nil
}

func (st *fakeState) MarkCompleted(_ context.Context, sessionID int64) (*models.Session, error) {
	s := st.sessions[sessionID]
	s.Status = models.SessionCompleted
	s.IsDirty = true
	s.UpdatedAt = engineNow
	return cloneSession(s), nil
}

func (st *fakeState) DeleteSession(_ context.Context, sessionID int64) error {
	delete(st.sessions, sessionID)
	return nil
}

type fakeStore struct{ *fakeState }

func (s *fakeStore) Begin(_ context.Context) (StoreTx, error) {
	s.begins++
	return &fakeTx{s.fakeState}, nil
}

type fakeTx struct{ *fakeState }

func (t *fakeTx) Commit(_ context.Context) error {
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rollbacks++
	return nil
}

// fakeRemote keeps remote events in insertion order so pulls are
// deterministic.
type fakeRemote struct {
	events []*gcal.Event

	inserts       int
	insertErr     error
	patched       map[string]int
	lastPatch     map[string]*gcal.Event
	patchNotFound map[string]bool
	deleted       []string
	bySession     map[int64]string
	nextID        int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		patched:       make(map[string]int),
		lastPatch:     make(map[string]*gcal.Event),
		patchNotFound: make(map[string]bool),
		bySession:     make(map[int64]string),
	}
}

func (r *fakeRemote) add(ev *gcal.Event) {
	r.events = append(r.events, ev)
}

func (r *fakeRemote) ListWindow(_ context.Context, _, _ time.Time) ([]*gcal.Event, error) {
	return r.events, nil
}

func (r *fakeRemote) Insert(_ context.Context, body *gcal.Event) (string, error) {
	if r.insertErr != nil {
		return "", r.insertErr
	}
	r.inserts++
	r.nextID++
	body.Id = newEventID(r.nextID)
	r.events = append(r.events, body)
	return body.Id, nil
}

func newEventID(n int) string {
	return "evt-new-" + string(rune('a'+n-1))
}

func (r *fakeRemote) Patch(_ context.Context, eventID string, body *gcal.Event) error {
	if r.patchNotFound[eventID] {
		return &googleapi.Error{Code: http.StatusNotFound}
	}
	r.patched[eventID]++
	body.Id = eventID
	r.lastPatch[eventID] = body
	for i, ev := range r.events {
		if ev.Id == eventID {
			r.events[i] = body
		}
	}
	return nil
}

func (r *fakeRemote) Delete(_ context.Context, eventID string) error {
	r.deleted = append(r.deleted, eventID)
	return nil
}

func (r *fakeRemote) FindBySessionID(_ context.Context, sessionID int64) (string, error) {
	return r.bySession[sessionID], nil
}

func newTestEngine(store Store, remote Remote, batchSize int) *Engine {
	engine := NewEngine(
		store,
		remote,
		NewGate("08:00", "19:00", time.UTC),
		Window{PastDays: 15, FutureDays: 30},
		batchSize,
		log.New(io.Discard, "", 0),
	)
	engine.now = func() time.Time { return engineNow }
	return engine
}

func storedSession(st *fakeState, coachID, playerID int64, start time.Time, eventID string) *models.Session {
	coachName := "Juan Pérez"
	playerName := "Carlos Ruiz"
	s := &models.Session{
		CoachID:    &coachID,
		PlayerID:   &playerID,
		CoachName:  &coachName,
		PlayerName: &playerName,
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		Status:     models.SessionScheduled,
		Source:     models.SourceApp,
		Version:    1,
		UpdatedAt:  engineNow.Add(-time.Hour),
	}
	if eventID != "" {
		id := eventID
		s.CalendarEventID = &id
	}
	return st.put(s)
}

func rawTimedEvent(id, summary string, start, end time.Time, private map[string]string) *gcal.Event {
	ev := &gcal.Event{
		Id:      id,
		Summary: summary,
		Start:   &gcal.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
	}
	if private != nil {
		ev.ExtendedProperties = &gcal.EventExtendedProperties{Private: private}
	}
	return ev
}

func TestPushCreatesEventForUnlinkedSession(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "")
	remote := newFakeRemote()
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if remote.inserts != 1 {
		t.Fatalf("expected one insert, got %d", remote.inserts)
	}
	if report.Pushed != 1 {
		t.Fatalf("expected pushed=1, got %+v", report)
	}

	stored := st.sessions[ses.ID]
	if !stored.Linked() {
		t.Fatalf("session must be linked after push")
	}
	if stored.SyncHash != HashSession(stored) {
		t.Fatalf("sync hash must record the pushed content")
	}
	if stored.IsDirty {
		t.Fatalf("pushed session must come back clean")
	}
}

func TestPushAdoptsOrphanedEvent(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "")
	remote := newFakeRemote()
	remote.bySession[ses.ID] = "evt-orphan"
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if remote.inserts != 0 {
		t.Fatalf("adoption must not insert a second event")
	}
	if got := st.sessions[ses.ID].EventID(); got != "evt-orphan" {
		t.Fatalf("expected adopted link evt-orphan, got %q", got)
	}
	if report.Pushed != 1 {
		t.Fatalf("expected pushed=1, got %+v", report)
	}
}

func TestPushPatchesDirtyLinkedSession(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "evt-1")
	ses.IsDirty = true
	ses.SyncHash = "stale"
	remote := newFakeRemote()
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if remote.patched["evt-1"] != 1 {
		t.Fatalf("expected one patch on evt-1, got %v", remote.patched)
	}
	if report.Updated != 1 {
		t.Fatalf("expected updated=1, got %+v", report)
	}
	stored := st.sessions[ses.ID]
	if stored.IsDirty || stored.SyncHash != HashSession(stored) {
		t.Fatalf("patched session must be clean and tracked")
	}
}

func TestPushSkipsCleanSessions(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "evt-1")
	ses.SyncHash = HashSession(ses)
	remote := newFakeRemote()
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if len(remote.patched) != 0 || remote.inserts != 0 {
		t.Fatalf("clean session must not touch the remote")
	}
	if report.Skipped != 1 {
		t.Fatalf("expected skipped=1, got %+v", report)
	}
}

func TestPushRecreatesVanishedEvent(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "evt-gone")
	ses.IsDirty = true
	remote := newFakeRemote()
	remote.patchNotFound["evt-gone"] = true
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if remote.inserts != 1 {
		t.Fatalf("vanished event must be recreated, inserts=%d", remote.inserts)
	}
	stored := st.sessions[ses.ID]
	if stored.EventID() == "evt-gone" || !stored.Linked() {
		t.Fatalf("session must link to the recreated event, got %q", stored.EventID())
	}
	if report.Pushed != 1 || report.Updated != 0 {
		t.Fatalf("recreation counts as a push, got %+v", report)
	}
}

func TestPushErrorPropagates(t *testing.T) {
	st := newFakeState()
	storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "")
	remote := newFakeRemote()
	remote.insertErr = &googleapi.Error{Code: http.StatusInternalServerError}
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	if _, err := engine.Push(context.Background()); err == nil {
		t.Fatalf("remote failures must abort the push pass")
	}
}

func TestPullImportsTaggedEvent(t *testing.T) {
	st := newFakeState()
	remote := newFakeRemote()
	start := engineNow.Add(24 * time.Hour)
	remote.add(rawTimedEvent("evt-ext", "Juan × Carlos", start, start.Add(time.Hour),
		map[string]string{"coach_id": "1", "player_id": "5"}))
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Created != 1 {
		t.Fatalf("expected created=1, got %+v", report)
	}
	var imported *models.Session
	for _, s := range st.sessions {
		imported = s
	}
	if imported == nil || imported.EventID() != "evt-ext" {
		t.Fatalf("imported session must link the source event")
	}
	if imported.Source != models.SourceCalendar {
		t.Fatalf("imported session must be marked calendar-sourced")
	}
	if imported.SyncHash == "" {
		t.Fatalf("import must record the reconciled hash")
	}
	if remote.patched["evt-ext"] != 1 {
		t.Fatalf("import must normalize the remote body")
	}
}

func TestPullSecondRunIsIdempotent(t *testing.T) {
	st := newFakeState()
	remote := newFakeRemote()
	start := engineNow.Add(24 * time.Hour)
	remote.add(rawTimedEvent("evt-ext", "Juan × Carlos", start, start.Add(time.Hour),
		map[string]string{"coach_id": "1", "player_id": "5"}))
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	if _, err := engine.Pull(context.Background()); err != nil {
		t.Fatalf("first Pull: %v", err)
	}
	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("second Pull: %v", err)
	}

	if report.Created != 0 || report.Updated != 0 || report.Deleted != 0 {
		t.Fatalf("second run must change nothing, got %+v", report)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected the settled pair to be skipped, got %+v", report)
	}
	if len(st.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(st.sessions))
	}
}

func TestPullRejectsUnidentifiableEvent(t *testing.T) {
	st := newFakeState()
	remote := newFakeRemote()
	start := engineNow.Add(24 * time.Hour)
	remote.add(rawTimedEvent("evt-x", "Dentist appointment", start, start.Add(time.Hour), nil))
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if len(st.sessions) != 0 {
		t.Fatalf("unidentifiable event must not create a session")
	}
	if len(report.Rejected) != 1 {
		t.Fatalf("expected one rejection, got %+v", report.Rejected)
	}
	if !strings.Contains(report.Rejected[0].Suggestion, "#C1 #P5") {
		t.Fatalf("rejection must teach the title format, got %q", report.Rejected[0].Suggestion)
	}
}

func TestPullRejectsAllDayEventWithoutDeleting(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "evt-1")
	ses.SyncHash = HashSession(ses)
	remote := newFakeRemote()
	// The linked event came back all-day: malformed for us, but it still
	// exists remotely and must not read as a deletion.
	remote.add(&gcal.Event{
		Id:      "evt-1",
		Summary: "Juan × Carlos",
		Start:   &gcal.EventDateTime{Date: "2026-03-05"},
		End:     &gcal.EventDateTime{Date: "2026-03-06"},
	})
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if len(report.Rejected) != 1 {
		t.Fatalf("expected a rejection for the all-day event, got %+v", report.Rejected)
	}
	if report.Deleted != 0 {
		t.Fatalf("a malformed event is not a deletion, got %+v", report)
	}
	if _, ok := st.sessions[ses.ID]; !ok {
		t.Fatalf("session must survive")
	}
}

func TestPullAppliesRemoteEdit(t *testing.T) {
	st := newFakeState()
	start := engineNow.Add(24 * time.Hour)
	ses := storedSession(st, 1, 5, start, "evt-1")
	ses.SyncHash = HashSession(ses)
	ses.UpdatedAt = engineNow.Add(-time.Hour)

	remote := newFakeRemote()
	moved := rawTimedEvent("evt-1", "Juan × Carlos", start.Add(time.Hour), start.Add(2*time.Hour),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"})
	moved.Updated = engineNow.Add(-time.Minute).Format(time.RFC3339Nano)
	remote.add(moved)
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Updated != 1 {
		t.Fatalf("expected updated=1, got %+v", report)
	}
	stored := st.sessions[ses.ID]
	if !stored.StartTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("remote edit must land locally, start=%s", stored.StartTime)
	}
	if stored.IsDirty {
		t.Fatalf("applied remote state must leave the session clean")
	}
}

func TestPullDirtyLocalBeatsRemoteEdit(t *testing.T) {
	st := newFakeState()
	start := engineNow.Add(24 * time.Hour)
	ses := storedSession(st, 1, 5, start, "evt-1")
	ses.SyncHash = HashSession(ses)
	notes := "local edit"
	ses.Notes = &notes
	ses.IsDirty = true

	remote := newFakeRemote()
	moved := rawTimedEvent("evt-1", "Juan × Carlos", start.Add(time.Hour), start.Add(2*time.Hour),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"})
	moved.Updated = engineNow.Format(time.RFC3339Nano)
	remote.add(moved)
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if remote.patched["evt-1"] != 1 {
		t.Fatalf("local edits must be pushed over the remote change")
	}
	stored := st.sessions[ses.ID]
	if !stored.StartTime.Equal(start) {
		t.Fatalf("remote edit must not land over dirty local state")
	}
	if stored.IsDirty {
		t.Fatalf("winning push must clear the dirty flag")
	}
	if report.Updated != 1 {
		t.Fatalf("expected updated=1, got %+v", report)
	}
}

func TestPullConvergentEditSkips(t *testing.T) {
	st := newFakeState()
	start := engineNow.Add(24 * time.Hour)
	ses := storedSession(st, 1, 5, start, "evt-1")
	ses.SyncHash = "stale-agreement"
	notes := "same notes"
	ses.Notes = &notes
	ses.IsDirty = true

	// Remote was edited to the exact same content.
	remote := newFakeRemote()
	converged := rawTimedEvent("evt-1", "Juan × Carlos", start, start.Add(time.Hour),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"})
	converged.Description = "same notes"
	remote.add(converged)
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Skipped != 1 || report.Updated != 0 {
		t.Fatalf("convergent edits must skip, got %+v", report)
	}
	if len(remote.patched) != 0 {
		t.Fatalf("nothing should be patched for converged content")
	}
}

func TestPullRejectsInvalidRemoteUpdate(t *testing.T) {
	st := newFakeState()
	start := engineNow.Add(24 * time.Hour)
	ses := storedSession(st, 1, 5, start, "evt-1")
	ses.SyncHash = HashSession(ses)
	ses.UpdatedAt = engineNow.Add(-time.Hour)

	// Remote shrank the session below the minimum duration.
	remote := newFakeRemote()
	shrunk := rawTimedEvent("evt-1", "Juan × Carlos", start, start.Add(10*time.Minute),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"})
	shrunk.Updated = engineNow.Format(time.RFC3339Nano)
	remote.add(shrunk)
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if len(report.Rejected) != 1 || !strings.Contains(report.Rejected[0].Reason, "calendar version rejected") {
		t.Fatalf("invalid remote state must reject, got %+v", report.Rejected)
	}
	stored := st.sessions[ses.ID]
	if !stored.EndTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("rejected remote state must not land")
	}
}

func TestPullDeletesUnseenLinkedSessionInWindow(t *testing.T) {
	st := newFakeState()
	ses := storedSession(st, 1, 5, engineNow.Add(24*time.Hour), "evt-1")
	ses.SyncHash = HashSession(ses)
	remote := newFakeRemote()
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Deleted != 1 {
		t.Fatalf("expected deleted=1, got %+v", report)
	}
	if _, ok := st.sessions[ses.ID]; ok {
		t.Fatalf("session must be removed when its event is gone")
	}
}

func TestPullKeepsUnseenSessionOutsideWindow(t *testing.T) {
	st := newFakeState()
	// Starts 60 days out, beyond the 30-day future bound.
	ses := storedSession(st, 1, 5, engineNow.AddDate(0, 0, 60), "evt-far")
	ses.SyncHash = HashSession(ses)
	remote := newFakeRemote()
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Deleted != 0 {
		t.Fatalf("sessions outside the window are untouchable, got %+v", report)
	}
	if _, ok := st.sessions[ses.ID]; !ok {
		t.Fatalf("out-of-window session must survive")
	}
}

func TestPullDuplicatedEventBecomesItsOwnSession(t *testing.T) {
	st := newFakeState()
	start := engineNow.Add(24 * time.Hour)
	ses := storedSession(st, 1, 5, start, "evt-a")
	ses.SyncHash = HashSession(ses)

	remote := newFakeRemote()
	original := rawTimedEvent("evt-a", "Juan × Carlos", start, start.Add(time.Hour),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"})
	remote.add(original)
	// A UI copy carries the source event's metadata but a different id.
	copied := rawTimedEvent("evt-b", "Juan × Carlos", start.Add(48*time.Hour), start.Add(49*time.Hour),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"})
	remote.add(copied)
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if got := st.sessions[ses.ID].EventID(); got != "evt-a" {
		t.Fatalf("the copy must not steal the original link, got %q", got)
	}
	if report.Created != 1 {
		t.Fatalf("the copy must import as its own session, got %+v", report)
	}
}

func TestPullBatchesCommits(t *testing.T) {
	st := newFakeState()
	remote := newFakeRemote()
	for day := 1; day <= 5; day++ {
		start := engineNow.AddDate(0, 0, day)
		remote.add(rawTimedEvent("evt-"+string(rune('0'+day)), "Juan × Carlos",
			start, start.Add(time.Hour),
			map[string]string{"coach_id": "1", "player_id": "5"}))
	}
	engine := newTestEngine(&fakeStore{st}, remote, 2)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Created != 5 {
		t.Fatalf("expected created=5, got %+v", report)
	}
	// Two full batches of two plus the final commit.
	if st.begins != 3 || st.commits != 3 {
		t.Fatalf("expected 3 begins and 3 commits, got %d/%d", st.begins, st.commits)
	}
	if st.rollbacks != 0 {
		t.Fatalf("clean run must not roll back, got %d", st.rollbacks)
	}
}

func TestPullImportsEventResolvedByName(t *testing.T) {
	st := newFakeState()
	remote := newFakeRemote()
	start := engineNow.AddDate(0, 0, 2)
	remote.add(rawTimedEvent("evt-name", "Juan Pérez × Carlos Ruiz",
		start, start.Add(time.Hour), nil))
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Created != 1 || len(report.Rejected) != 0 {
		t.Fatalf("expected one clean import, got %+v", report)
	}

	var imported *models.Session
	for _, s := range st.sessions {
		if s.EventID() == "evt-name" {
			imported = s
		}
	}
	if imported == nil {
		t.Fatalf("imported session must link to evt-name")
	}
	if derefID(imported.CoachID) != 1 || derefID(imported.PlayerID) != 5 {
		t.Fatalf("names must resolve to coach 1 and player 5, got %v/%v", imported.CoachID, imported.PlayerID)
	}
	if imported.Source != models.SourceCalendar {
		t.Fatalf("imported session must be calendar-sourced, got %q", imported.Source)
	}
	if remote.patched["evt-name"] != 1 {
		t.Fatalf("import must normalize the remote body, got %v", remote.patched)
	}
}

func TestPullRejectsTooShortImport(t *testing.T) {
	st := newFakeState()
	remote := newFakeRemote()
	start := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	remote.add(rawTimedEvent("evt-short", "Juan Pérez × Carlos Ruiz",
		start, start.Add(10*time.Minute), nil))
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if report.Created != 0 || len(st.sessions) != 0 {
		t.Fatalf("a too-short event must not be persisted, got %+v", report)
	}
	if len(report.Rejected) != 1 {
		t.Fatalf("expected one rejection, got %+v", report.Rejected)
	}
	rejection := report.Rejected[0]
	if !strings.Contains(rejection.Reason, "minimum") {
		t.Fatalf("reason must name the minimum duration, got %q", rejection.Reason)
	}
	if rejection.Suggestion == "" {
		t.Fatalf("rejection must carry a suggestion")
	}
}

func TestPullFailurePreservesCommittedBatches(t *testing.T) {
	st := newFakeState()
	st.allowCreates = 2
	st.createErr = errors.New("store write refused")
	remote := newFakeRemote()
	for day := 1; day <= 3; day++ {
		start := engineNow.AddDate(0, 0, day)
		remote.add(rawTimedEvent("evt-"+string(rune('0'+day)), "Juan × Carlos",
			start, start.Add(time.Hour),
			map[string]string{"coach_id": "1", "player_id": "5"}))
	}
	engine := newTestEngine(&fakeStore{st}, remote, 2)

	report, err := engine.Pull(context.Background())
	if err == nil {
		t.Fatalf("expected the store failure to propagate")
	}

	if st.commits != 1 {
		t.Fatalf("the full first batch must stay committed, got %d commits", st.commits)
	}
	if st.rollbacks != 1 {
		t.Fatalf("the open increment must roll back, got %d rollbacks", st.rollbacks)
	}
	if len(st.sessions) != 2 {
		t.Fatalf("expected the two committed imports to survive, got %d", len(st.sessions))
	}
	if report == nil || report.Created != 2 {
		t.Fatalf("report must count the work done before the failure, got %+v", report)
	}
}

func TestRunCompletesElapsedAndPushesStatus(t *testing.T) {
	st := newFakeState()
	start := engineNow.Add(-24 * time.Hour)
	ses := storedSession(st, 1, 5, start, "evt-1")
	ses.SyncHash = HashSession(ses)

	remote := newFakeRemote()
	remote.add(rawTimedEvent("evt-1", "Juan × Carlos", start, start.Add(time.Hour),
		map[string]string{"session_id": "101", "coach_id": "1", "player_id": "5"}))
	engine := newTestEngine(&fakeStore{st}, remote, 0)

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.PastCompleted != 1 {
		t.Fatalf("expected past_completed=1, got %+v", report)
	}
	stored := st.sessions[ses.ID]
	if stored.Status != models.SessionCompleted {
		t.Fatalf("elapsed session must complete, got %s", stored.Status)
	}
	if stored.IsDirty {
		t.Fatalf("the status change must be pushed out by the same run")
	}
	patched := remote.lastPatch["evt-1"]
	if patched == nil || patched.ColorId != "2" {
		t.Fatalf("completed status must recolor the event, got %+v", patched)
	}
}
