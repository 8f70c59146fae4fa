package calsync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

const DefaultBatchSize = 50

// Remote is the calendar surface the engine talks to.
type Remote interface {
	ListWindow(ctx context.Context, from, to time.Time) ([]*gcal.Event, error)
	Insert(ctx context.Context, body *gcal.Event) (string, error)
	Patch(ctx context.Context, eventID string, body *gcal.Event) error
	Delete(ctx context.Context, eventID string) error
	FindBySessionID(ctx context.Context, sessionID int64) (string, error)
}

// StoreOps are the local reads and writes the engine performs. Lookups
// return (nil, nil) when nothing matches.
type StoreOps interface {
	GetSessionByID(ctx context.Context, id int64) (*models.Session, error)
	GetSessionByEventID(ctx context.Context, eventID string) (*models.Session, error)
	FindUnlinkedOnDay(ctx context.Context, coachID, playerID int64, day time.Time) (*models.Session, error)
	ListAllSessions(ctx context.Context) ([]models.Session, error)
	ListLinkedInRange(ctx context.Context, from, to time.Time) ([]models.Session, error)
	ListElapsedScheduled(ctx context.Context, now time.Time) ([]models.Session, error)
	ListActiveCoaches(ctx context.Context) ([]models.Coach, error)
	ListActivePlayers(ctx context.Context) ([]models.Player, error)

	CreateImported(ctx context.Context, imp ImportedSession) (*models.Session, error)
	ApplyRemoteState(ctx context.Context, sessionID int64, state RemoteState) (*models.Session, error)
	LinkEvent(ctx context.Context, sessionID int64, eventID string) error
	UpdateSyncTracking(ctx context.Context, sessionID int64, hash string) (*models.Session, error)
	MarkCompleted(ctx context.Context, sessionID int64) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID int64) error
}

// Store is the local adapter. Writes through Store itself commit
// immediately; Begin opens one increment of a batched unit of work.
type Store interface {
	StoreOps
	Begin(ctx context.Context) (StoreTx, error)
}

// StoreTx is one open increment. Rollback after Commit is a no-op.
type StoreTx interface {
	StoreOps
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ImportedSession is a remote event accepted into the local store.
type ImportedSession struct {
	CoachID    int64
	PlayerID   int64
	CoachName  string
	PlayerName string
	Start      time.Time
	End        time.Time
	Status     models.SessionStatus
	Notes      string
	EventID    string
	Hash       string
}

// RemoteState is the calendar side's content, applied locally after a
// calendar-wins decision.
type RemoteState struct {
	Start  time.Time
	End    time.Time
	Status models.SessionStatus
	Notes  string
	Hash   string
}

// Window is the rolling range deletions are honored in.
type Window struct {
	PastDays   int
	FutureDays int
}

func (w Window) Bounds(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -w.PastDays), now.AddDate(0, 0, w.FutureDays)
}

// Engine reconciles the session store with the remote calendar. It is not
// safe for concurrent runs; callers hold a Locker around every entry point.
type Engine struct {
	store     Store
	remote    Remote
	gate      *Gate
	window    Window
	batchSize int
	logger    *log.Logger
	now       func() time.Time
}

func NewEngine(store Store, remote Remote, gate *Gate, window Window, batchSize int, logger *log.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:     store,
		remote:    remote,
		gate:      gate,
		window:    window,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one full cycle: pull remote changes in, complete elapsed
// sessions, push local changes out.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := newReport(e.now())
	defer report.close(e.now)

	if err := e.pull(ctx, report); err != nil {
		return report, err
	}
	if err := e.completeElapsed(ctx, report); err != nil {
		return report, err
	}
	if err := e.push(ctx, report); err != nil {
		return report, err
	}
	e.logger.Printf("run complete: %s", report.Summary())
	return report, nil
}

// Push propagates local sessions out to the calendar.
func (e *Engine) Push(ctx context.Context) (*Report, error) {
	report := newReport(e.now())
	defer report.close(e.now)
	err := e.push(ctx, report)
	return report, err
}

// Pull imports and reconciles remote events into the store.
func (e *Engine) Pull(ctx context.Context) (*Report, error) {
	report := newReport(e.now())
	defer report.close(e.now)
	err := e.pull(ctx, report)
	return report, err
}

func newReport(start time.Time) *Report {
	return &Report{
		StartedAt: start,
		Rejected:  []Rejection{},
		Warnings:  []ImportWarning{},
	}
}

func (r *Report) close(now func() time.Time) {
	r.Duration = now().Sub(r.StartedAt)
}

func (e *Engine) push(ctx context.Context, report *Report) error {
	sessions, err := e.store.ListAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	for i := range sessions {
		ses := &sessions[i]
		if !ses.Linked() {
			if err := e.pushCreate(ctx, e.store, ses, report); err != nil {
				return err
			}
			continue
		}
		if !NeedsPush(ses) {
			report.Skipped++
			continue
		}
		if err := e.pushUpdate(ctx, e.store, ses, report); err != nil {
			return err
		}
	}
	return nil
}

// pushCreate gives an unlinked session its remote event. The insert is not
// idempotent, so the returned id is persisted immediately, outside any
// batch, and never re-issued on a local failure.
func (e *Engine) pushCreate(ctx context.Context, store StoreOps, ses *models.Session, report *Report) error {
	eventID, err := e.remote.FindBySessionID(ctx, ses.ID)
	if err != nil {
		return fmt.Errorf("probe for session %d: %w", ses.ID, err)
	}
	if eventID != "" {
		// an earlier run created the event but died before recording it
		e.logger.Printf("adopting existing event %s for session %d", shortID(eventID), ses.ID)
	} else {
		eventID, err = e.remote.Insert(ctx, calendar.BuildBody(ses))
		if err != nil {
			return fmt.Errorf("create event for session %d: %w", ses.ID, err)
		}
	}

	if err := store.LinkEvent(ctx, ses.ID, eventID); err != nil {
		return fmt.Errorf("record event %s for session %d: %w", shortID(eventID), ses.ID, err)
	}
	ses.CalendarEventID = &eventID

	updated, err := store.UpdateSyncTracking(ctx, ses.ID, HashSession(ses))
	if err != nil {
		return fmt.Errorf("track session %d: %w", ses.ID, err)
	}
	*ses = *updated
	report.Pushed++
	e.logger.Printf("session %d pushed as event %s", ses.ID, shortID(eventID))
	return nil
}

// pushUpdate patches the linked event with the session's current content.
// A vanished target is recreated through the insert path.
func (e *Engine) pushUpdate(ctx context.Context, store StoreOps, ses *models.Session, report *Report) error {
	if err := e.remote.Patch(ctx, ses.EventID(), calendar.BuildBody(ses)); err != nil {
		if calendar.IsNotFound(err) {
			e.logger.Printf("event %s gone for session %d, recreating", shortID(ses.EventID()), ses.ID)
			ses.CalendarEventID = nil
			return e.pushCreate(ctx, store, ses, report)
		}
		return fmt.Errorf("update event for session %d: %w", ses.ID, err)
	}

	updated, err := store.UpdateSyncTracking(ctx, ses.ID, HashSession(ses))
	if err != nil {
		return fmt.Errorf("track session %d: %w", ses.ID, err)
	}
	*ses = *updated
	report.Updated++
	return nil
}

func (e *Engine) pull(ctx context.Context, report *Report) error {
	now := e.now()
	from, to := e.window.Bounds(now)

	rawEvents, err := e.remote.ListWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list remote events: %w", err)
	}

	coaches, err := e.store.ListActiveCoaches(ctx)
	if err != nil {
		return fmt.Errorf("load coaches: %w", err)
	}
	players, err := e.store.ListActivePlayers(ctx)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	roster := NewRoster(coaches, players)

	seen := make(map[string]bool, len(rawEvents))

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	pending := 0
	for _, raw := range rawEvents {
		// mark before parsing: a malformed event still exists remotely and
		// must not look like a deletion
		if raw.Id != "" {
			seen[raw.Id] = true
		}

		ev, perr := calendar.ParseEvent(raw)
		if perr != nil {
			report.AddRejection(raw.Summary, rawEventStart(raw), perr.Error(),
				"give the event a concrete start and end time with a timezone")
			continue
		}

		changed, err := e.pullEvent(ctx, tx, ev, roster, report)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		pending++
		if pending < e.batchSize {
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			tx = nil
			return fmt.Errorf("commit batch: %w", err)
		}
		tx, err = e.store.Begin(ctx)
		if err != nil {
			tx = nil
			return fmt.Errorf("begin batch: %w", err)
		}
		pending = 0
	}

	if err := e.detectDeletions(ctx, tx, seen, from, to, report); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		tx = nil
		return fmt.Errorf("commit: %w", err)
	}
	tx = nil
	return nil
}

func (e *Engine) pullEvent(ctx context.Context, tx StoreTx, ev calendar.Event, roster *Roster, report *Report) (bool, error) {
	ses, err := e.matchEvent(ctx, tx, ev, roster)
	if err != nil {
		return false, err
	}
	if ses == nil {
		return e.importEvent(ctx, tx, ev, roster, report)
	}
	return e.reconcile(ctx, tx, ses, ev, report)
}

// matchEvent finds the session an event belongs to: metadata session id
// first, then the stored link, then identity resolution against a same-day
// unlinked session.
func (e *Engine) matchEvent(ctx context.Context, tx StoreOps, ev calendar.Event, roster *Roster) (*models.Session, error) {
	if ev.SessionID > 0 {
		ses, err := tx.GetSessionByID(ctx, ev.SessionID)
		if err != nil {
			return nil, fmt.Errorf("load session %d: %w", ev.SessionID, err)
		}
		// a UI-duplicated event copies the metadata of its source; only the
		// event actually linked (or an unlinked session) may claim the id
		if ses != nil && (ses.EventID() == "" || ses.EventID() == ev.ID) {
			if !ses.Linked() {
				if err := tx.LinkEvent(ctx, ses.ID, ev.ID); err != nil {
					return nil, fmt.Errorf("link session %d: %w", ses.ID, err)
				}
				eventID := ev.ID
				ses.CalendarEventID = &eventID
			}
			return ses, nil
		}
	}

	ses, err := tx.GetSessionByEventID(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("load session for event %s: %w", shortID(ev.ID), err)
	}
	if ses != nil {
		return ses, nil
	}

	coachID, playerID, ok := Resolve(ev, roster)
	if !ok {
		return nil, nil
	}
	ses, err = tx.FindUnlinkedOnDay(ctx, coachID, playerID, ev.Start)
	if err != nil {
		return nil, fmt.Errorf("match event %s: %w", shortID(ev.ID), err)
	}
	if ses == nil {
		return nil, nil
	}
	if err := tx.LinkEvent(ctx, ses.ID, ev.ID); err != nil {
		return nil, fmt.Errorf("link session %d: %w", ses.ID, err)
	}
	eventID := ev.ID
	ses.CalendarEventID = &eventID
	e.logger.Printf("linked event %s to session %d", shortID(ev.ID), ses.ID)
	return ses, nil
}

// reconcile brings a matched pair back into agreement.
func (e *Engine) reconcile(ctx context.Context, tx StoreTx, ses *models.Session, ev calendar.Event, report *Report) (bool, error) {
	remoteHash := EventFingerprint(ev, derefID(ses.CoachID), derefID(ses.PlayerID)).Hash()

	// compare against the last reconciled state; content the remote side
	// has not moved since then is the push pass's business, not ours
	lastAgreed := ses.SyncHash
	if lastAgreed == "" {
		lastAgreed = HashSession(ses)
	}
	if lastAgreed == remoteHash {
		if ses.SyncHash == "" {
			// legacy row meeting its event for the first time
			updated, err := tx.UpdateSyncTracking(ctx, ses.ID, remoteHash)
			if err != nil {
				return false, fmt.Errorf("track session %d: %w", ses.ID, err)
			}
			*ses = *updated
			return true, nil
		}
		report.Skipped++
		return false, nil
	}

	local := Side{Hash: HashSession(ses), UpdatedAt: ses.UpdatedAt, Dirty: ses.IsDirty}
	remote := Side{Hash: remoteHash, UpdatedAt: ev.Updated}
	decision, reason := Decide(local, remote)

	switch decision {
	case DecisionSkip:
		report.Skipped++
		return false, nil

	case DecisionAppWins:
		e.logger.Printf("conflict on session %d: app wins (%s)", ses.ID, reason)
		if err := e.pushUpdate(ctx, tx, ses, report); err != nil {
			return false, err
		}
		return true, nil

	default: // calendar wins, but only a valid remote state may land
		ok, why, warnings := e.gate.Validate(ev.Start, ev.End)
		if !ok {
			report.AddRejection(ev.Summary, ev.Start,
				fmt.Sprintf("calendar version rejected: %s", why),
				"fix the event times in the calendar")
			e.logger.Printf("rejected remote update for session %d: %s", ses.ID, why)
			return false, nil
		}
		updated, err := tx.ApplyRemoteState(ctx, ses.ID, RemoteState{
			Start:  ev.Start,
			End:    ev.End,
			Status: ev.Status,
			Notes:  ev.Description,
			Hash:   remoteHash,
		})
		if err != nil {
			return false, fmt.Errorf("apply event %s to session %d: %w", shortID(ev.ID), ses.ID, err)
		}
		*ses = *updated
		if len(warnings) > 0 {
			report.AddWarning(ev.Summary, ev.Start, warnings)
		}
		report.Updated++
		e.logger.Printf("conflict on session %d: calendar wins (%s)", ses.ID, reason)
		return true, nil
	}
}

// importEvent turns an unmatched remote event into a new session, provided
// identity resolves and the gate passes. Failures reject, never abort.
func (e *Engine) importEvent(ctx context.Context, tx StoreTx, ev calendar.Event, roster *Roster, report *Report) (bool, error) {
	coachID, playerID, ok := Resolve(ev, roster)
	if !ok {
		report.AddRejection(ev.Summary, ev.Start,
			"cannot identify coach and player from the event",
			`title the event like "Juan × María #C1 #P5" or keep its id metadata`)
		return false, nil
	}

	coachName, ok := roster.CoachName(coachID)
	if !ok {
		report.AddRejection(ev.Summary, ev.Start,
			fmt.Sprintf("coach #%d is not on the active roster", coachID),
			"check the coach tag against the roster")
		return false, nil
	}
	playerName, ok := roster.PlayerName(playerID)
	if !ok {
		report.AddRejection(ev.Summary, ev.Start,
			fmt.Sprintf("player #%d is not on the active roster", playerID),
			"check the player tag against the roster")
		return false, nil
	}

	valid, why, warnings := e.gate.Validate(ev.Start, ev.End)
	if !valid {
		report.AddRejection(ev.Summary, ev.Start, why, "adjust the event times in the calendar")
		return false, nil
	}

	ses, err := tx.CreateImported(ctx, ImportedSession{
		CoachID:    coachID,
		PlayerID:   playerID,
		CoachName:  coachName,
		PlayerName: playerName,
		Start:      ev.Start,
		End:        ev.End,
		Status:     ev.Status,
		Notes:      ev.Description,
		EventID:    ev.ID,
		Hash:       EventFingerprint(ev, coachID, playerID).Hash(),
	})
	if err != nil {
		return false, fmt.Errorf("import event %s: %w", shortID(ev.ID), err)
	}
	report.Created++
	if len(warnings) > 0 {
		report.AddWarning(ev.Summary, ev.Start, warnings)
	}
	e.logger.Printf("imported event %s as session %d", shortID(ev.ID), ses.ID)

	// normalize the remote body so the event carries our metadata and
	// canonical title from now on; purely cosmetic, so best effort
	if err := e.remote.Patch(ctx, ev.ID, calendar.BuildBody(ses)); err != nil {
		e.logger.Printf("could not normalize event %s: %v", shortID(ev.ID), err)
	}
	return true, nil
}

// detectDeletions removes sessions whose event disappeared from the
// calendar. Only sessions starting inside the window are candidates;
// outside it an unseen event means nothing.
func (e *Engine) detectDeletions(ctx context.Context, tx StoreTx, seen map[string]bool, from, to time.Time, report *Report) error {
	linked, err := tx.ListLinkedInRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list linked sessions: %w", err)
	}
	for i := range linked {
		ses := &linked[i]
		if seen[ses.EventID()] {
			continue
		}
		if err := tx.DeleteSession(ctx, ses.ID); err != nil {
			return fmt.Errorf("delete session %d: %w", ses.ID, err)
		}
		report.Deleted++
		e.logger.Printf("session %d deleted (event %s gone from calendar)", ses.ID, shortID(ses.EventID()))
	}
	return nil
}

func (e *Engine) completeElapsed(ctx context.Context, report *Report) error {
	elapsed, err := e.store.ListElapsedScheduled(ctx, e.now())
	if err != nil {
		return fmt.Errorf("list elapsed sessions: %w", err)
	}
	for i := range elapsed {
		if _, err := e.store.MarkCompleted(ctx, elapsed[i].ID); err != nil {
			return fmt.Errorf("complete session %d: %w", elapsed[i].ID, err)
		}
		report.PastCompleted++
	}
	if report.PastCompleted > 0 {
		e.logger.Printf("%d elapsed sessions marked completed", report.PastCompleted)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func rawEventStart(raw *gcal.Event) time.Time {
	if raw.Start == nil {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw.Start.DateTime); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw.Start.Date); err == nil {
		return t
	}
	return time.Time{}
}
