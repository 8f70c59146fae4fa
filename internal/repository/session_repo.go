package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

const sessionColumns = `id, coach_id, player_id, coach_name, player_name,
	start_time, end_time, status, notes, calendar_event_id,
	sync_hash, is_dirty, version, source, created_at, updated_at, last_sync_at`

type CreateSessionInput struct {
	CoachID    *int64
	PlayerID   *int64
	CoachName  *string
	PlayerName *string
	StartTime  time.Time
	EndTime    time.Time
	Status     models.SessionStatus
	Notes      *string
	Source     string
	EventID    *string
	SyncHash   string
	LastSyncAt *time.Time
}

type UpdateSessionInput struct {
	StartTime time.Time
	EndTime   time.Time
	Status    models.SessionStatus
	Notes     *string
}

type SessionListFilter struct {
	CoachID  *int64
	PlayerID *int64
	Status   string
	From     *time.Time
	To       *time.Time
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID,
		&s.CoachID,
		&s.PlayerID,
		&s.CoachName,
		&s.PlayerName,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.Notes,
		&s.CalendarEventID,
		&s.SyncHash,
		&s.IsDirty,
		&s.Version,
		&s.Source,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.LastSyncAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (coach_id, player_id, coach_name, player_name,
			start_time, end_time, status, notes, calendar_event_id,
			sync_hash, source, last_sync_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.CoachID,
		input.PlayerID,
		input.CoachName,
		input.PlayerName,
		input.StartTime,
		input.EndTime,
		input.Status,
		input.Notes,
		input.EventID,
		input.SyncHash,
		input.Source,
		input.LastSyncAt,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// GetByEventID looks a session up by its linked calendar event. Returns
// (nil, nil) when no session is linked to the event.
func (r *SessionRepository) GetByEventID(ctx context.Context, eventID string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE calendar_event_id = $1`, sessionColumns)
	s, err := scanSession(r.db.QueryRow(ctx, query, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// FindUnlinkedOnDay finds a not-yet-linked session for the same pair on the
// same UTC day, used to adopt remote events that lost their link.
func (r *SessionRepository) FindUnlinkedOnDay(
	ctx context.Context,
	coachID int64,
	playerID int64,
	day time.Time,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE coach_id = $1
		  AND player_id = $2
		  AND calendar_event_id IS NULL
		  AND (start_time AT TIME ZONE 'UTC')::date = $3::date
		ORDER BY start_time ASC
		LIMIT 1
	`, sessionColumns)

	s, err := scanSession(r.db.QueryRow(ctx, query, coachID, playerID, day.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	args := []any{}
	whereParts := []string{"TRUE"}

	if filter.CoachID != nil {
		args = append(args, *filter.CoachID)
		whereParts = append(whereParts, fmt.Sprintf("coach_id = $%d", len(args)))
	}
	if filter.PlayerID != nil {
		args = append(args, *filter.PlayerID)
		whereParts = append(whereParts, fmt.Sprintf("player_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		whereParts = append(whereParts, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		whereParts = append(whereParts, fmt.Sprintf("start_time <= $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE %s
		ORDER BY start_time ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	return r.queryMany(ctx, query, args...)
}

// ListAll returns every session, linked or not. The push pass walks this to
// find sessions that still need a remote event or a remote update.
func (r *SessionRepository) ListAll(ctx context.Context) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions ORDER BY id ASC`, sessionColumns)
	return r.queryMany(ctx, query)
}

// ListLinkedInRange returns linked sessions starting inside [from, to].
// Deletion detection only ever considers this set.
func (r *SessionRepository) ListLinkedInRange(
	ctx context.Context,
	from time.Time,
	to time.Time,
) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE calendar_event_id IS NOT NULL
		  AND start_time >= $1
		  AND start_time <= $2
		ORDER BY start_time ASC
	`, sessionColumns)
	return r.queryMany(ctx, query, from, to)
}

// ListElapsedScheduled returns scheduled sessions whose end time has passed.
func (r *SessionRepository) ListElapsedScheduled(
	ctx context.Context,
	now time.Time,
) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE status = $1 AND end_time <= $2
		ORDER BY end_time ASC
	`, sessionColumns)
	return r.queryMany(ctx, query, models.SessionScheduled, now)
}

func (r *SessionRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateDetails applies a user edit: the session turns dirty and its version
// advances, so the next push cycle propagates it.
func (r *SessionRepository) UpdateDetails(
	ctx context.Context,
	sessionID int64,
	input UpdateSessionInput,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET start_time = $2, end_time = $3, status = $4, notes = $5,
			is_dirty = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx, query, sessionID,
		input.StartTime, input.EndTime, input.Status, input.Notes,
	))
}

// ApplyRemote overwrites local fields with the remote event's state after a
// calendar-wins decision. The row comes back clean and synced.
func (r *SessionRepository) ApplyRemote(
	ctx context.Context,
	sessionID int64,
	input UpdateSessionInput,
	syncHash string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET start_time = $2, end_time = $3, status = $4, notes = $5,
			sync_hash = $6, is_dirty = FALSE, version = version + 1,
			updated_at = NOW(), last_sync_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx, query, sessionID,
		input.StartTime, input.EndTime, input.Status, input.Notes, syncHash,
	))
}

// LinkEvent binds a session to its calendar event id.
func (r *SessionRepository) LinkEvent(ctx context.Context, sessionID int64, eventID string) error {
	query := `
		UPDATE sessions
		SET calendar_event_id = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, sessionID, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateSyncTracking records a successful remote mutation: stores the hash
// of the state that was pushed, clears the dirty flag and stamps the sync.
func (r *SessionRepository) UpdateSyncTracking(
	ctx context.Context,
	sessionID int64,
	syncHash string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET sync_hash = $2, is_dirty = FALSE, version = version + 1,
			updated_at = NOW(), last_sync_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, syncHash))
}

// MarkCompleted flips an elapsed session to completed and dirties it so the
// color change reaches the calendar on the next push.
func (r *SessionRepository) MarkCompleted(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $2, is_dirty = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, models.SessionCompleted))
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
