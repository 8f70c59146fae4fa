package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

// SyncStore adapts the repositories to the engine's Store interface over a
// pgx pool. Writes through the store itself commit immediately; Begin hands
// out one transaction-backed increment with the same operations.
type SyncStore struct {
	syncStoreOps
	pool *pgxpool.Pool
}

var _ calsync.Store = (*SyncStore)(nil)

func NewSyncStore(pool *pgxpool.Pool) *SyncStore {
	return &SyncStore{
		syncStoreOps: syncStoreOps{
			sessions: NewSessionRepository(pool),
			roster:   NewRosterRepository(pool),
		},
		pool: pool,
	}
}

func (s *SyncStore) Begin(ctx context.Context) (calsync.StoreTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &syncStoreTx{
		syncStoreOps: syncStoreOps{
			sessions: NewSessionRepository(tx),
			roster:   NewRosterRepository(tx),
		},
		tx: tx,
	}, nil
}

type syncStoreTx struct {
	syncStoreOps
	tx pgx.Tx
}

func (t *syncStoreTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *syncStoreTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type syncStoreOps struct {
	sessions *SessionRepository
	roster   *RosterRepository
}

func (o syncStoreOps) GetSessionByID(ctx context.Context, id int64) (*models.Session, error) {
	ses, err := o.sessions.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ses, err
}

func (o syncStoreOps) GetSessionByEventID(ctx context.Context, eventID string) (*models.Session, error) {
	return o.sessions.GetByEventID(ctx, eventID)
}

func (o syncStoreOps) FindUnlinkedOnDay(ctx context.Context, coachID, playerID int64, day time.Time) (*models.Session, error) {
	return o.sessions.FindUnlinkedOnDay(ctx, coachID, playerID, day)
}

func (o syncStoreOps) ListAllSessions(ctx context.Context) ([]models.Session, error) {
	return o.sessions.ListAll(ctx)
}

func (o syncStoreOps) ListLinkedInRange(ctx context.Context, from, to time.Time) ([]models.Session, error) {
	return o.sessions.ListLinkedInRange(ctx, from, to)
}

func (o syncStoreOps) ListElapsedScheduled(ctx context.Context, now time.Time) ([]models.Session, error) {
	return o.sessions.ListElapsedScheduled(ctx, now)
}

func (o syncStoreOps) ListActiveCoaches(ctx context.Context) ([]models.Coach, error) {
	return o.roster.ListActiveCoaches(ctx)
}

func (o syncStoreOps) ListActivePlayers(ctx context.Context) ([]models.Player, error) {
	return o.roster.ListActivePlayers(ctx)
}

func (o syncStoreOps) CreateImported(ctx context.Context, imp calsync.ImportedSession) (*models.Session, error) {
	now := time.Now()
	return o.sessions.Create(ctx, CreateSessionInput{
		CoachID:    &imp.CoachID,
		PlayerID:   &imp.PlayerID,
		CoachName:  &imp.CoachName,
		PlayerName: &imp.PlayerName,
		StartTime:  imp.Start,
		EndTime:    imp.End,
		Status:     imp.Status,
		Notes:      nullableText(imp.Notes),
		Source:     models.SourceCalendar,
		EventID:    &imp.EventID,
		SyncHash:   imp.Hash,
		LastSyncAt: &now,
	})
}

func (o syncStoreOps) ApplyRemoteState(ctx context.Context, sessionID int64, state calsync.RemoteState) (*models.Session, error) {
	return o.sessions.ApplyRemote(ctx, sessionID, UpdateSessionInput{
		StartTime: state.Start,
		EndTime:   state.End,
		Status:    state.Status,
		Notes:     nullableText(state.Notes),
	}, state.Hash)
}

func (o syncStoreOps) LinkEvent(ctx context.Context, sessionID int64, eventID string) error {
	return o.sessions.LinkEvent(ctx, sessionID, eventID)
}

func (o syncStoreOps) UpdateSyncTracking(ctx context.Context, sessionID int64, hash string) (*models.Session, error) {
	return o.sessions.UpdateSyncTracking(ctx, sessionID, hash)
}

func (o syncStoreOps) MarkCompleted(ctx context.Context, sessionID int64) (*models.Session, error) {
	return o.sessions.MarkCompleted(ctx, sessionID)
}

func (o syncStoreOps) DeleteSession(ctx context.Context, sessionID int64) error {
	err := o.sessions.Delete(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
