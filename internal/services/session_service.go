package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
	"github.com/josangl08/Ballers-V3-sub002/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")
	ErrInvalidInput    = errors.New("invalid input")
	ErrCoachNotFound   = errors.New("coach not found")
	ErrPlayerNotFound  = errors.New("player not found")
)

// remoteDeleter is the slice of the calendar client that session deletion
// needs.
type remoteDeleter interface {
	Delete(ctx context.Context, eventID string) error
}

// SessionService is the app-side session lifecycle. Edits leave sessions
// dirty; the sync engine propagates them on its next cycle.
type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	rosterRepo  *repository.RosterRepository
	gate        *calsync.Gate
	remote      remoteDeleter
	logger      *log.Logger
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	rosterRepo *repository.RosterRepository,
	gate *calsync.Gate,
	client *calendar.Client,
	logger *log.Logger,
) *SessionService {
	s := &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		rosterRepo:  rosterRepo,
		gate:        gate,
		logger:      logger,
	}
	if client != nil {
		s.remote = client
	}
	return s
}

type CreateSessionInput struct {
	CoachID   int64
	PlayerID  int64
	StartTime time.Time
	EndTime   time.Time
	Notes     *string
}

// Create books a session through the same validation gate the import path
// uses. The new session has no event yet; the next push cycle creates it.
func (s *SessionService) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, []string, error) {
	if input.CoachID <= 0 || input.PlayerID <= 0 {
		return nil, nil, ErrInvalidInput
	}

	ok, reason, warnings := s.gate.Validate(input.StartTime, input.EndTime)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidSession, reason)
	}

	coach, err := s.rosterRepo.GetCoachByID(ctx, input.CoachID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrCoachNotFound
		}
		return nil, nil, err
	}
	if !coach.IsActive {
		return nil, nil, ErrCoachNotFound
	}

	player, err := s.rosterRepo.GetPlayerByID(ctx, input.PlayerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrPlayerNotFound
		}
		return nil, nil, err
	}
	if !player.IsActive {
		return nil, nil, ErrPlayerNotFound
	}

	ses, err := s.sessionRepo.Create(ctx, repository.CreateSessionInput{
		CoachID:    &coach.ID,
		PlayerID:   &player.ID,
		CoachName:  &coach.Name,
		PlayerName: &player.Name,
		StartTime:  input.StartTime.UTC(),
		EndTime:    input.EndTime.UTC(),
		Status:     models.SessionScheduled,
		Notes:      input.Notes,
		Source:     models.SourceApp,
	})
	if err != nil {
		return nil, nil, err
	}
	return ses, warnings, nil
}

type UpdateSessionInput struct {
	StartTime time.Time
	EndTime   time.Time
	Status    models.SessionStatus
	Notes     *string
}

// Update applies a user edit. The session turns dirty so the change beats
// any concurrent remote edit in the next reconciliation.
func (s *SessionService) Update(
	ctx context.Context,
	sessionID int64,
	input UpdateSessionInput,
) (*models.Session, []string, error) {
	if !input.Status.Valid() {
		return nil, nil, ErrInvalidInput
	}

	ok, reason, warnings := s.gate.Validate(input.StartTime, input.EndTime)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidSession, reason)
	}

	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	updated, err := s.sessionRepo.UpdateDetails(ctx, sessionID, repository.UpdateSessionInput{
		StartTime: input.StartTime.UTC(),
		EndTime:   input.EndTime.UTC(),
		Status:    input.Status,
		Notes:     input.Notes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}
	return updated, warnings, nil
}

// Delete removes a session and its calendar event. A remote 404 counts as
// done; any other remote failure aborts so nothing is orphaned.
func (s *SessionService) Delete(ctx context.Context, sessionID int64) error {
	ses, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if ses.Linked() && s.remote != nil {
		if err := s.remote.Delete(ctx, ses.EventID()); err != nil && !calendar.IsNotFound(err) {
			return fmt.Errorf("delete calendar event: %w", err)
		}
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (s *SessionService) Get(ctx context.Context, sessionID int64) (*models.Session, error) {
	return s.getSession(ctx, sessionID)
}

func (s *SessionService) List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error) {
	return s.sessionRepo.List(ctx, filter)
}

// CompleteElapsed flips scheduled sessions whose end time passed to
// completed. They come back dirty, so the status color reaches the
// calendar on the next push.
func (s *SessionService) CompleteElapsed(ctx context.Context) (int, error) {
	elapsed, err := s.sessionRepo.ListElapsedScheduled(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range elapsed {
		if _, err := s.sessionRepo.MarkCompleted(ctx, elapsed[i].ID); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.logger.Printf("%d elapsed sessions marked completed", count)
	}
	return count, nil
}

func (s *SessionService) getSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	ses, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return ses, nil
}
