package repository

import (
	"context"

	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

type RosterRepository struct {
	db DBTX
}

func NewRosterRepository(db DBTX) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) ListActiveCoaches(ctx context.Context) ([]models.Coach, error) {
	query := `
		SELECT id, name, email, is_active, created_at, updated_at
		FROM coaches
		WHERE is_active
		ORDER BY name ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coaches := make([]models.Coach, 0)
	for rows.Next() {
		var c models.Coach
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		coaches = append(coaches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coaches, nil
}

func (r *RosterRepository) ListActivePlayers(ctx context.Context) ([]models.Player, error) {
	query := `
		SELECT id, name, email, is_active, created_at, updated_at
		FROM players
		WHERE is_active
		ORDER BY name ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

func (r *RosterRepository) GetCoachByID(ctx context.Context, id int64) (*models.Coach, error) {
	query := `
		SELECT id, name, email, is_active, created_at, updated_at
		FROM coaches
		WHERE id = $1
	`
	var c models.Coach
	err := r.db.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RosterRepository) GetPlayerByID(ctx context.Context, id int64) (*models.Player, error) {
	query := `
		SELECT id, name, email, is_active, created_at, updated_at
		FROM players
		WHERE id = $1
	`
	var p models.Player
	err := r.db.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
