package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdock/assetdock/internal/model"
)

// SetRepository persists asset sets.
type SetRepository struct {
	pool *pgxpool.Pool
}

// NewSetRepository constructs a repository.
func NewSetRepository(pool *pgxpool.Pool) *SetRepository {
	return &SetRepository{pool: pool}
}

// Create inserts a set.
func (r *SetRepository) Create(ctx context.Context, set *model.AssetSet) error {
	set.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO asset_sets (id, name, description, created_at) VALUES ($1,$2,$3,$4)
	`, set.ID, set.Name, set.Description, set.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset set: %w", err)
	}
	return nil
}

// Get returns a set by id.
func (r *SetRepository) Get(ctx context.Context, id string) (*model.AssetSet, error) {
	var set model.AssetSet
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at FROM asset_sets WHERE id=$1
	`, id)
	if err := row.Scan(&set.ID, &set.Name, &set.Description, &set.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("asset set %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("select asset set: %w", err)
	}
	return &set, nil
}

// List returns all sets, newest first.
func (r *SetRepository) List(ctx context.Context) ([]model.AssetSet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at FROM asset_sets ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list asset sets: %w", err)
	}
	defer rows.Close()
	var sets []model.AssetSet
	for rows.Next() {
		var set model.AssetSet
		if err := rows.Scan(&set.ID, &set.Name, &set.Description, &set.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}
