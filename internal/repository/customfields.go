package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdock/assetdock/internal/model"
)

// CustomFieldRepository persists custom field definitions.
type CustomFieldRepository struct {
	pool *pgxpool.Pool
}

// NewCustomFieldRepository constructs a repository.
func NewCustomFieldRepository(pool *pgxpool.Pool) *CustomFieldRepository {
	return &CustomFieldRepository{pool: pool}
}

// Keys returns the known custom field keys for a target entity.
func (r *CustomFieldRepository) Keys(ctx context.Context, target string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT key FROM custom_field_defs WHERE target=$1 ORDER BY key
	`, target)
	if err != nil {
		return nil, fmt.Errorf("list custom field keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan custom field key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Ensure inserts a definition if one does not already exist for the
// (target, key) pair.
func (r *CustomFieldRepository) Ensure(ctx context.Context, def *model.CustomFieldDefinition) error {
	def.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO custom_field_defs (id, target, key, label, field_type, set_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (target, key) DO NOTHING
	`, def.ID, def.Target, def.Key, def.Label, def.FieldType, def.SetID, def.CreatedAt)
	if err != nil {
		return fmt.Errorf("ensure custom field: %w", err)
	}
	return nil
}
