package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdock/assetdock/internal/model"
)

// AssetRepository persists assets.
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a repository.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

const assetColumns = `id, name, serial_number, status, location, asset_type, vendor, order_number,
	purchase_date, purchase_price, warranty_end, assigned_user_id, tags, set_id, extra, created_at, updated_at`

// FindBySerial looks an asset up by serial number across all sets.
func (r *AssetRepository) FindBySerial(ctx context.Context, serial string) (*model.Asset, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE serial_number=$1 LIMIT 1
	`, serial)
	return scanAsset(row)
}

// FindBySerialInSet looks an asset up by serial number within one set.
func (r *AssetRepository) FindBySerialInSet(ctx context.Context, serial, setID string) (*model.Asset, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE serial_number=$1 AND set_id=$2 LIMIT 1
	`, serial, setID)
	return scanAsset(row)
}

// Create inserts an asset.
func (r *AssetRepository) Create(ctx context.Context, asset *model.Asset) error {
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	tags, extra, err := encodeAssetJSON(asset)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, asset.ID, asset.Name, asset.SerialNumber, asset.Status, asset.Location, asset.AssetType,
		asset.Vendor, asset.OrderNumber, asset.PurchaseDate, asset.PurchasePrice, asset.WarrantyEnd,
		asset.AssignedUserID, tags, asset.SetID, extra, asset.CreatedAt, asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Update replaces the mutable columns of an existing asset.
func (r *AssetRepository) Update(ctx context.Context, asset *model.Asset) error {
	asset.UpdatedAt = time.Now().UTC()
	tags, extra, err := encodeAssetJSON(asset)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE assets SET name=$2, serial_number=$3, status=$4, location=$5, asset_type=$6,
			vendor=$7, order_number=$8, purchase_date=$9, purchase_price=$10, warranty_end=$11,
			assigned_user_id=$12, tags=$13, set_id=$14, extra=$15, updated_at=$16
		WHERE id=$1
	`, asset.ID, asset.Name, asset.SerialNumber, asset.Status, asset.Location, asset.AssetType,
		asset.Vendor, asset.OrderNumber, asset.PurchaseDate, asset.PurchasePrice, asset.WarrantyEnd,
		asset.AssignedUserID, tags, asset.SetID, extra, asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

func encodeAssetJSON(asset *model.Asset) (tags, extra []byte, err error) {
	if len(asset.Tags) > 0 {
		if tags, err = json.Marshal(asset.Tags); err != nil {
			return nil, nil, fmt.Errorf("encode tags: %w", err)
		}
	}
	if len(asset.Extra) > 0 {
		if extra, err = json.Marshal(asset.Extra); err != nil {
			return nil, nil, fmt.Errorf("encode extra: %w", err)
		}
	}
	return tags, extra, nil
}

func scanAsset(row pgx.Row) (*model.Asset, error) {
	var (
		asset model.Asset
		tags  []byte
		extra []byte
	)
	err := row.Scan(&asset.ID, &asset.Name, &asset.SerialNumber, &asset.Status, &asset.Location,
		&asset.AssetType, &asset.Vendor, &asset.OrderNumber, &asset.PurchaseDate, &asset.PurchasePrice,
		&asset.WarrantyEnd, &asset.AssignedUserID, &tags, &asset.SetID, &extra,
		&asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select asset: %w", err)
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &asset.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &asset.Extra); err != nil {
			return nil, fmt.Errorf("decode extra: %w", err)
		}
	}
	return &asset, nil
}
