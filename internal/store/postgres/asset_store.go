package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// AssetStore implements domain.AssetStore using PostgreSQL.
type AssetStore struct {
	pool *pgxpool.Pool
}

// NewAssetStore creates a new AssetStore backed by the given connection pool.
func NewAssetStore(pool *pgxpool.Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

var _ domain.AssetStore = (*AssetStore)(nil)

// GetByID retrieves a single asset by ID.
func (s *AssetStore) GetByID(ctx context.Context, id string) (domain.Asset, error) {
	var a domain.Asset
	err := s.pool.QueryRow(ctx,
		`SELECT id, contract_addr, token_id, owner_address, balance, created_at, updated_at
		 FROM assets WHERE id = $1`, id,
	).Scan(&a.ID, &a.ContractAddr, &a.TokenID, &a.OwnerAddress, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("postgres: get asset %s: %w", id, err)
	}
	return a, nil
}

// Update persists the mutable asset fields.
func (s *AssetStore) Update(ctx context.Context, a domain.Asset) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET owner_address = $1, balance = $2, updated_at = $3 WHERE id = $4`,
		a.OwnerAddress, a.Balance, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("postgres: update asset %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
