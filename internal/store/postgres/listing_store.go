package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

var _ domain.ListingStore = (*ListingStore)(nil)

const listingSelectCols = `id, asset_id, listing_type, price::TEXT, currency_contract,
	seller_address, buyer_address, status, expires_at, created_at, updated_at`

const listingInsert = `
	INSERT INTO listings (
		id, asset_id, listing_type, price, currency_contract,
		seller_address, buyer_address, status, expires_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7, $8, $9, $10, $11)`

// mapConstraintErr translates partial-unique-index violations into the
// domain errors the use cases classify as business failures.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "uniq_active_sale_per_asset":
			return domain.ErrAlreadyListed
		case "uniq_active_bid_per_buyer":
			return domain.ErrDuplicateBid
		}
	}
	return err
}

func listingInsertArgs(l domain.Listing) []any {
	return []any{
		l.ID, l.AssetID, string(l.Type), l.Price.String(), l.CurrencyContract,
		l.SellerAddress, l.BuyerAddress, string(l.Status), l.ExpiresAt, l.CreatedAt, l.UpdatedAt,
	}
}

// Create inserts a new listing.
func (s *ListingStore) Create(ctx context.Context, l domain.Listing) error {
	if _, err := s.pool.Exec(ctx, listingInsert, listingInsertArgs(l)...); err != nil {
		if mapped := mapConstraintErr(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("postgres: create listing %s: %w", l.ID, err)
	}
	return nil
}

// CreateMany inserts the given listings in one transaction. Any failure,
// including a uniqueness conflict on a single row, rolls back the whole
// batch.
func (s *ListingStore) CreateMany(ctx context.Context, ls []domain.Listing) ([]domain.Listing, error) {
	if len(ls) == 0 {
		return nil, nil
	}
	if len(ls) > domain.MaxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin batch insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, l := range ls {
		batch.Queue(listingInsert, listingInsertArgs(l)...)
	}

	br := tx.SendBatch(ctx, batch)
	for range ls {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if mapped := mapConstraintErr(err); mapped != err {
				return nil, mapped
			}
			return nil, fmt.Errorf("postgres: batch insert listings: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("postgres: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit batch insert: %w", err)
	}
	return ls, nil
}

func scanListingFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Listing, error) {
	var (
		l           domain.Listing
		typ, status string
		priceStr    string
		expiresAt   *time.Time
	)

	err := scanner.Scan(
		&l.ID, &l.AssetID, &typ, &priceStr, &l.CurrencyContract,
		&l.SellerAddress, &l.BuyerAddress, &status, &expiresAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	l.Type = domain.ListingType(typ)
	l.Status = domain.ListingStatus(status)
	l.ExpiresAt = expiresAt

	l.Price = new(big.Int)
	if _, ok := l.Price.SetString(priceStr, 10); !ok {
		return domain.Listing{}, fmt.Errorf("postgres: bad price %q for listing %s", priceStr, l.ID)
	}
	return l, nil
}

func scanListingRows(rows pgx.Rows) ([]domain.Listing, error) {
	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListingFromRow(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetByID retrieves a single listing by ID.
func (s *ListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM listings WHERE id = $1`, id)

	l, err := scanListingFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s: %w", id, err)
	}
	return l, nil
}

// ListByAsset returns listings for a given asset with pagination, newest
// first.
func (s *ListingStore) ListByAsset(ctx context.Context, assetID string, opts domain.ListOpts) ([]domain.Listing, error) {
	query := `SELECT ` + listingSelectCols + ` FROM listings WHERE asset_id = $1 ORDER BY created_at DESC`
	args := []any{assetID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings by asset: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan listings by asset: %w", err)
	}
	return listings, nil
}

// ActiveSalesForAsset returns the active, unexpired sale listings for an
// asset in creation order.
func (s *ListingStore) ActiveSalesForAsset(ctx context.Context, assetID string) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE asset_id = $1 AND listing_type = 'SALE' AND status = 'ACTIVE'
		   AND (expires_at IS NULL OR expires_at > NOW())
		 ORDER BY created_at ASC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: active sales: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active sales: %w", err)
	}
	return listings, nil
}

// ActiveBidsForAsset returns the active, unexpired bids for an asset,
// highest price first.
func (s *ListingStore) ActiveBidsForAsset(ctx context.Context, assetID string) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE asset_id = $1 AND listing_type = 'BID' AND status = 'ACTIVE'
		   AND (expires_at IS NULL OR expires_at > NOW())
		 ORDER BY price DESC, created_at ASC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: active bids: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active bids: %w", err)
	}
	return listings, nil
}

// BestBidForAsset returns the highest active bid, or ErrNotFound when there
// is none. Ties go to the earlier bid.
func (s *ListingStore) BestBidForAsset(ctx context.Context, assetID string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE asset_id = $1 AND listing_type = 'BID' AND status = 'ACTIVE'
		   AND (expires_at IS NULL OR expires_at > NOW())
		 ORDER BY price DESC, created_at ASC
		 LIMIT 1`, assetID)

	l, err := scanListingFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: best bid: %w", err)
	}
	return l, nil
}

// Update persists the mutable listing fields.
func (s *ListingStore) Update(ctx context.Context, l domain.Listing) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings
		 SET price = $1::NUMERIC, buyer_address = $2, status = $3, expires_at = $4, updated_at = $5
		 WHERE id = $6`,
		l.Price.String(), l.BuyerAddress, string(l.Status), l.ExpiresAt, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CancelListings transitions the given ids from ACTIVE to CANCELLED in one
// statement and returns the ids actually affected.
func (s *ListingStore) CancelListings(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`UPDATE listings SET status = 'CANCELLED', updated_at = NOW()
		 WHERE id = ANY($1) AND status = 'ACTIVE'
		 RETURNING id`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: cancel listings: %w", err)
	}
	defer rows.Close()

	var affected []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan cancelled id: %w", err)
		}
		affected = append(affected, id)
	}
	return affected, rows.Err()
}

// MarkAsExpired transitions the given ids from ACTIVE to EXPIRED and returns
// the number of rows affected.
func (s *ListingStore) MarkAsExpired(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = 'EXPIRED', updated_at = NOW()
		 WHERE id = ANY($1) AND status = 'ACTIVE'`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: mark expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindExpiredListings returns active listings whose deadline has passed.
func (s *ListingStore) FindExpiredListings(ctx context.Context, now time.Time, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE status = 'ACTIVE' AND expires_at IS NOT NULL AND expires_at <= $1
		 ORDER BY expires_at ASC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: find expired: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired: %w", err)
	}
	return listings, nil
}

// ListTerminalBefore returns listings in a terminal status last updated
// strictly before the cutoff, for archival.
func (s *ListingStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE status IN ('COMPLETED', 'CANCELLED', 'EXPIRED') AND updated_at < $1
		 ORDER BY updated_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal listings: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal listings: %w", err)
	}
	return listings, nil
}

// TotalVolumeByAsset sums the prices of completed listings for an asset.
func (s *ListingStore) TotalVolumeByAsset(ctx context.Context, assetID string) (*big.Int, error) {
	return s.aggregateByAsset(ctx, assetID,
		`SELECT COALESCE(SUM(price), 0)::TEXT FROM listings
		 WHERE asset_id = $1 AND status = 'COMPLETED'`)
}

// AveragePriceByAsset returns the mean completed price, truncated to an
// integer number of wei.
func (s *ListingStore) AveragePriceByAsset(ctx context.Context, assetID string) (*big.Int, error) {
	return s.aggregateByAsset(ctx, assetID,
		`SELECT COALESCE(TRUNC(AVG(price)), 0)::TEXT FROM listings
		 WHERE asset_id = $1 AND status = 'COMPLETED'`)
}

// CountSalesByAsset counts completed listings for an asset.
func (s *ListingStore) CountSalesByAsset(ctx context.Context, assetID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE asset_id = $1 AND status = 'COMPLETED'`,
		assetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count sales: %w", err)
	}
	return n, nil
}

func (s *ListingStore) aggregateByAsset(ctx context.Context, assetID, query string) (*big.Int, error) {
	var str string
	if err := s.pool.QueryRow(ctx, query, assetID).Scan(&str); err != nil {
		return nil, fmt.Errorf("postgres: asset aggregate: %w", err)
	}

	out := new(big.Int)
	if _, ok := out.SetString(str, 10); !ok {
		return nil, fmt.Errorf("postgres: bad aggregate value %q", str)
	}
	return out, nil
}
