package gl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/a360/curation-service/internal/models"
)

// Tx wraps a single catalog transaction. Reference resolution runs inside
// the transaction so created rows are visible to later statements before
// commit.
type Tx struct {
	tx pgx.Tx
}

// Commit makes all statements issued through the transaction durable
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Calling it after a successful commit
// is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// normalizeName collapses internal whitespace and trims the edges so that
// names differing only in spacing resolve to the same row. Case folding is
// handled by the lower(name) unique index in SQL.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ResolveManufacturer finds or creates the manufacturer row for name and
// returns its id. The upsert is keyed on the unique lower(name) index, so
// two concurrent promotions racing to create the same manufacturer converge
// on one row.
func (t *Tx) ResolveManufacturer(ctx context.Context, name string) (int64, error) {
	name = normalizeName(name)
	if name == "" {
		return 0, fmt.Errorf("manufacturer name is empty")
	}

	query := `
        INSERT INTO manufacturers (name)
        VALUES ($1)
        ON CONFLICT ((lower(name))) DO UPDATE SET name = manufacturers.name
        RETURNING id
    `
	var id int64
	if err := t.tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve manufacturer: %w", err)
	}
	return id, nil
}

// ResolveCategory finds or creates the category row for name and returns
// its id.
func (t *Tx) ResolveCategory(ctx context.Context, name string) (int64, error) {
	name = normalizeName(name)
	if name == "" {
		return 0, fmt.Errorf("category name is empty")
	}

	query := `
        INSERT INTO categories (name)
        VALUES ($1)
        ON CONFLICT ((lower(name))) DO UPDATE SET name = categories.name
        RETURNING id
    `
	var id int64
	if err := t.tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve category: %w", err)
	}
	return id, nil
}

// InsertProduct inserts a new catalog product row and returns its generated
// id. Promotion never updates an existing product in place.
func (t *Tx) InsertProduct(ctx context.Context, p models.CatalogProduct) (int64, error) {
	query := `
        INSERT INTO products (name, manufacturer_id, category_id, description, source_url)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	var id int64
	err := t.tx.QueryRow(ctx, query,
		p.Name,
		p.ManufacturerID,
		p.CategoryID,
		p.Description,
		p.SourceURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

// InsertDocumentAsset inserts a new catalog document asset row and returns
// its generated id.
func (t *Tx) InsertDocumentAsset(ctx context.Context, a models.DocumentAsset) (int64, error) {
	query := `
        INSERT INTO document_assets (product_id, manufacturer_id, asset_type, content_category, title, description, url, file_size)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	var id int64
	err := t.tx.QueryRow(ctx, query,
		a.ProductID,
		a.ManufacturerID,
		a.AssetType,
		a.ContentCategory,
		a.Title,
		a.Description,
		a.URL,
		a.FileSizeBytes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document asset: %w", err)
	}
	return id, nil
}
