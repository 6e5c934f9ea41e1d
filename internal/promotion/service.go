package promotion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/a360/curation-service/internal/logging"
	"github.com/a360/curation-service/internal/models"
)

// DefaultActor is attributed to promotions triggered without an explicit
// identity.
const DefaultActor = "curator"

// txTimeout bounds the catalog transaction; expiry feeds the normal
// rollback and failure-audit path.
const txTimeout = 30 * time.Second

// stagingWriteAttempts bounds retries of staging-side writes that run after
// the catalog transaction has committed.
const stagingWriteAttempts = 3

// StagingStore is the slice of the staging store client the orchestrator
// depends on.
type StagingStore interface {
	GetProduct(ctx context.Context, id string) (*models.StagingProduct, error)
	ListAssets(ctx context.Context, productID string, keptOnly bool) ([]models.StagingAsset, error)
	MarkAssetPromoted(ctx context.Context, assetID string, glAssetID int64) error
	MarkProductPromoted(ctx context.Context, productID string, glProductID int64, at time.Time) error
	InsertPromotionLog(ctx context.Context, entry models.PromotionLogEntry) error
}

// Catalog opens transactions against the global library store
type Catalog interface {
	Begin(ctx context.Context) (CatalogTx, error)
}

// CatalogTx is one atomic unit of catalog work
type CatalogTx interface {
	ResolveManufacturer(ctx context.Context, name string) (int64, error)
	ResolveCategory(ctx context.Context, name string) (int64, error)
	InsertProduct(ctx context.Context, p models.CatalogProduct) (int64, error)
	InsertDocumentAsset(ctx context.Context, a models.DocumentAsset) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BeginFunc adapts a store's Begin method to the Catalog interface
type BeginFunc func(ctx context.Context) (CatalogTx, error)

// Begin implements Catalog
func (f BeginFunc) Begin(ctx context.Context) (CatalogTx, error) { return f(ctx) }

// Outcome summarizes a successful promotion
type Outcome struct {
	GLProductID    int64
	AssetsPromoted int
	Message        string
}

// Service runs the promotion pipeline: it validates preconditions, resolves
// referenced entities, materializes the product and its kept assets into the
// global library in one transaction, then updates staging flags and writes
// an audit entry.
type Service struct {
	staging StagingStore
	catalog Catalog
	locks   *keyedMutex
	now     func() time.Time
}

// NewService constructs the orchestrator. Both store handles are required.
func NewService(stagingStore StagingStore, catalog Catalog) *Service {
	return &Service{
		staging: stagingStore,
		catalog: catalog,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Promote materializes one approved staging product into the global library.
//
// Precondition failures (ErrNotFound, ErrNotApproved, ErrAlreadyPromoted)
// return immediately with no side effects. Once preconditions pass, any
// failure rolls back the catalog transaction and writes exactly one failure
// audit entry to the staging store. On success the transaction commits
// before any staging-side write, so a crash between the two leaves the
// catalog consistent and the staging flags recoverable on retry.
func (s *Service) Promote(ctx context.Context, stagingProductID, actor string) (*Outcome, error) {
	if actor == "" {
		actor = DefaultActor
	}

	// Serialize per product id so a double-click cannot promote twice
	s.locks.Lock(stagingProductID)
	defer s.locks.Unlock(stagingProductID)

	sp, err := s.staging.GetProduct(ctx, stagingProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load staging product: %w", err)
	}
	if sp == nil {
		return nil, ErrNotFound
	}
	if sp.ReviewStatus != models.ReviewStatusApproved {
		return nil, ErrNotApproved
	}
	if sp.PromotedToGL {
		return nil, ErrAlreadyPromoted
	}

	assets, err := s.staging.ListAssets(ctx, stagingProductID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load staging assets: %w", err)
	}

	// Survivors of a prior failed attempt already have catalog rows; skip them
	eligible := make([]models.StagingAsset, 0, len(assets))
	for _, a := range assets {
		if !a.PromotedToGL {
			eligible = append(eligible, a)
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.catalog.Begin(txCtx)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	glProductID, glAssetIDs, err := s.materialize(txCtx, tx, sp, eligible)
	if err != nil {
		// The transaction context may already be expired; rollback must
		// still release the connection.
		rbCtx, rbCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer rbCancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil {
			logging.LogKV("error", "catalog rollback failed", map[string]interface{}{
				"staging_product_id": stagingProductID,
				"error":              rbErr.Error(),
			})
		}
		msg := err.Error()
		s.writeAudit(models.PromotionLogEntry{
			StagingProductID:    stagingProductID,
			PromotedBy:          actor,
			PromotionStatus:     models.PromotionStatusFailed,
			ErrorMessage:        &msg,
			AssetsPromotedCount: 0,
		})
		return nil, err
	}

	// The catalog is committed; staging-side flags must land even if the
	// caller goes away, so they run on a detached context with retries.
	flagCtx, flagCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flagCancel()

	for i, a := range eligible {
		assetID, glAssetID := a.ID, glAssetIDs[i]
		if werr := withRetry(flagCtx, func() error {
			return s.staging.MarkAssetPromoted(flagCtx, assetID, glAssetID)
		}); werr != nil {
			logging.LogKV("error", "failed to mark staging asset promoted", map[string]interface{}{
				"staging_asset_id": assetID,
				"gl_asset_id":      glAssetID,
				"error":            werr.Error(),
			})
		}
	}

	if werr := withRetry(flagCtx, func() error {
		return s.staging.MarkProductPromoted(flagCtx, stagingProductID, glProductID, s.now().UTC())
	}); werr != nil {
		logging.LogKV("error", "failed to mark staging product promoted", map[string]interface{}{
			"staging_product_id": stagingProductID,
			"gl_product_id":      glProductID,
			"error":              werr.Error(),
		})
	}

	glID := strconv.FormatInt(glProductID, 10)
	s.writeAudit(models.PromotionLogEntry{
		StagingProductID:    stagingProductID,
		GLProductID:         &glID,
		PromotedBy:          actor,
		AssetsPromotedCount: len(eligible),
		PromotionStatus:     models.PromotionStatusSuccess,
	})

	return &Outcome{
		GLProductID:    glProductID,
		AssetsPromoted: len(eligible),
		Message:        fmt.Sprintf("Promoted product (assets: %d)", len(eligible)),
	}, nil
}

// materialize runs every catalog statement including the commit. The caller
// owns rollback on error.
func (s *Service) materialize(ctx context.Context, tx CatalogTx, sp *models.StagingProduct, assets []models.StagingAsset) (int64, []int64, error) {
	mfrID, err := tx.ResolveManufacturer(ctx, sp.Manufacturer)
	if err != nil {
		return 0, nil, &ResolutionError{Entity: "manufacturer", Err: err}
	}

	var categoryID *int64
	if sp.Category != nil && *sp.Category != "" {
		id, err := tx.ResolveCategory(ctx, *sp.Category)
		if err != nil {
			return 0, nil, &ResolutionError{Entity: "category", Err: err}
		}
		categoryID = &id
	}

	var sourceURL *string
	if len(sp.SourceURLs) > 0 {
		sourceURL = &sp.SourceURLs[0]
	}

	productID, err := tx.InsertProduct(ctx, models.CatalogProduct{
		Name:           sp.ProductName,
		ManufacturerID: mfrID,
		CategoryID:     categoryID,
		Description:    sp.Description,
		SourceURL:      sourceURL,
	})
	if err != nil {
		return 0, nil, &TxError{Op: "product insert", Err: err}
	}

	assetIDs := make([]int64, 0, len(assets))
	for _, a := range assets {
		id, err := tx.InsertDocumentAsset(ctx, models.DocumentAsset{
			ProductID:       productID,
			ManufacturerID:  mfrID,
			AssetType:       a.AssetType,
			ContentCategory: a.ContentCategory,
			Title:           a.Title,
			Description:     a.Description,
			URL:             a.FileURL,
			FileSizeBytes:   a.FileSizeBytes,
		})
		if err != nil {
			return 0, nil, &TxError{Op: "document asset insert", Err: err}
		}
		assetIDs = append(assetIDs, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, &TxError{Op: "commit", Err: err}
	}
	return productID, assetIDs, nil
}

// writeAudit appends the audit entry on a detached context so the trail
// survives caller cancellation. A failed audit write is logged but never
// masks the promotion result.
func (s *Service) writeAudit(entry models.PromotionLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entry.ID = uuid.New().String()
	if err := s.staging.InsertPromotionLog(ctx, entry); err != nil {
		logging.LogKV("error", "failed to write promotion log entry", map[string]interface{}{
			"staging_product_id": entry.StagingProductID,
			"promotion_status":   string(entry.PromotionStatus),
			"error":              err.Error(),
		})
	}
}

func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= stagingWriteAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt < stagingWriteAttempts {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
	}
	return err
}
