package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a360/curation-service/internal/models"
)

type fakeStaging struct {
	product        *models.StagingProduct
	assets         []models.StagingAsset
	logs           []models.PromotionLogEntry
	assetMarks     map[string]int64
	productMarks   map[string]int64
	markAssetErr   error
	markProductErr error
	logErr         error
}

func (f *fakeStaging) GetProduct(_ context.Context, id string) (*models.StagingProduct, error) {
	if f.product == nil || f.product.ID != id {
		return nil, nil
	}
	return f.product, nil
}

func (f *fakeStaging) ListAssets(_ context.Context, productID string, keptOnly bool) ([]models.StagingAsset, error) {
	var out []models.StagingAsset
	for _, a := range f.assets {
		if a.StagingProductID != productID {
			continue
		}
		if keptOnly && !a.KeepAsset {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStaging) MarkAssetPromoted(_ context.Context, assetID string, glAssetID int64) error {
	if f.markAssetErr != nil {
		return f.markAssetErr
	}
	if f.assetMarks == nil {
		f.assetMarks = make(map[string]int64)
	}
	f.assetMarks[assetID] = glAssetID
	return nil
}

func (f *fakeStaging) MarkProductPromoted(_ context.Context, productID string, glProductID int64, _ time.Time) error {
	if f.markProductErr != nil {
		return f.markProductErr
	}
	if f.productMarks == nil {
		f.productMarks = make(map[string]int64)
	}
	f.productMarks[productID] = glProductID
	return nil
}

func (f *fakeStaging) InsertPromotionLog(_ context.Context, entry models.PromotionLogEntry) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

type fakeCatalog struct {
	tx       *fakeTx
	beginErr error
	begun    bool
}

func (f *fakeCatalog) Begin(_ context.Context) (CatalogTx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begun = true
	return f.tx, nil
}

type fakeTx struct {
	nextID        int64
	manufacturers map[string]int64
	categories    map[string]int64
	products      []models.CatalogProduct
	assets        []models.DocumentAsset
	resolveMfrErr error
	resolveCatErr error
	failAssetAt   int // 1-based index of the document asset insert that fails
	commitErr     error
	committed     bool
	rolledBack    bool
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		manufacturers: make(map[string]int64),
		categories:    make(map[string]int64),
	}
}

func (t *fakeTx) nid() int64 {
	t.nextID++
	return t.nextID
}

func (t *fakeTx) ResolveManufacturer(_ context.Context, name string) (int64, error) {
	if t.resolveMfrErr != nil {
		return 0, t.resolveMfrErr
	}
	if id, ok := t.manufacturers[name]; ok {
		return id, nil
	}
	id := t.nid()
	t.manufacturers[name] = id
	return id, nil
}

func (t *fakeTx) ResolveCategory(_ context.Context, name string) (int64, error) {
	if t.resolveCatErr != nil {
		return 0, t.resolveCatErr
	}
	if id, ok := t.categories[name]; ok {
		return id, nil
	}
	id := t.nid()
	t.categories[name] = id
	return id, nil
}

func (t *fakeTx) InsertProduct(_ context.Context, p models.CatalogProduct) (int64, error) {
	p.ID = t.nid()
	t.products = append(t.products, p)
	return p.ID, nil
}

func (t *fakeTx) InsertDocumentAsset(_ context.Context, a models.DocumentAsset) (int64, error) {
	if t.failAssetAt > 0 && len(t.assets)+1 == t.failAssetAt {
		return 0, errors.New("document asset insert refused")
	}
	a.ID = t.nid()
	t.assets = append(t.assets, a)
	return a.ID, nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.committed {
		return nil
	}
	t.rolledBack = true
	t.products = nil
	t.assets = nil
	return nil
}

func approvedProduct(id string) *models.StagingProduct {
	category := "imaging"
	description := "A staging description"
	return &models.StagingProduct{
		ID:           id,
		ProductName:  "Widget Scanner",
		Manufacturer: "Acme Medical",
		Category:     &category,
		Description:  &description,
		SourceURLs:   []string{"http://a", "http://b"},
		ReviewStatus: models.ReviewStatusApproved,
	}
}

func keptAsset(id, productID string) models.StagingAsset {
	url := "https://files.example/" + id + ".pdf"
	return models.StagingAsset{
		ID:               id,
		StagingProductID: productID,
		AssetType:        "pdf",
		FileURL:          &url,
		KeepAsset:        true,
	}
}

func TestPromoteNotFound(t *testing.T) {
	st := &fakeStaging{}
	cat := &fakeCatalog{tx: newFakeTx()}
	svc := NewService(st, cat)

	_, err := svc.Promote(context.Background(), "missing", "curator")

	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, cat.begun, "no catalog work before preconditions pass")
	assert.Empty(t, st.logs, "precondition rejections write no audit entry")
}

func TestPromoteNotApproved(t *testing.T) {
	sp := approvedProduct("p1")
	sp.ReviewStatus = models.ReviewStatusPending
	st := &fakeStaging{product: sp}
	cat := &fakeCatalog{tx: newFakeTx()}
	svc := NewService(st, cat)

	_, err := svc.Promote(context.Background(), "p1", "curator")

	require.ErrorIs(t, err, ErrNotApproved)
	assert.False(t, cat.begun)
	assert.Empty(t, cat.tx.products)
	assert.Empty(t, st.logs)
}

func TestPromoteAlreadyPromoted(t *testing.T) {
	sp := approvedProduct("p1")
	sp.PromotedToGL = true
	st := &fakeStaging{product: sp}
	cat := &fakeCatalog{tx: newFakeTx()}
	svc := NewService(st, cat)

	_, err := svc.Promote(context.Background(), "p1", "curator")

	require.ErrorIs(t, err, ErrAlreadyPromoted)
	assert.False(t, cat.begun)
	assert.Empty(t, st.logs)
}

func TestPromoteSuccess(t *testing.T) {
	sp := approvedProduct("p1")
	discarded := keptAsset("a4", "p1")
	discarded.KeepAsset = false
	discarded2 := keptAsset("a5", "p1")
	discarded2.KeepAsset = false

	st := &fakeStaging{
		product: sp,
		assets: []models.StagingAsset{
			keptAsset("a1", "p1"),
			keptAsset("a2", "p1"),
			keptAsset("a3", "p1"),
			discarded,
			discarded2,
		},
	}
	tx := newFakeTx()
	cat := &fakeCatalog{tx: tx}
	svc := NewService(st, cat)

	outcome, err := svc.Promote(context.Background(), "p1", "reviewer-7")

	require.NoError(t, err)
	assert.Equal(t, "Promoted product (assets: 3)", outcome.Message)
	assert.Equal(t, 3, outcome.AssetsPromoted)
	assert.True(t, tx.committed)

	require.Len(t, tx.products, 1)
	assert.Equal(t, "Widget Scanner", tx.products[0].Name)
	require.NotNil(t, tx.products[0].CategoryID)
	assert.Len(t, tx.assets, 3)
	for _, a := range tx.assets {
		assert.Equal(t, outcome.GLProductID, a.ProductID)
		assert.Equal(t, tx.products[0].ManufacturerID, a.ManufacturerID)
	}

	assert.Len(t, st.assetMarks, 3)
	assert.Equal(t, outcome.GLProductID, st.productMarks["p1"])

	require.Len(t, st.logs, 1)
	entry := st.logs[0]
	assert.Equal(t, models.PromotionStatusSuccess, entry.PromotionStatus)
	assert.Equal(t, 3, entry.AssetsPromotedCount)
	assert.Equal(t, "reviewer-7", entry.PromotedBy)
	require.NotNil(t, entry.GLProductID)
	assert.NotEmpty(t, entry.ID)
}

func TestPromoteSourceURLSelection(t *testing.T) {
	t.Run("first url wins", func(t *testing.T) {
		sp := approvedProduct("p1")
		sp.SourceURLs = []string{"http://a", "http://b"}
		st := &fakeStaging{product: sp}
		tx := newFakeTx()
		svc := NewService(st, &fakeCatalog{tx: tx})

		_, err := svc.Promote(context.Background(), "p1", "")

		require.NoError(t, err)
		require.Len(t, tx.products, 1)
		require.NotNil(t, tx.products[0].SourceURL)
		assert.Equal(t, "http://a", *tx.products[0].SourceURL)
	})

	t.Run("empty sequence yields null", func(t *testing.T) {
		sp := approvedProduct("p1")
		sp.SourceURLs = nil
		st := &fakeStaging{product: sp}
		tx := newFakeTx()
		svc := NewService(st, &fakeCatalog{tx: tx})

		_, err := svc.Promote(context.Background(), "p1", "")

		require.NoError(t, err)
		require.Len(t, tx.products, 1)
		assert.Nil(t, tx.products[0].SourceURL)
	})
}

func TestPromoteNilCategoryLeftUnresolved(t *testing.T) {
	sp := approvedProduct("p1")
	sp.Category = nil
	st := &fakeStaging{product: sp}
	tx := newFakeTx()
	svc := NewService(st, &fakeCatalog{tx: tx})

	_, err := svc.Promote(context.Background(), "p1", "")

	require.NoError(t, err)
	require.Len(t, tx.products, 1)
	assert.Nil(t, tx.products[0].CategoryID)
	assert.Empty(t, tx.categories)
}

func TestPromoteAssetInsertFailureRollsBack(t *testing.T) {
	sp := approvedProduct("p1")
	st := &fakeStaging{product: sp, assets: []models.StagingAsset{
		keptAsset("a1", "p1"),
		keptAsset("a2", "p1"),
		keptAsset("a3", "p1"),
		keptAsset("a4", "p1"),
		keptAsset("a5", "p1"),
	}}
	tx := newFakeTx()
	tx.failAssetAt = 3
	svc := NewService(st, &fakeCatalog{tx: tx})

	_, err := svc.Promote(context.Background(), "p1", "curator")

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
	assert.Empty(t, tx.products, "rollback leaves no partial product row")
	assert.Empty(t, tx.assets, "rollback leaves no partial asset rows")
	assert.Empty(t, st.assetMarks, "staging flags are only written after commit")
	assert.Empty(t, st.productMarks)

	require.Len(t, st.logs, 1)
	entry := st.logs[0]
	assert.Equal(t, models.PromotionStatusFailed, entry.PromotionStatus)
	require.NotNil(t, entry.ErrorMessage)
	assert.NotEmpty(t, *entry.ErrorMessage)
	assert.Nil(t, entry.GLProductID)
}

func TestPromoteResolutionFailureAudited(t *testing.T) {
	st := &fakeStaging{product: approvedProduct("p1")}
	tx := newFakeTx()
	tx.resolveMfrErr = errors.New("connection reset")
	svc := NewService(st, &fakeCatalog{tx: tx})

	_, err := svc.Promote(context.Background(), "p1", "curator")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "manufacturer", resErr.Entity)
	assert.True(t, tx.rolledBack)

	require.Len(t, st.logs, 1)
	assert.Equal(t, models.PromotionStatusFailed, st.logs[0].PromotionStatus)
	require.NotNil(t, st.logs[0].ErrorMessage)
	assert.NotEmpty(t, *st.logs[0].ErrorMessage)
}

func TestPromoteCommitFailureAudited(t *testing.T) {
	st := &fakeStaging{product: approvedProduct("p1"), assets: []models.StagingAsset{keptAsset("a1", "p1")}}
	tx := newFakeTx()
	tx.commitErr = errors.New("deadline exceeded")
	svc := NewService(st, &fakeCatalog{tx: tx})

	_, err := svc.Promote(context.Background(), "p1", "curator")

	var txErr *TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "commit", txErr.Op)
	assert.True(t, tx.rolledBack)
	require.Len(t, st.logs, 1)
	assert.Equal(t, models.PromotionStatusFailed, st.logs[0].PromotionStatus)
}

func TestPromoteBeginFailureWritesNoAudit(t *testing.T) {
	st := &fakeStaging{product: approvedProduct("p1")}
	cat := &fakeCatalog{tx: newFakeTx(), beginErr: errors.New("dial tcp: refused")}
	svc := NewService(st, cat)

	_, err := svc.Promote(context.Background(), "p1", "curator")

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Empty(t, st.logs, "nothing was attempted, nothing to audit")
}

func TestPromoteSkipsAlreadyPromotedAssets(t *testing.T) {
	sp := approvedProduct("p1")
	promoted := keptAsset("a1", "p1")
	promoted.PromotedToGL = true
	glID := int64(900)
	promoted.GLAssetID = &glID

	st := &fakeStaging{product: sp, assets: []models.StagingAsset{
		promoted,
		keptAsset("a2", "p1"),
		keptAsset("a3", "p1"),
	}}
	tx := newFakeTx()
	svc := NewService(st, &fakeCatalog{tx: tx})

	outcome, err := svc.Promote(context.Background(), "p1", "curator")

	require.NoError(t, err)
	assert.Equal(t, "Promoted product (assets: 2)", outcome.Message)
	assert.Len(t, tx.assets, 2)
	assert.NotContains(t, st.assetMarks, "a1")
}

func TestPromoteSucceedsWhenStagingFlagsFail(t *testing.T) {
	st := &fakeStaging{
		product:        approvedProduct("p1"),
		assets:         []models.StagingAsset{keptAsset("a1", "p1")},
		markAssetErr:   errors.New("staging store timeout"),
		markProductErr: errors.New("staging store timeout"),
	}
	tx := newFakeTx()
	svc := NewService(st, &fakeCatalog{tx: tx})

	outcome, err := svc.Promote(context.Background(), "p1", "curator")

	require.NoError(t, err, "the catalog commit is the point of no return")
	assert.True(t, tx.committed)
	assert.Equal(t, 1, outcome.AssetsPromoted)

	require.Len(t, st.logs, 1)
	assert.Equal(t, models.PromotionStatusSuccess, st.logs[0].PromotionStatus)
}

func TestPromoteAuditWriteFailureDoesNotMaskResult(t *testing.T) {
	st := &fakeStaging{
		product: approvedProduct("p1"),
		logErr:  errors.New("log table unavailable"),
	}
	tx := newFakeTx()
	svc := NewService(st, &fakeCatalog{tx: tx})

	outcome, err := svc.Promote(context.Background(), "p1", "curator")

	require.NoError(t, err)
	assert.Equal(t, "Promoted product (assets: 0)", outcome.Message)
}

func TestPromoteDefaultActor(t *testing.T) {
	st := &fakeStaging{product: approvedProduct("p1")}
	svc := NewService(st, &fakeCatalog{tx: newFakeTx()})

	_, err := svc.Promote(context.Background(), "p1", "")

	require.NoError(t, err)
	require.Len(t, st.logs, 1)
	assert.Equal(t, DefaultActor, st.logs[0].PromotedBy)
}
