package staging

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/a360/curation-service/internal/models"
)

// Config holds staging store connection settings
type Config struct {
	BaseURL    string
	ServiceKey string
}

// ConfigFromEnv reads staging store configuration from environment variables.
// The service uses only the service-role key; there is no per-user auth.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:    strings.TrimSpace(os.Getenv("STAGING_API_URL")),
		ServiceKey: strings.TrimSpace(os.Getenv("STAGING_SERVICE_KEY")),
	}
	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return Config{}, fmt.Errorf("STAGING_API_URL and STAGING_SERVICE_KEY must be set")
	}
	return cfg, nil
}

// Client provides document-style access to the staging store through its
// PostgREST-compatible API: by-id gets, equality-filtered lists, partial
// updates, and inserts.
type Client struct {
	http *resty.Client
}

// NewClient constructs a staging store client. The returned client is safe
// for concurrent use and should be created once at process start.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("staging store config is incomplete")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("apikey", cfg.ServiceKey).
		SetAuthToken(cfg.ServiceKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{http: client}, nil
}

// Ping checks that the staging store is reachable
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("select", "id").
		SetQueryParam("limit", "1").
		Get("/staging_products")
	if err != nil {
		return fmt.Errorf("staging store unreachable: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("staging store returned status %d", resp.StatusCode())
	}
	return nil
}

// GetProduct fetches one staging product by id. Returns (nil, nil) when no
// record matches.
func (c *Client) GetProduct(ctx context.Context, id string) (*models.StagingProduct, error) {
	var rows []models.StagingProduct
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		SetQueryParam("select", "*").
		SetResult(&rows).
		Get("/staging_products")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch staging product: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("staging product fetch returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ProductFilter narrows ListProducts results. Zero values mean "no filter".
type ProductFilter struct {
	Status       models.ReviewStatus
	Manufacturer string
	Search       string
}

// ListProducts returns staging products ordered by most recently updated
func (c *Client) ListProducts(ctx context.Context, filter ProductFilter) ([]models.StagingProduct, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", "updated_at.desc")

	if filter.Status != "" {
		req.SetQueryParam("review_status", "eq."+string(filter.Status))
	}
	if filter.Manufacturer != "" {
		req.SetQueryParam("manufacturer", "eq."+filter.Manufacturer)
	}
	if filter.Search != "" {
		// contains match on name and description, same shape the review UI used
		q := filter.Search
		req.SetQueryParam("or", fmt.Sprintf("(product_name.ilike.*%s*,description.ilike.*%s*)", q, q))
	}

	var rows []models.StagingProduct
	resp, err := req.SetResult(&rows).Get("/staging_products")
	if err != nil {
		return nil, fmt.Errorf("failed to list staging products: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("staging product list returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return rows, nil
}

// ListAssets returns the assets belonging to one staging product, newest
// first. With keptOnly set, only assets flagged keep_asset=true are returned.
func (c *Client) ListAssets(ctx context.Context, productID string, keptOnly bool) ([]models.StagingAsset, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("staging_product_id", "eq."+productID).
		SetQueryParam("select", "*").
		SetQueryParam("order", "created_at.desc")
	if keptOnly {
		req.SetQueryParam("keep_asset", "eq.true")
	}

	var rows []models.StagingAsset
	resp, err := req.SetResult(&rows).Get("/staging_assets")
	if err != nil {
		return nil, fmt.Errorf("failed to list staging assets: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("staging asset list returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return rows, nil
}

// ListAllAssets returns minimal columns for every staging asset, for
// dashboard aggregation.
func (c *Client) ListAllAssets(ctx context.Context) ([]models.StagingAsset, error) {
	var rows []models.StagingAsset
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("select", "id,keep_asset,promoted_to_gl").
		SetResult(&rows).
		Get("/staging_assets")
	if err != nil {
		return nil, fmt.Errorf("failed to list staging assets: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("staging asset list returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return rows, nil
}

// ListValidationEntries returns ingestion validation alerts for dashboard
// aggregation.
func (c *Client) ListValidationEntries(ctx context.Context) ([]models.ValidationEntry, error) {
	var rows []models.ValidationEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("select", "id,severity").
		SetResult(&rows).
		Get("/staging_validation_log")
	if err != nil {
		return nil, fmt.Errorf("failed to list validation entries: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("validation entry list returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return rows, nil
}

// UpdateProduct applies a partial field update to one staging product and
// returns the updated record.
func (c *Client) UpdateProduct(ctx context.Context, id string, fields map[string]interface{}) (*models.StagingProduct, error) {
	var rows []models.StagingProduct
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		SetHeader("Prefer", "return=representation").
		SetBody(fields).
		SetResult(&rows).
		Patch("/staging_products")
	if err != nil {
		return nil, fmt.Errorf("failed to update staging product: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("staging product update returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("staging product update matched no rows")
	}
	return &rows[0], nil
}

// UpdateAsset applies a partial field update to one staging asset
func (c *Client) UpdateAsset(ctx context.Context, id string, fields map[string]interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		SetBody(fields).
		Patch("/staging_assets")
	if err != nil {
		return fmt.Errorf("failed to update staging asset: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("staging asset update returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// MarkAssetPromoted records the catalog asset id on a staging asset after a
// successful promotion commit.
func (c *Client) MarkAssetPromoted(ctx context.Context, assetID string, glAssetID int64) error {
	return c.UpdateAsset(ctx, assetID, map[string]interface{}{
		"promoted_to_gl": true,
		"gl_asset_id":    glAssetID,
	})
}

// MarkProductPromoted records the catalog product id and promotion timestamp
// on a staging product after a successful promotion commit.
func (c *Client) MarkProductPromoted(ctx context.Context, productID string, glProductID int64, at time.Time) error {
	_, err := c.UpdateProduct(ctx, productID, map[string]interface{}{
		"promoted_to_gl": true,
		"gl_product_id":  strconv.FormatInt(glProductID, 10),
		"promoted_at":    at.UTC().Format(time.RFC3339),
	})
	return err
}

// InsertPromotionLog appends one audit entry to the promotion log
func (c *Client) InsertPromotionLog(ctx context.Context, entry models.PromotionLogEntry) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(entry).
		Post("/staging_promotion_log")
	if err != nil {
		return fmt.Errorf("failed to insert promotion log entry: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("promotion log insert returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
