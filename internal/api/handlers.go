package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/a360/curation-service/internal/gl"
	"github.com/a360/curation-service/internal/models"
	"github.com/a360/curation-service/internal/promotion"
	"github.com/a360/curation-service/internal/staging"
)

// Promoter runs the promotion pipeline for one staging product
type Promoter interface {
	Promote(ctx context.Context, stagingProductID, actor string) (*promotion.Outcome, error)
}

// Handler holds the store clients and provides HTTP handlers
type Handler struct {
	staging  *staging.Client
	gl       *gl.Database
	promoter Promoter
}

// NewHandler creates a new handler instance
func NewHandler(stagingClient *staging.Client, database *gl.Database, promoter Promoter) *Handler {
	return &Handler{staging: stagingClient, gl: database, promoter: promoter}
}

// Health handles GET /health and /ready by pinging both stores
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.staging.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "staging store: " + err.Error()})
		return
	}
	if h.gl == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "catalog store not configured"})
		return
	}
	if err := h.gl.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "catalog store: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetProducts handles GET /products with status/manufacturer/search filters
// and page slicing
func (h *Handler) GetProducts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	filter := staging.ProductFilter{
		Manufacturer: c.Query("manufacturer"),
		Search:       c.Query("q"),
	}
	if status := c.Query("status"); status != "" {
		rs := models.ReviewStatus(status)
		if !rs.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review status: " + status})
			return
		}
		filter.Status = rs
	}

	rows, err := h.staging.ListProducts(ctx, filter)
	if err != nil {
		log.Printf("Failed to list staging products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), 20)
	start := (page - 1) * pageSize
	end := start + pageSize
	total := len(rows)
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"products":  rows[start:end],
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetProduct handles GET /products/:id, returning the product and its assets
func (h *Handler) GetProduct(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	id := c.Param("id")
	product, err := h.staging.GetProduct(ctx, id)
	if err != nil {
		log.Printf("Failed to fetch staging product %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	assets, err := h.staging.ListAssets(ctx, id, false)
	if err != nil {
		log.Printf("Failed to fetch assets for product %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product assets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product, "assets": assets})
}

// promotion bookkeeping is owned by the orchestrator and cannot be edited
// through the review surface
var guardedProductFields = map[string]bool{
	"id":             true,
	"promoted_to_gl": true,
	"gl_product_id":  true,
	"promoted_at":    true,
	"created_at":     true,
}

// UpdateProduct handles PATCH /products/:id with a partial field set
func (h *Handler) UpdateProduct(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}
	for k := range fields {
		if guardedProductFields[k] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Field is not editable: " + k})
			return
		}
	}
	if status, ok := fields["review_status"].(string); ok && !models.ReviewStatus(status).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review status: " + status})
		return
	}

	updated, err := h.staging.UpdateProduct(ctx, c.Param("id"), staging.NormalizeProductFields(fields))
	if err != nil {
		log.Printf("Failed to update staging product %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": updated})
}

// SetReviewStatus handles POST /products/:id/review
func (h *Handler) SetReviewStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	type reqBody struct {
		Status models.ReviewStatus `json:"status" binding:"required"`
	}
	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review status: " + string(req.Status)})
		return
	}

	updated, err := h.staging.UpdateProduct(ctx, c.Param("id"), staging.NormalizeProductFields(map[string]interface{}{
		"review_status": string(req.Status),
	}))
	if err != nil {
		log.Printf("Failed to set review status for %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update review status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": updated})
}

// asset fields editable through the review surface
var editableAssetFields = map[string]bool{
	"keep_asset":       true,
	"content_category": true,
	"title":            true,
	"description":      true,
}

// UpdateAsset handles PATCH /assets/:id
func (h *Handler) UpdateAsset(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}
	for k := range fields {
		if !editableAssetFields[k] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Field is not editable: " + k})
			return
		}
	}

	if err := h.staging.UpdateAsset(ctx, c.Param("id"), fields); err != nil {
		log.Printf("Failed to update staging asset %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update asset"})
		return
	}

	c.Status(http.StatusNoContent)
}

// PromoteProduct handles POST /products/:id/promote. The response contract
// mirrors the orchestrator's: {success, message} plus ids on success.
func (h *Handler) PromoteProduct(c *gin.Context) {
	if h.gl == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "catalog store not configured"})
		return
	}

	id := c.Param("id")
	outcome, err := h.promoter.Promote(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		switch {
		case errors.Is(err, promotion.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
		case errors.Is(err, promotion.ErrNotApproved), errors.Is(err, promotion.ErrAlreadyPromoted):
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
		default:
			log.Printf("Promotion of %s failed: %v", id, err)
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "promotion failed: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         outcome.Message,
		"gl_product_id":   outcome.GLProductID,
		"assets_promoted": outcome.AssetsPromoted,
	})
}

// GetDashboard handles GET /dashboard with curation KPIs
func (h *Handler) GetDashboard(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	products, err := h.staging.ListProducts(ctx, staging.ProductFilter{})
	if err != nil {
		log.Printf("Failed to list products for dashboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
		return
	}
	assets, err := h.staging.ListAllAssets(ctx)
	if err != nil {
		log.Printf("Failed to list assets for dashboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
		return
	}
	alerts, err := h.staging.ListValidationEntries(ctx)
	if err != nil {
		log.Printf("Failed to list validation entries for dashboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
		return
	}

	statusCounts := map[string]int{}
	mfrCounts := map[string]int{}
	promotedProducts := 0
	for _, p := range products {
		statusCounts[string(p.ReviewStatus)]++
		name := p.Manufacturer
		if name == "" {
			name = "—"
		}
		mfrCounts[name]++
		if p.PromotedToGL {
			promotedProducts++
		}
	}

	kept, promotedAssets := 0, 0
	for _, a := range assets {
		if a.KeepAsset {
			kept++
		}
		if a.PromotedToGL {
			promotedAssets++
		}
	}

	warnings, errs := 0, 0
	for _, a := range alerts {
		switch a.Severity {
		case "warning":
			warnings++
		case "error":
			errs++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_products":    len(products),
		"status_counts":     statusCounts,
		"promoted_products": promotedProducts,
		"top_manufacturers": topManufacturers(mfrCounts, 10),
		"assets_kept":       kept,
		"assets_promoted":   promotedAssets,
		"validation_alerts": gin.H{"warnings": warnings, "errors": errs},
	})
}

type manufacturerCount struct {
	Manufacturer string `json:"manufacturer"`
	Count        int    `json:"count"`
}

func topManufacturers(counts map[string]int, limit int) []manufacturerCount {
	out := make([]manufacturerCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, manufacturerCount{Manufacturer: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Manufacturer < out[j].Manufacturer
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
