package models

import "time"

// ReviewStatus represents where a staging product sits in the curation workflow
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusInReview ReviewStatus = "in_review"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Valid reports whether s is one of the known workflow states
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusInReview, ReviewStatusApproved, ReviewStatusRejected:
		return true
	}
	return false
}

// StagingProduct represents a product record awaiting curation in the staging store
type StagingProduct struct {
	ID                string       `json:"id"`
	ProductName       string       `json:"product_name"`
	Manufacturer      string       `json:"manufacturer"`
	Category          *string      `json:"category"`
	Description       *string      `json:"description"`
	Indications       *string      `json:"indications"`
	Contraindications *string      `json:"contraindications"`
	RegulatoryStatus  *string      `json:"regulatory_status"`
	CompletenessScore int          `json:"completeness_score"`
	SourceURLs        []string     `json:"source_urls"`
	SourcePageIDs     []string     `json:"source_page_ids"`
	ActiveIngredients []string     `json:"active_ingredients"`
	ReviewStatus      ReviewStatus `json:"review_status"`
	PromotedToGL      bool         `json:"promoted_to_gl"`
	GLProductID       *string      `json:"gl_product_id"`
	PromotedAt        *time.Time   `json:"promoted_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// StagingAsset is a document or media file attached to one staging product.
// Only assets with KeepAsset=true are eligible for promotion; once promoted,
// GLAssetID points at the catalog row and the asset is never promoted again.
type StagingAsset struct {
	ID               string    `json:"id"`
	StagingProductID string    `json:"staging_product_id"`
	AssetType        string    `json:"asset_type"`
	ContentCategory  *string   `json:"content_category"`
	FileName         *string   `json:"file_name"`
	Title            *string   `json:"title"`
	Description      *string   `json:"description"`
	FileURL          *string   `json:"file_url"`
	FileSizeBytes    *int64    `json:"file_size_bytes"`
	KeepAsset        bool      `json:"keep_asset"`
	PromotedToGL     bool      `json:"promoted_to_gl"`
	GLAssetID        *int64    `json:"gl_asset_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// PromotionStatus is the outcome recorded on a promotion log entry
type PromotionStatus string

const (
	PromotionStatusSuccess PromotionStatus = "success"
	PromotionStatusFailed  PromotionStatus = "failed"
)

// PromotionLogEntry is the immutable audit record written once per promotion
// attempt that passed preconditions, regardless of outcome. It lives in the
// staging store so the trail survives catalog failures.
type PromotionLogEntry struct {
	ID                  string          `json:"id,omitempty"`
	StagingProductID    string          `json:"staging_product_id"`
	GLProductID         *string         `json:"gl_product_id,omitempty"`
	PromotedBy          string          `json:"promoted_by"`
	AssetsPromotedCount int             `json:"assets_promoted_count"`
	PromotionStatus     PromotionStatus `json:"promotion_status"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
}

// ValidationEntry is a validation alert raised by the ingestion pipeline
type ValidationEntry struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
}
