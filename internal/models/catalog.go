package models

// CatalogProduct is a row inserted into the global library products table
type CatalogProduct struct {
	ID             int64
	Name           string
	ManufacturerID int64
	CategoryID     *int64
	Description    *string
	SourceURL      *string
}

// DocumentAsset is a row inserted into the global library document_assets
// table. It references both the product and its manufacturer.
type DocumentAsset struct {
	ID              int64
	ProductID       int64
	ManufacturerID  int64
	AssetType       string
	ContentCategory *string
	Title           *string
	Description     *string
	URL             *string
	FileSizeBytes   *int64
}
