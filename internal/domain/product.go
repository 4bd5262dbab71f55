package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog. Products are identified
// internally by ID and externally by SKU; all API lookups go through SKU.
type Product struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	SKU             string          `json:"sku" db:"sku"`
	Name            string          `json:"name" db:"name"`
	Description     string          `json:"description" db:"description"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Enabled         bool            `json:"enabled" db:"enabled"`
	ImageObjectName string          `json:"image_object_name,omitempty" db:"image_object_name"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// HasImage reports whether an image object has been uploaded for the product.
func (p *Product) HasImage() bool {
	return p.ImageObjectName != ""
}
