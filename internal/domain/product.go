package domain

import "strings"

// Product is a catalog record as served by the backend. Prices are in minor currency units.
type Product struct {
	UUID       string    `json:"uuid"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	Currency   string    `json:"currency"`
	Images     string    `json:"images"`
	IsActive   bool      `json:"is_active"`
	CategoryID string    `json:"category_id,omitempty"`
	SKU        string    `json:"sku,omitempty"`
	Variants   []Variant `json:"variants,omitempty"`
}

// Variant is a purchasable option of a product. A positive PriceOverride replaces the base price.
type Variant struct {
	UUID          string `json:"uuid"`
	VariantName   string `json:"variant_name"`
	PriceOverride int64  `json:"price_override,omitempty"`
}

// FirstImage returns the first entry of the comma-joined image list.
func (p Product) FirstImage() string {
	if p.Images == "" {
		return ""
	}
	return strings.TrimSpace(strings.Split(p.Images, ",")[0])
}

// UnitPrice is the price charged for one unit of the product with the given variant.
func (p Product) UnitPrice(v *Variant) int64 {
	if v != nil && v.PriceOverride > 0 {
		return v.PriceOverride
	}
	return p.Price
}
