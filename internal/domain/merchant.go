package domain

import "strings"

// MerchantConfig is the per-project configuration served by the backend.
type MerchantConfig struct {
	OriginCountry         string `json:"origin_country"`
	ShippingLocalCost     int64  `json:"shipping_local_cost"`
	ShippingIntlCost      int64  `json:"shipping_intl_cost"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold"`
	BaseCurrency          string `json:"base_currency"`
	SupportEmail          string `json:"support_email,omitempty"`
	IsActive              bool   `json:"is_active"`
}

// IsDomestic reports whether the destination is the merchant's origin country.
func (m MerchantConfig) IsDomestic(country string) bool {
	return strings.EqualFold(strings.TrimSpace(country), strings.TrimSpace(m.OriginCountry))
}

// ShipsInternationally reports whether an international rate is configured.
func (m MerchantConfig) ShipsInternationally() bool {
	return m.ShippingIntlCost > 0
}

type BusinessType string

const (
	BusinessPhysical BusinessType = "physical"
	BusinessService  BusinessType = "service"
)

// IsPhysical is true for anything that is not explicitly a service business.
func (b BusinessType) IsPhysical() bool {
	return b != BusinessService
}

type StoreMode string

const (
	ModeShop    StoreMode = "shop"
	ModeCatalog StoreMode = "catalog"
)
