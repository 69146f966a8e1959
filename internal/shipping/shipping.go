// Package shipping derives shipping fees and order totals from merchant configuration.
package shipping

import "github.com/fjod/go_cart/storefront/internal/domain"

// Cost returns the shipping fee in minor currency units. It has no side effects
// and is meant to be called on every total recomputation.
func Cost(cartTotal int64, destination string, merchant domain.MerchantConfig, business domain.BusinessType) int64 {
	if !business.IsPhysical() {
		return 0
	}
	if merchant.FreeShippingThreshold > 0 && cartTotal >= merchant.FreeShippingThreshold {
		return 0
	}
	if !merchant.IsDomestic(destination) {
		return merchant.ShippingIntlCost
	}
	return merchant.ShippingLocalCost
}

// Totals is the priced summary of an order.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

func Compute(subtotal int64, destination string, merchant domain.MerchantConfig, business domain.BusinessType) Totals {
	fee := Cost(subtotal, destination, merchant, business)
	return Totals{Subtotal: subtotal, Shipping: fee, Total: subtotal + fee}
}
