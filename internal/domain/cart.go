package domain

// SelectedVariant is the variant reference kept on a line item.
type SelectedVariant struct {
	ID   string `json:"uuid"`
	Name string `json:"variant_name"`
}

// LineItem is one distinct product+variant entry in the cart.
type LineItem struct {
	ProductID  string           `json:"uuid"`
	Name       string           `json:"name"`
	UnitPrice  int64            `json:"price"`
	Currency   string           `json:"currency"`
	Image      string           `json:"image"`
	Quantity   int              `json:"quantity"`
	SKU        string           `json:"sku,omitempty"`
	CategoryID string           `json:"category_id,omitempty"`
	Variant    *SelectedVariant `json:"selectedVariant,omitempty"`
}

// LineKey identifies a line item. An empty VariantID stands for "no variant".
type LineKey struct {
	ProductID string
	VariantID string
}

func (i LineItem) Key() LineKey {
	k := LineKey{ProductID: i.ProductID}
	if i.Variant != nil {
		k.VariantID = i.Variant.ID
	}
	return k
}

// Subtotal is UnitPrice × Quantity.
func (i LineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// CartSnapshot is a read-only view of the cart with its derived totals.
type CartSnapshot struct {
	Items         []LineItem `json:"items"`
	Currency      string     `json:"currency"`
	TotalAmount   int64      `json:"total_amount"`
	TotalQuantity int        `json:"total_quantity"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}
