package domain

// Address is a postal address. Country travels as "country" on the wire.
type Address struct {
	Street       string `json:"street"`
	NumberExt    string `json:"number_ext"`
	NumberInt    string `json:"number_int,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country"`
	References   string `json:"references,omitempty"`
}

// ShippingDestination is either SameAsBilling or ShipTo.
type ShippingDestination interface {
	isShippingDestination()
}

// SameAsBilling ships to the billing address.
type SameAsBilling struct{}

// ShipTo ships to a separate address.
type ShipTo struct {
	Address Address
}

func (SameAsBilling) isShippingDestination() {}
func (ShipTo) isShippingDestination()        {}

// CustomerData is the checkout form model.
type CustomerData struct {
	Name     string
	Email    string
	Phone    string
	TaxID    string
	Billing  Address
	Shipping ShippingDestination
}

// NewCustomerData returns an empty form that ships to the billing address.
func NewCustomerData() CustomerData {
	return CustomerData{Shipping: SameAsBilling{}}
}

// SeparateShipping returns the shipping address when it differs from billing.
func (c CustomerData) SeparateShipping() (Address, bool) {
	switch d := c.Shipping.(type) {
	case ShipTo:
		return d.Address, true
	default:
		return Address{}, false
	}
}

// DeliveryAddress is where the order goes.
func (c CustomerData) DeliveryAddress() Address {
	if a, ok := c.SeparateShipping(); ok {
		return a
	}
	return c.Billing
}
