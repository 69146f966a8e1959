package domain

// Place is one locality returned for a postal code.
type Place struct {
	Name  string `json:"place_name"`
	State string `json:"state"`
}

// AddressFragment is the part of an Address a postal code lookup can fill in.
type AddressFragment struct {
	Neighborhood string  `json:"neighborhood"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code"`
	Places       []Place `json:"places,omitempty"`
}
