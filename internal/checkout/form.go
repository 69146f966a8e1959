package checkout

import (
	"regexp"
	"slices"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/postal"
)

var nonAlphanumeric = regexp.MustCompile(`[^0-9a-zA-Z]`)

// SelectCountry sets the destination country. Changing it drops postal codes
// typed for the previous country along with their lookups.
func (m *Machine) SelectCountry(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	m.mu.Lock()
	if m.step != domain.StepCountrySelection {
		m.mu.Unlock()
		return ErrWrongStep
	}
	if len(m.settings.SupportedCountries) > 0 && !slices.Contains(m.settings.SupportedCountries, code) {
		m.mu.Unlock()
		return ErrUnsupportedCountry
	}
	changed := code != m.country
	m.country = code
	m.customer.Billing.CountryCode = code
	if changed {
		m.customer.Billing.PostalCode = ""
		if st, ok := m.customer.Shipping.(domain.ShipTo); ok {
			st.Address.PostalCode = ""
			st.Address.CountryCode = code
			m.customer.Shipping = st
		}
	}
	m.errors = nil
	m.recomputeCoverageLocked()
	m.mu.Unlock()

	if changed {
		m.lookups.Clear(postal.FieldBilling)
		m.lookups.Clear(postal.FieldShipping)
	}
	return nil
}

// SetCustomerField updates a contact field. Phone keeps digits only, up to the configured length.
func (m *Machine) SetCustomerField(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		return ErrSessionCompleted
	}

	switch field {
	case "name":
		m.customer.Name = value
	case "email":
		m.customer.Email = strings.TrimSpace(value)
	case "phone":
		digits := nonDigits.ReplaceAllString(value, "")
		if len(digits) > m.settings.PhoneDigits {
			digits = digits[:m.settings.PhoneDigits]
		}
		m.customer.Phone = digits
	case "tax_id":
		m.customer.TaxID = value
	default:
		return ErrUnknownField
	}
	return nil
}

// SetBillingField updates one billing address field. postal_code goes through SetPostalCode.
func (m *Machine) SetBillingField(field, value string) error {
	if field == "postal_code" {
		return m.SetPostalCode(postal.FieldBilling, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		return ErrSessionCompleted
	}
	return setAddressField(&m.customer.Billing, field, value)
}

// SetShippingField updates one field of the separate shipping address.
func (m *Machine) SetShippingField(field, value string) error {
	if field == "postal_code" {
		return m.SetPostalCode(postal.FieldShipping, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		return ErrSessionCompleted
	}
	return m.updateAddressLocked(postal.FieldShipping, func(a *domain.Address) error {
		return setAddressField(a, field, value)
	})
}

// SetShipToBilling switches between shipping to the billing address and a separate one.
// A new separate address starts as a copy of the billing address.
func (m *Machine) SetShipToBilling(same bool) error {
	m.mu.Lock()
	if m.completed {
		m.mu.Unlock()
		return ErrSessionCompleted
	}
	_, separate := m.customer.Shipping.(domain.ShipTo)
	switch {
	case same:
		m.customer.Shipping = domain.SameAsBilling{}
	case !separate:
		addr := m.customer.Billing
		addr.CountryCode = m.country
		m.customer.Shipping = domain.ShipTo{Address: addr}
	}
	m.recomputeCoverageLocked()
	m.mu.Unlock()

	if same && separate {
		m.lookups.Clear(postal.FieldShipping)
	}
	return nil
}

// SetPostalCode stores the cleaned code, recomputes coverage and schedules a
// debounced lookup that autofills the address.
func (m *Machine) SetPostalCode(field postal.Field, value string) error {
	clean := strings.ToUpper(nonAlphanumeric.ReplaceAllString(value, ""))

	m.mu.Lock()
	if m.completed {
		m.mu.Unlock()
		return ErrSessionCompleted
	}
	country := m.country
	err := m.updateAddressLocked(field, func(a *domain.Address) error {
		a.PostalCode = clean
		a.CountryCode = country
		return nil
	})
	if err == nil {
		m.recomputeCoverageLocked()
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if country == "" {
		return nil
	}
	m.lookups.Schedule(field, clean, country, func(f *domain.AddressFragment) {
		m.applyFragment(field, clean, country, f)
	})
	return nil
}

// SelectPlace fills neighborhood, city and state from the i-th place of the last lookup.
func (m *Machine) SelectPlace(field postal.Field, i int) error {
	st := m.lookups.State(field)
	if st.Suggestion == nil || i < 0 || i >= len(st.Suggestion.Places) {
		return ErrNoSuchPlace
	}
	place := st.Suggestion.Places[i]

	m.mu.Lock()
	defer m.mu.Unlock()
	country := m.country
	return m.updateAddressLocked(field, func(a *domain.Address) error {
		a.Neighborhood = place.Name
		a.City = strings.Split(place.Name, ",")[0]
		a.State = place.State
		a.CountryCode = country
		return nil
	})
}

func (m *Machine) applyFragment(field postal.Field, postalCode, country string, f *domain.AddressFragment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		return
	}
	err := m.updateAddressLocked(field, func(a *domain.Address) error {
		a.Neighborhood = f.Neighborhood
		a.City = f.City
		a.State = f.State
		a.PostalCode = postalCode
		a.CountryCode = country
		return nil
	})
	if err != nil {
		return
	}
	m.recomputeCoverageLocked()
}

func (m *Machine) updateAddressLocked(field postal.Field, fn func(*domain.Address) error) error {
	switch field {
	case postal.FieldBilling:
		return fn(&m.customer.Billing)
	case postal.FieldShipping:
		st, ok := m.customer.Shipping.(domain.ShipTo)
		if !ok {
			return ErrShipsToBilling
		}
		if err := fn(&st.Address); err != nil {
			return err
		}
		m.customer.Shipping = st
		return nil
	default:
		return ErrUnknownField
	}
}

func setAddressField(a *domain.Address, field, value string) error {
	switch field {
	case "street":
		a.Street = value
	case "number_ext":
		a.NumberExt = value
	case "number_int":
		a.NumberInt = value
	case "neighborhood":
		a.Neighborhood = value
	case "city":
		a.City = value
	case "state":
		a.State = value
	case "references":
		a.References = value
	default:
		return ErrUnknownField
	}
	return nil
}
