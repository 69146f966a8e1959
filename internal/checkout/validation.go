package checkout

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	msgCountryRequired  = "Select a destination country"
	msgNameRequired     = "Name is required"
	msgEmailInvalid     = "Email is invalid"
	msgPostalRequired   = "Postal code is required"
	msgNeighborhood     = "Neighborhood is required"
	msgStreetRequired   = "Street is required"
	msgNumberExtMissing = "Exterior number is required"
	msgNoCoverage       = "Your postal code requires a manual quote."
	shippingPrefix      = "Shipping address: "

	coveragePostalMinLength = 4
)

var nonDigits = regexp.MustCompile(`\D`)

// Covered reports whether automatic checkout can ship to postalCode.
// Without an allow-list every destination is covered; otherwise the code must
// have at least four characters and be listed.
func Covered(allowed []string, postalCode string) bool {
	if len(allowed) == 0 {
		return true
	}
	if len(postalCode) < coveragePostalMinLength {
		return false
	}
	return slices.Contains(allowed, postalCode)
}

func phonePattern(digits int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, digits))
}

func validate(c domain.CustomerData, s Settings, covered bool) []string {
	var msgs []string
	if strings.TrimSpace(c.Name) == "" {
		msgs = append(msgs, msgNameRequired)
	}
	if email := strings.TrimSpace(c.Email); email == "" || !strings.Contains(email, "@") {
		msgs = append(msgs, msgEmailInvalid)
	}
	if !phonePattern(s.PhoneDigits).MatchString(c.Phone) {
		msgs = append(msgs, fmt.Sprintf("Phone must have %d digits", s.PhoneDigits))
	}

	if !s.BusinessType.IsPhysical() {
		return msgs
	}

	msgs = append(msgs, addressMessages(c.Billing, "")...)
	if !covered {
		msgs = append(msgs, msgNoCoverage)
	}
	if addr, ok := c.SeparateShipping(); ok && s.RequireShippingAddress {
		msgs = append(msgs, addressMessages(addr, shippingPrefix)...)
	}
	return msgs
}

func addressMessages(a domain.Address, prefix string) []string {
	var msgs []string
	if strings.TrimSpace(a.PostalCode) == "" {
		msgs = append(msgs, prefix+msgPostalRequired)
	}
	if strings.TrimSpace(a.Neighborhood) == "" {
		msgs = append(msgs, prefix+msgNeighborhood)
	}
	if strings.TrimSpace(a.Street) == "" {
		msgs = append(msgs, prefix+msgStreetRequired)
	}
	if strings.TrimSpace(a.NumberExt) == "" {
		msgs = append(msgs, prefix+msgNumberExtMissing)
	}
	return msgs
}
