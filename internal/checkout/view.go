package checkout

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/postal"
)

type CustomerView struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	TaxID           string          `json:"tax_id,omitempty"`
	BillingAddress  domain.Address  `json:"billing_address"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

type LookupView struct {
	Loading    bool                    `json:"loading"`
	Error      string                  `json:"error,omitempty"`
	Suggestion *domain.AddressFragment `json:"suggestion,omitempty"`
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID         string                      `json:"session_id"`
	Step              string                      `json:"step"`
	Country           string                      `json:"country"`
	ShippingAvailable bool                        `json:"shipping_available"`
	ManualQuoteOnly   bool                        `json:"manual_quote_only"`
	ShipToBilling     bool                        `json:"ship_to_billing"`
	Customer          CustomerView                `json:"customer"`
	Errors            []string                    `json:"errors,omitempty"`
	APIError          string                      `json:"api_error,omitempty"`
	PaymentFailure    *payment.Failure            `json:"payment_failure,omitempty"`
	Lookups           map[postal.Field]LookupView `json:"lookups"`
	ClientSecret      string                      `json:"client_secret,omitempty"`
	PublishableKey    string                      `json:"publishable_key,omitempty"`
	PaymentInFlight   bool                        `json:"payment_in_flight"`
	Completed         bool                        `json:"completed"`
	OrderID           string                      `json:"order_id,omitempty"`
	Summary           Summary                     `json:"summary"`
}

func (m *Machine) View() View {
	lookups := map[postal.Field]LookupView{
		postal.FieldBilling:  lookupView(m.lookups.State(postal.FieldBilling)),
		postal.FieldShipping: lookupView(m.lookups.State(postal.FieldShipping)),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.customer
	cv := CustomerView{Name: c.Name, Email: c.Email, Phone: c.Phone, TaxID: c.TaxID, BillingAddress: c.Billing}
	addr, separate := c.SeparateShipping()
	if separate {
		cv.ShippingAddress = &addr
	}

	return View{
		SessionID:         m.id,
		Step:              m.step.String(),
		Country:           m.country,
		ShippingAvailable: m.shippingAvailable,
		ManualQuoteOnly:   m.needsManualQuoteLocked(),
		ShipToBilling:     !separate,
		Customer:          cv,
		Errors:            append([]string(nil), m.errors...),
		APIError:          m.apiError,
		PaymentFailure:    m.paymentFailure,
		Lookups:           lookups,
		ClientSecret:      m.payments.Secret(),
		PublishableKey:    m.settings.PublishableKey,
		PaymentInFlight:   m.payments.InFlight(),
		Completed:         m.completed,
		OrderID:           m.orderID,
		Summary:           m.summaryLocked(),
	}
}

func lookupView(st postal.FieldState) LookupView {
	v := LookupView{Loading: st.Loading, Suggestion: st.Suggestion}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}
