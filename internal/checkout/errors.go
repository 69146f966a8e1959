package checkout

import (
	"errors"
	"strings"
)

var (
	ErrCatalogMode         = errors.New("store is in catalog mode, checkout is disabled")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrStoreClosed         = errors.New("store is not accepting orders")
	ErrManualQuoteRequired = errors.New("destination requires a manual quote")
	ErrMerchantUnavailable = errors.New("could not load store configuration")
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrSessionCompleted    = errors.New("checkout session already completed")
	ErrWrongStep           = errors.New("operation not allowed in the current step")
	ErrUnknownField        = errors.New("unknown field")
	ErrUnsupportedCountry  = errors.New("country is not supported")
	ErrShipsToBilling      = errors.New("shipping address is the billing address")
	ErrNoSuchPlace         = errors.New("no such place in the lookup result")
	ErrNoPaymentIntent     = errors.New("no payment intent for this session")
)

// ValidationError lists every failed form constraint in display order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// IntentError is a failed payment intent creation. Message is what the customer sees.
type IntentError struct {
	Message string
	Err     error
}

func (e *IntentError) Error() string {
	return "create payment intent: " + e.Err.Error()
}

func (e *IntentError) Unwrap() error { return e.Err }
