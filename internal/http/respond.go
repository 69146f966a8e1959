package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/payment"
)

type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent, nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondDomainError converts package errors to HTTP status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "validation failed",
			Code:     "validation_failed",
			Messages: verr.Messages,
		})
		return
	}

	var intentErr *checkout.IntentError
	if errors.As(err, &intentErr) {
		code := "payment_unavailable"
		if errors.Is(err, backend.ErrIntentRejected) {
			code = "payment_rejected"
		}
		respondError(w, http.StatusBadGateway, code, intentErr.Message)
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		respondError(w, http.StatusBadGateway, "backend_error", apiErr.Error())
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, checkout.ErrUnknownField),
		errors.Is(err, checkout.ErrUnsupportedCountry),
		errors.Is(err, checkout.ErrNoSuchPlace),
		errors.Is(err, cart.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case errors.Is(err, checkout.ErrCatalogMode):
		httpStatus = http.StatusForbidden
		code = "catalog_mode"
	case errors.Is(err, checkout.ErrManualQuoteRequired):
		httpStatus = http.StatusConflict
		code = "manual_quote_required"
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus = http.StatusConflict
		code = "empty_cart"
	case errors.Is(err, catalog.ErrProductInactive):
		httpStatus = http.StatusConflict
		code = "product_inactive"
	case errors.Is(err, cart.ErrCurrencyMismatch):
		httpStatus = http.StatusConflict
		code = "currency_mismatch"
	case errors.Is(err, checkout.ErrSessionCompleted),
		errors.Is(err, checkout.ErrWrongStep),
		errors.Is(err, checkout.ErrShipsToBilling),
		errors.Is(err, checkout.ErrNoPaymentIntent),
		errors.Is(err, payment.ErrNotReady):
		httpStatus = http.StatusConflict
		code = "failed_precondition"
	case errors.Is(err, checkout.ErrStoreClosed):
		httpStatus = http.StatusServiceUnavailable
		code = "store_closed"
	case errors.Is(err, catalog.ErrNotLoaded):
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case errors.Is(err, checkout.ErrMerchantUnavailable):
		httpStatus = http.StatusBadGateway
		code = "merchant_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
