package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	registry *checkout.Registry
	timeout  time.Duration
}

func NewCheckoutHandler(registry *checkout.Registry, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
		timeout:  timeout,
	}
}

type CountryRequestDTO struct {
	Country string `json:"country"`
}

type FieldRequestDTO struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type PostalCodeRequestDTO struct {
	PostalCode string `json:"postal_code"`
}

type PlaceRequestDTO struct {
	Index int `json:"index"`
}

type ShipToBillingRequestDTO struct {
	Same bool `json:"same"`
}

type QuoteResponseDTO struct {
	Link string `json:"link"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, err := h.registry.Start(ctx)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m.View())
}

// GET /api/v1/checkout/{session_id}
func (h *CheckoutHandler) View(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, m.View())
}

// DELETE /api/v1/checkout/{session_id}
func (h *CheckoutHandler) End(w http.ResponseWriter, r *http.Request) {
	h.registry.End(chi.URLParam(r, "session_id"))
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/checkout/{session_id}/country
func (h *CheckoutHandler) SelectCountry(w http.ResponseWriter, r *http.Request) {
	var req CountryRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SelectCountry(req.Country)
	})
}

// PATCH /api/v1/checkout/{session_id}/customer
func (h *CheckoutHandler) SetCustomerField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SetCustomerField(req.Field, req.Value)
	})
}

// PATCH /api/v1/checkout/{session_id}/billing
func (h *CheckoutHandler) SetBillingField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SetBillingField(req.Field, req.Value)
	})
}

// PATCH /api/v1/checkout/{session_id}/shipping
func (h *CheckoutHandler) SetShippingField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SetShippingField(req.Field, req.Value)
	})
}

// PUT /api/v1/checkout/{session_id}/ship-to-billing
func (h *CheckoutHandler) SetShipToBilling(w http.ResponseWriter, r *http.Request) {
	var req ShipToBillingRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SetShipToBilling(req.Same)
	})
}

// PUT /api/v1/checkout/{session_id}/postal/{field}
func (h *CheckoutHandler) SetPostalCode(w http.ResponseWriter, r *http.Request) {
	field, ok := postalField(w, r)
	if !ok {
		return
	}
	var req PostalCodeRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SetPostalCode(field, req.PostalCode)
	})
}

// POST /api/v1/checkout/{session_id}/places/{field}
func (h *CheckoutHandler) SelectPlace(w http.ResponseWriter, r *http.Request) {
	field, ok := postalField(w, r)
	if !ok {
		return
	}
	var req PlaceRequestDTO
	if !decode(w, r, &req) {
		return
	}
	h.update(w, r, func(m *checkout.Machine) error {
		return m.SelectPlace(field, req.Index)
	})
}

// POST /api/v1/checkout/{session_id}/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.update(w, r, func(m *checkout.Machine) error {
		return m.Next(ctx)
	})
}

// POST /api/v1/checkout/{session_id}/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(m *checkout.Machine) error {
		return m.Back()
	})
}

// GET /api/v1/checkout/{session_id}/quote
func (h *CheckoutHandler) ManualQuote(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, QuoteResponseDTO{Link: m.ManualQuote()})
}

// POST /api/v1/checkout/{session_id}/confirm
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := h.session(w, r)
	if !ok {
		return
	}
	var outcome payment.Outcome
	if !decode(w, r, &outcome) {
		return
	}

	conf, err := m.HandleConfirmation(ctx, outcome)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conf)
}

func (h *CheckoutHandler) session(w http.ResponseWriter, r *http.Request) (*checkout.Machine, bool) {
	m, err := h.registry.Get(chi.URLParam(r, "session_id"))
	if err != nil {
		respondDomainError(w, err)
		return nil, false
	}
	return m, true
}

// update applies fn to the session and responds with the resulting view.
func (h *CheckoutHandler) update(w http.ResponseWriter, r *http.Request, fn func(*checkout.Machine) error) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(m); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m.View())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func postalField(w http.ResponseWriter, r *http.Request) (postal.Field, bool) {
	switch f := postal.Field(chi.URLParam(r, "field")); f {
	case postal.FieldBilling, postal.FieldShipping:
		return f, true
	default:
		respondError(w, http.StatusBadRequest, "invalid_field", "field must be billing or shipping")
		return "", false
	}
}
