package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxQuantity = 99

type CartService interface {
	AddItem(ctx context.Context, product domain.Product, quantity int, variant *domain.Variant) error
	RemoveItem(ctx context.Context, productID, variantID string)
	UpdateQuantity(ctx context.Context, productID string, delta int, variantID string) bool
	Clear(ctx context.Context)
	Snapshot() domain.CartSnapshot
}

type CartHandler struct {
	cart    CartService
	catalog ProductCatalog
	timeout time.Duration
}

func NewCartHandler(cart CartService, catalog ProductCatalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Delta     int    `json:"delta"`
	VariantID string `json:"variant_id,omitempty"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cart.Snapshot())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.FindActive(ctx, req.ProductID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	variant, err := catalog.FindVariant(product, req.VariantID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if err := h.cart.AddItem(ctx, product, req.Quantity, variant); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.cart.Snapshot())
}

// PATCH /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.cart.UpdateQuantity(ctx, chi.URLParam(r, "product_id"), req.Delta, req.VariantID)
	respondJSON(w, http.StatusOK, h.cart.Snapshot())
}

// DELETE /api/v1/cart/items/{product_id}?variant_id=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.cart.RemoveItem(ctx, chi.URLParam(r, "product_id"), r.URL.Query().Get("variant_id"))
	respondJSON(w, http.StatusOK, h.cart.Snapshot())
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.cart.Clear(ctx)
	respondJSON(w, http.StatusOK, h.cart.Snapshot())
}
