// Package http exposes the cart and checkout sessions as a local JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultMaxRequestBodySize = 1 << 20 // 1MB
)

type RouterConfig struct {
	Products           *ProductHandler
	Cart               *CartHandler
	Checkout           *CheckoutHandler
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = DefaultMaxRequestBodySize
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Products.List)
			r.Get("/{product_id}", cfg.Products.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Patch("/items/{product_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.Start)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", cfg.Checkout.View)
				r.Delete("/", cfg.Checkout.End)
				r.Put("/country", cfg.Checkout.SelectCountry)
				r.Patch("/customer", cfg.Checkout.SetCustomerField)
				r.Patch("/billing", cfg.Checkout.SetBillingField)
				r.Patch("/shipping", cfg.Checkout.SetShippingField)
				r.Put("/ship-to-billing", cfg.Checkout.SetShipToBilling)
				r.Put("/postal/{field}", cfg.Checkout.SetPostalCode)
				r.Post("/places/{field}", cfg.Checkout.SelectPlace)
				r.Post("/next", cfg.Checkout.Next)
				r.Post("/back", cfg.Checkout.Back)
				r.Get("/quote", cfg.Checkout.ManualQuote)
				r.Post("/confirm", cfg.Checkout.Confirm)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
