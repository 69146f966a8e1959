// Package backend talks to the multi-tenant storefront API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTimeout = 15 * time.Second

var (
	ErrIntentRejected = errors.New("could not start the payment gateway")
	ErrEmptyResponse  = errors.New("empty response body")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

// RejectedError is a 2xx answer that did not yield a client secret.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return ErrIntentRejected.Error()
	}
	return ErrIntentRejected.Error() + ": " + e.Message
}

func (e *RejectedError) Unwrap() error { return ErrIntentRejected }

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL     string
	projectUUID string
	httpClient  *http.Client
	sfg         singleflight.Group
	logger      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL, projectUUID string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		projectUUID: projectUUID,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ProjectUUID() string { return c.projectUUID }

// Products lists the project's catalog. The body may be a bare array or wrapped in {"data": [...]}.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/products/%s", c.projectUUID))
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	var products []domain.Product
	if err := decodeEnveloped(raw, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// MerchantConfig fetches the project configuration. Concurrent callers share one request.
func (c *Client) MerchantConfig(ctx context.Context) (domain.MerchantConfig, error) {
	v, err, _ := c.sfg.Do("merchant-config", func() (interface{}, error) {
		raw, err := c.get(ctx, fmt.Sprintf("/projects_config/%s/config", c.projectUUID))
		if err != nil {
			return nil, fmt.Errorf("fetch merchant config: %w", err)
		}
		var cfg domain.MerchantConfig
		if err := decodeEnveloped(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode merchant config: %w", err)
		}
		return cfg, nil
	})
	if err != nil {
		return domain.MerchantConfig{}, err
	}
	return v.(domain.MerchantConfig), nil
}

type IntentItem struct {
	UUID        string  `json:"uuid"`
	Quantity    int     `json:"quantity"`
	VariantUUID *string `json:"variant_uuid"`
}

type IntentCustomer struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	TaxID           string          `json:"tax_id,omitempty"`
	BillingAddress  domain.Address  `json:"billing_address"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

// IntentRequest carries quantities only; the backend derives prices.
type IntentRequest struct {
	ProjectUUID  string         `json:"project_uuid"`
	Items        []IntentItem   `json:"items"`
	CustomerData IntentCustomer `json:"customer_data"`
}

type intentResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ClientSecret string `json:"clientSecret"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// NewIntentRequest reduces cart lines and customer data to the intent payload.
func NewIntentRequest(projectUUID string, items []domain.LineItem, customer domain.CustomerData) IntentRequest {
	req := IntentRequest{
		ProjectUUID: projectUUID,
		Items:       make([]IntentItem, 0, len(items)),
		CustomerData: IntentCustomer{
			Name:           customer.Name,
			Email:          customer.Email,
			Phone:          customer.Phone,
			TaxID:          customer.TaxID,
			BillingAddress: customer.Billing,
		},
	}
	for _, it := range items {
		item := IntentItem{UUID: it.ProductID, Quantity: it.Quantity}
		if it.Variant != nil {
			id := it.Variant.ID
			item.VariantUUID = &id
		}
		req.Items = append(req.Items, item)
	}
	if addr, ok := customer.SeparateShipping(); ok {
		req.CustomerData.ShippingAddress = &addr
	}
	return req
}

// CreatePaymentIntent posts the intent request and returns the client secret.
// idempotencyKey is sent as the Idempotency-Key header when set.
func (c *Client) CreatePaymentIntent(ctx context.Context, idempotencyKey string, in IntentRequest) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/create-intent", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	raw, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}

	var out intentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode intent response: %w", err)
	}
	if !out.Success || out.Data.ClientSecret == "" {
		return "", &RejectedError{Message: out.Error}
	}
	return out.Data.ClientSecret, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Message = body.Error
		}
		return nil, apiErr
	}
	return raw, nil
}

// decodeEnveloped accepts either the value itself or {"data": value}.
func decodeEnveloped(raw []byte, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ErrEmptyResponse
	}
	if raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			return json.Unmarshal(env.Data, v)
		}
	}
	return json.Unmarshal(raw, v)
}
