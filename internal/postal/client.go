// Package postal resolves postal codes to address fragments through the Zippopotam API.
package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.zippopotam.us"
	DefaultTimeout = 10 * time.Second

	defaultRate  = 5
	defaultBurst = 5
	minLength    = 3
)

var (
	ErrTooShort      = errors.New("enter at least 3 digits")
	ErrInvalidFormat = errors.New("invalid postal code format")
	ErrNotFound      = errors.New("postal code not found")
	ErrTimeout       = errors.New("postal lookup took too long, try again")
	ErrUnavailable   = errors.New("could not reach the postal service, check your connection")
	ErrUpstream      = errors.New("postal service error")
	ErrIncomplete    = errors.New("insufficient information in postal response")
	ErrAborted       = errors.New("postal lookup aborted")
)

var (
	nonDigits   = regexp.MustCompile(`\D`)
	validPostal = regexp.MustCompile(`^\d{3,10}$`)
)

// Client queries the postal API. Results are cached per country/postal code and
// concurrent misses for the same key share one outbound request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.PostalCache
	timeout    time.Duration
	sfg        singleflight.Group
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

func WithCache(pc cache.PostalCache) ClientOption {
	return func(c *Client) { c.cache = pc }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		limiter:    rate.NewLimiter(defaultRate, defaultBurst),
		cache:      cache.NewMemoryCache(cache.DefaultTTL),
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type zippoPlace struct {
	PlaceName string `json:"place name"`
	State     string `json:"state"`
}

type zippoResponse struct {
	PostCode string       `json:"post code"`
	Places   []zippoPlace `json:"places"`
}

// Search resolves a postal code. Cancelling ctx returns ErrAborted immediately;
// the outbound request itself is bounded by the client timeout.
func (c *Client) Search(ctx context.Context, countryCode, postalCode string) (*domain.AddressFragment, error) {
	if len(strings.TrimSpace(postalCode)) < minLength {
		return nil, ErrTooShort
	}
	clean := nonDigits.ReplaceAllString(postalCode, "")
	if !validPostal.MatchString(clean) {
		return nil, ErrInvalidFormat
	}

	key := cache.Key(countryCode, clean)
	if f, err := c.cache.Get(ctx, key); err == nil {
		return f, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("postal cache get failed", zap.String("key", key), zap.Error(err))
	}

	ch := c.sfg.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		f, err := c.fetch(fctx, countryCode, clean)
		if err != nil {
			return nil, err
		}
		if errSet := c.cache.Set(fctx, key, f); errSet != nil {
			c.logger.Warn("postal cache set failed", zap.String("key", key), zap.Error(errSet))
		}
		return f, nil
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrAborted
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		f := *res.Val.(*domain.AddressFragment)
		return &f, nil
	}
}

func (c *Client) fetch(ctx context.Context, countryCode, postalCode string) (*domain.AddressFragment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ErrTimeout
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, strings.ToLower(countryCode), postalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build postal request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		c.logger.Warn("postal request failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, postalCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %d %s", ErrUpstream, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body zippoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: decode: %v", ErrIncomplete, err)
	}

	return toFragment(body)
}

func toFragment(body zippoResponse) (*domain.AddressFragment, error) {
	f := &domain.AddressFragment{PostalCode: body.PostCode}
	for _, p := range body.Places {
		f.Places = append(f.Places, domain.Place{Name: p.PlaceName, State: p.State})
	}
	if len(body.Places) > 0 {
		first := body.Places[0]
		f.Neighborhood = first.PlaceName
		f.City = strings.Split(first.PlaceName, ",")[0]
		f.State = first.State
	}
	if f.State == "" {
		return nil, ErrIncomplete
	}
	return f, nil
}
