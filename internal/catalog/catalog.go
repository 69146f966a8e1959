// Package catalog keeps the project's product list in memory for browsing and cart lookups.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AllCategories matches every category in Filter.
const AllCategories = "all"

// DefaultRefreshInterval is how long a fetched product list is served before it is refetched.
const DefaultRefreshInterval = time.Minute

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInactive = errors.New("product is not available")
	ErrVariantNotFound = errors.New("variant not found")
	ErrNotLoaded       = errors.New("catalog not loaded")
)

type ProductSource interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

// Catalog caches the product list. Reads refetch it once it is older than the
// refresh interval; a failed refetch keeps serving the previous list.
type Catalog struct {
	source  ProductSource
	logger  *zap.Logger
	refresh time.Duration
	now     func() time.Time
	sfg     singleflight.Group

	mu       sync.RWMutex
	products []domain.Product
	byID     map[string]int
	loadedAt time.Time
	loaded   bool
}

type Option func(*Catalog)

func WithRefreshInterval(d time.Duration) Option {
	return func(c *Catalog) { c.refresh = d }
}

func New(source ProductSource, logger *zap.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{source: source, logger: logger, refresh: DefaultRefreshInterval, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the cached products with a fresh fetch. Concurrent loads share one fetch.
func (c *Catalog) Load(ctx context.Context) error {
	_, err, _ := c.sfg.Do("products", func() (interface{}, error) {
		products, err := c.source.Products(ctx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}

		byID := make(map[string]int, len(products))
		for i, p := range products {
			byID[p.UUID] = i
		}

		c.mu.Lock()
		c.products = products
		c.byID = byID
		c.loadedAt = c.now()
		c.loaded = true
		c.mu.Unlock()

		c.logger.Info("catalog loaded", zap.Int("products", len(products)))
		return nil, nil
	})
	return err
}

// ensureFresh loads the catalog when it was never loaded or is stale.
// Only a catalog that was never loaded reports an error.
func (c *Catalog) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	loaded, age := c.loaded, c.now().Sub(c.loadedAt)
	c.mu.RUnlock()
	if loaded && age < c.refresh {
		return nil
	}

	err := c.Load(ctx)
	if err == nil {
		return nil
	}
	if loaded {
		c.logger.Warn("catalog refresh failed, serving cached products", zap.Error(err))
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNotLoaded, err)
}

// Find returns the product by id, including inactive ones.
func (c *Catalog) Find(ctx context.Context, id string) (domain.Product, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return domain.Product{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return c.products[i], nil
}

// FindActive is Find restricted to products that can be bought.
func (c *Catalog) FindActive(ctx context.Context, id string) (domain.Product, error) {
	p, err := c.Find(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.IsActive {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductInactive, id)
	}
	return p, nil
}

// Filter lists active products in category whose name contains search, ignoring case.
// An empty category or AllCategories matches any category.
func (c *Catalog) Filter(ctx context.Context, category, search string) ([]domain.Product, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if !p.IsActive {
			continue
		}
		if category != "" && category != AllCategories && p.CategoryID != category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// FindVariant returns the product's variant with the given id. An empty id means no variant.
func FindVariant(p domain.Product, variantID string) (*domain.Variant, error) {
	if variantID == "" {
		return nil, nil
	}
	for i := range p.Variants {
		if p.Variants[i].UUID == variantID {
			v := p.Variants[i]
			return &v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variantID)
}
