package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultStorageKey = "metritrak_cart"
	DefaultCurrency   = "mxn"

	persistTimeout = 2 * time.Second
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrCurrencyMismatch = errors.New("cart already holds items priced in another currency")
)

// Store owns the cart line items and mirrors every mutation to a SnapshotRepository.
// The checkout flow reads it through Snapshot and never mutates items directly.
type Store struct {
	mu    sync.Mutex
	items []domain.LineItem

	repo             repository.SnapshotRepository
	key              string
	fallbackCurrency string
	currencyGuard    bool
	notifier         Notifier
	logger           *zap.Logger
}

type Option func(*Store)

func WithStorageKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithFallbackCurrency(currency string) Option {
	return func(s *Store) { s.fallbackCurrency = strings.ToLower(currency) }
}

// WithCurrencyGuard rejects items whose currency differs from the cart's.
func WithCurrencyGuard(enabled bool) Option {
	return func(s *Store) { s.currencyGuard = enabled }
}

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore restores the persisted cart. A missing or unreadable snapshot yields an empty cart.
func NewStore(ctx context.Context, repo repository.SnapshotRepository, opts ...Option) *Store {
	s := &Store{
		repo:             repo,
		key:              DefaultStorageKey,
		fallbackCurrency: DefaultCurrency,
		notifier:         nopNotifier{},
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	items, err := repo.LoadSnapshot(ctx, s.key)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		s.logger.Debug("no persisted cart, starting empty", zap.String("key", s.key))
	case err != nil:
		s.logger.Warn("failed to restore cart, starting empty", zap.String("key", s.key), zap.Error(err))
	default:
		s.items = sanitize(items)
	}

	return s
}

// AddItem merges quantity into the line matching (product, variant) or appends a new line.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int, variant *domain.Variant) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	currency := strings.ToLower(product.Currency)
	if currency == "" {
		currency = s.fallbackCurrency
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currencyGuard && len(s.items) > 0 && s.items[0].Currency != currency {
		s.notifier.Notify(Notification{Kind: NotificationError, Message: "You cannot mix currencies in one cart"})
		return ErrCurrencyMismatch
	}

	key := domain.LineKey{ProductID: product.UUID}
	if variant != nil {
		key.VariantID = variant.UUID
	}

	if i := s.indexOf(key); i >= 0 {
		s.items[i].Quantity += quantity
	} else {
		line := domain.LineItem{
			ProductID:  product.UUID,
			Name:       product.Name,
			UnitPrice:  product.UnitPrice(variant),
			Currency:   currency,
			Image:      product.FirstImage(),
			Quantity:   quantity,
			SKU:        product.SKU,
			CategoryID: product.CategoryID,
		}
		if variant != nil {
			line.Variant = &domain.SelectedVariant{ID: variant.UUID, Name: variant.VariantName}
		}
		s.items = append(s.items, line)
	}

	s.persist(ctx)
	s.notifier.Notify(Notification{Kind: NotificationSuccess, Message: "Added to cart"})
	return nil
}

// RemoveItem deletes the matching line. Removing an absent line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(domain.LineKey{ProductID: productID, VariantID: variantID})
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persist(ctx)
}

// UpdateQuantity adds delta to the matching line. Results below 1 are ignored;
// removal goes through RemoveItem. Reports whether the line changed.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, delta int, variantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(domain.LineKey{ProductID: productID, VariantID: variantID})
	if i < 0 {
		return false
	}
	next := s.items[i].Quantity + delta
	if next <= 0 || delta == 0 {
		return false
	}
	s.items[i].Quantity = next
	s.persist(ctx)
	return true
}

// Clear empties the cart and removes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.repo.DeleteSnapshot(pctx, s.key); err != nil {
		s.logger.Warn("failed to delete persisted cart", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.LineItem, len(s.items))
	for i, it := range s.items {
		if it.Variant != nil {
			v := *it.Variant
			it.Variant = &v
		}
		items[i] = it
	}

	return domain.CartSnapshot{
		Items:         items,
		Currency:      s.currencyLocked(),
		TotalAmount:   totalAmount(s.items),
		TotalQuantity: totalQuantity(s.items),
	}
}

func (s *Store) TotalAmount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalAmount(s.items)
}

func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalQuantity(s.items)
}

func (s *Store) Currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currencyLocked()
}

func (s *Store) currencyLocked() string {
	if len(s.items) > 0 && s.items[0].Currency != "" {
		return s.items[0].Currency
	}
	return s.fallbackCurrency
}

func (s *Store) indexOf(key domain.LineKey) int {
	for i := range s.items {
		if s.items[i].Key() == key {
			return i
		}
	}
	return -1
}

// persist writes the whole cart. Caller holds s.mu, so writes land in mutation order.
func (s *Store) persist(ctx context.Context) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.repo.SaveSnapshot(pctx, s.key, s.items); err != nil {
		s.logger.Warn("failed to persist cart", zap.String("key", s.key), zap.Error(err))
	}
}

func totalAmount(items []domain.LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Subtotal()
	}
	return sum
}

func totalQuantity(items []domain.LineItem) int {
	sum := 0
	for _, it := range items {
		sum += it.Quantity
	}
	return sum
}

// sanitize drops unusable lines and folds duplicate keys from a restored snapshot.
func sanitize(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	index := make(map[domain.LineKey]int, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.Key()]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.Key()] = len(out)
		out = append(out, it)
	}
	return out
}
