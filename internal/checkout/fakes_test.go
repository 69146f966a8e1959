package checkout

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/fjod/go_cart/storefront/internal/publisher"
)

type fakeCart struct {
	m       sync.RWMutex
	items   []domain.LineItem
	cleared int
}

func newFakeCart(items ...domain.LineItem) *fakeCart {
	return &fakeCart{items: items}
}

func (c *fakeCart) Snapshot() domain.CartSnapshot {
	c.m.RLock()
	defer c.m.RUnlock()
	s := domain.CartSnapshot{Items: append([]domain.LineItem(nil), c.items...), Currency: "mxn"}
	for _, it := range c.items {
		s.TotalAmount += it.Subtotal()
		s.TotalQuantity += it.Quantity
	}
	if len(c.items) > 0 {
		s.Currency = c.items[0].Currency
	}
	return s
}

func (c *fakeCart) Clear(context.Context) {
	c.m.Lock()
	defer c.m.Unlock()
	c.items = nil
	c.cleared++
}

type fakeMerchants struct {
	m     sync.RWMutex
	cfg   domain.MerchantConfig
	err   error
	calls int
}

func (f *fakeMerchants) MerchantConfig(context.Context) (domain.MerchantConfig, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	if f.err != nil {
		return domain.MerchantConfig{}, f.err
	}
	return f.cfg, nil
}

type scheduled struct {
	field   postal.Field
	postal  string
	country string
}

type fakeLookups struct {
	m         sync.RWMutex
	scheduled []scheduled
	cleared   []postal.Field
	states    map[postal.Field]postal.FieldState
	result    *domain.AddressFragment
	closed    bool
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{states: make(map[postal.Field]postal.FieldState)}
}

func (f *fakeLookups) Schedule(field postal.Field, postalCode, countryCode string, apply func(*domain.AddressFragment)) {
	f.m.Lock()
	f.scheduled = append(f.scheduled, scheduled{field, postalCode, countryCode})
	result := f.result
	if result != nil {
		f.states[field] = postal.FieldState{Suggestion: result}
	}
	f.m.Unlock()

	if result != nil && apply != nil {
		apply(result)
	}
}

func (f *fakeLookups) Clear(field postal.Field) {
	f.m.Lock()
	defer f.m.Unlock()
	f.cleared = append(f.cleared, field)
	delete(f.states, field)
}

func (f *fakeLookups) State(field postal.Field) postal.FieldState {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.states[field]
}

func (f *fakeLookups) Close() {
	f.m.Lock()
	defer f.m.Unlock()
	f.closed = true
}

type fakeIntents struct {
	m       sync.RWMutex
	reqs    []backend.IntentRequest
	keys    []string
	secret  string
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakeIntents) CreatePaymentIntent(_ context.Context, key string, req backend.IntentRequest) (string, error) {
	f.m.Lock()
	f.reqs = append(f.reqs, req)
	f.keys = append(f.keys, key)
	release, entered := f.release, f.entered
	f.m.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.m.RLock()
	defer f.m.RUnlock()
	if f.err != nil {
		return "", f.err
	}
	return f.secret, nil
}

func (f *fakeIntents) calls() int {
	f.m.RLock()
	defer f.m.RUnlock()
	return len(f.reqs)
}

type fakePublisher struct {
	m      sync.RWMutex
	events []publisher.OrderCompleted
	err    error
}

func (p *fakePublisher) PublishOrderCompleted(_ context.Context, e publisher.OrderCompleted) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }
