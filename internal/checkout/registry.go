package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// RegistryDeps are shared by every session the registry starts.
type RegistryDeps struct {
	Cart        Cart
	Merchants   MerchantSource
	Searcher    postal.Searcher
	Intents     payment.IntentCreator
	Publisher   publisher.Publisher
	Logger      *zap.Logger
	QuietPeriod time.Duration

	// IdleTimeout is how long a session may go without a Get before the
	// sweeper ends it.
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

type session struct {
	m       *Machine
	touched time.Time
}

// Registry owns the live checkout sessions. Completed sessions are ended as
// soon as the payment is confirmed; idle ones are swept in the background
// until Close.
type Registry struct {
	settings Settings
	deps     RegistryDeps
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewRegistry(settings Settings, deps RegistryDeps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.QuietPeriod <= 0 {
		deps.QuietPeriod = postal.DefaultQuietPeriod
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = DefaultIdleTimeout
	}
	if deps.SweepInterval <= 0 {
		deps.SweepInterval = DefaultSweepInterval
	}
	r := &Registry{
		settings: settings.normalized(),
		deps:     deps,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.sweepLoop()
	return r
}

// Start opens a session for the current cart and loads the merchant configuration.
// A failed configuration fetch does not abort the session; the next forward
// transition retries it.
func (r *Registry) Start(ctx context.Context) (*Machine, error) {
	if r.settings.Mode == domain.ModeCatalog {
		return nil, ErrCatalogMode
	}
	if r.deps.Cart.Snapshot().IsEmpty() {
		return nil, ErrEmptyCart
	}

	id := uuid.NewString()
	lookups := postal.NewService(r.deps.Searcher,
		postal.WithQuietPeriod(r.deps.QuietPeriod),
		postal.WithServiceLogger(r.logger))
	m := NewMachine(id, r.settings, Deps{
		Cart:       r.deps.Cart,
		Merchants:  r.deps.Merchants,
		Lookups:    lookups,
		Intents:    r.deps.Intents,
		Publisher:  r.deps.Publisher,
		Logger:     r.logger,
		OnComplete: r.End,
	})

	if err := m.LoadMerchant(ctx); err != nil {
		r.logger.Warn("starting session without merchant config", zap.String("session_id", id), zap.Error(err))
	}
	m.mu.Lock()
	closed := m.merchant != nil && !m.merchant.IsActive
	m.mu.Unlock()
	if closed {
		m.Close()
		return nil, ErrStoreClosed
	}

	r.mu.Lock()
	r.sessions[id] = &session{m: m, touched: r.now()}
	r.mu.Unlock()

	r.logger.Info("checkout session started", zap.String("session_id", id))
	return m, nil
}

// Get returns a live session and marks it as recently used.
func (r *Registry) Get(id string) (*Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touched = r.now()
	return s.m, nil
}

// End discards a session. Ending an unknown session is a no-op.
func (r *Registry) End(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.m.Close()
		r.logger.Info("checkout session ended", zap.String("session_id", id))
	}
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.deps.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep ends every session idle for longer than the idle timeout.
func (r *Registry) sweep() int {
	cutoff := r.now().Add(-r.deps.IdleTimeout)

	var expired []*Machine
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.touched.Before(cutoff) {
			expired = append(expired, s.m)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, m := range expired {
		m.Close()
		r.logger.Info("checkout session expired", zap.String("session_id", m.ID()))
	}
	return len(expired)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the sweeper and ends every session. It is safe to call more
// than once.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.m.Close()
	}
}
