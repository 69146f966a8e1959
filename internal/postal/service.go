package postal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

type Searcher interface {
	Search(ctx context.Context, countryCode, postalCode string) (*domain.AddressFragment, error)
}

// Field names an input that owns its own lookup, e.g. the billing or shipping postal code.
type Field string

const (
	FieldBilling  Field = "billing"
	FieldShipping Field = "shipping"
)

// FieldState is what a form shows next to a postal code input.
type FieldState struct {
	Loading    bool
	Err        error
	Suggestion *domain.AddressFragment
}

type fieldSlot struct {
	state  FieldState
	cancel context.CancelFunc
	gen    uint64
}

// Service tracks one lookup per field. A new lookup on a field aborts the previous one
// and an aborted lookup never touches the field state.
type Service struct {
	searcher  Searcher
	debouncer *Debouncer
	logger    *zap.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	fields map[Field]*fieldSlot
}

type ServiceOption func(*Service)

func WithQuietPeriod(d time.Duration) ServiceOption {
	return func(s *Service) { s.debouncer = NewDebouncer(d) }
}

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(searcher Searcher, opts ...ServiceOption) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		searcher:   searcher,
		debouncer:  NewDebouncer(DefaultQuietPeriod),
		logger:     zap.NewNop(),
		baseCtx:    ctx,
		baseCancel: cancel,
		fields:     make(map[Field]*fieldSlot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves postalCode for field, superseding any lookup still running for it.
// It returns ErrAborted when superseded or cancelled.
func (s *Service) Lookup(ctx context.Context, field Field, postalCode, countryCode string) (*domain.AddressFragment, error) {
	return s.lookup(ctx, field, postalCode, countryCode, nil, 0)
}

// lookup runs a search for field. A non-zero token is the generation a scheduled
// lookup was issued at; if the field has moved on since, nothing runs.
func (s *Service) lookup(ctx context.Context, field Field, postalCode, countryCode string, apply func(*domain.AddressFragment), token uint64) (*domain.AddressFragment, error) {
	s.mu.Lock()
	slot := s.slot(field)
	if token != 0 && slot.gen != token {
		s.mu.Unlock()
		return nil, ErrAborted
	}
	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
	}
	slot.gen++
	if len(strings.TrimSpace(postalCode)) < minLength {
		slot.state = FieldState{}
		s.mu.Unlock()
		return nil, ErrTooShort
	}

	lctx, cancel := context.WithCancel(ctx)
	gen := slot.gen
	slot.cancel = cancel
	slot.state = FieldState{Loading: true}
	s.mu.Unlock()
	defer cancel()

	fragment, err := s.searcher.Search(lctx, countryCode, postalCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	if lctx.Err() != nil || errors.Is(err, ErrAborted) {
		if slot.gen == gen {
			slot.state.Loading = false
			slot.cancel = nil
		}
		return nil, ErrAborted
	}

	slot.cancel = nil
	if err != nil {
		s.logger.Debug("postal lookup failed",
			zap.String("field", string(field)), zap.String("postal_code", postalCode), zap.Error(err))
		slot.state = FieldState{Err: err}
		return nil, err
	}
	slot.state = FieldState{Suggestion: fragment}
	if apply != nil {
		apply(fragment)
	}
	return fragment, nil
}

// Schedule aborts the field's in-flight lookup and runs a new one after the quiet period.
// apply receives only results that were not superseded. It runs with the service lock
// held and must not call back into the Service.
func (s *Service) Schedule(field Field, postalCode, countryCode string, apply func(*domain.AddressFragment)) {
	token := s.abort(field)
	s.debouncer.Trigger(string(field), func() {
		_, _ = s.lookup(s.baseCtx, field, postalCode, countryCode, apply, token)
	})
}

// Clear aborts any pending or in-flight lookup for field and resets its state.
// A scheduled lookup whose timer already fired sees the bumped generation and
// does nothing.
func (s *Service) Clear(field Field) {
	s.debouncer.Cancel(string(field))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(field)
}

// resetLocked must be called with s.mu held.
func (s *Service) resetLocked(field Field) {
	slot := s.slot(field)
	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
	}
	slot.gen++
	slot.state = FieldState{}
}

func (s *Service) State(field Field) FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.fields[field]; ok {
		return slot.state
	}
	return FieldState{}
}

// Close stops pending lookups. The service must not be used afterwards.
func (s *Service) Close() {
	s.debouncer.Stop()
	s.baseCancel()
}

// abort cancels the field's in-flight lookup and returns the new generation.
func (s *Service) abort(field Field) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slot(field)
	if slot.cancel != nil {
		slot.cancel()
		slot.cancel = nil
		slot.state.Loading = false
	}
	slot.gen++
	return slot.gen
}

// slot must be called with s.mu held.
func (s *Service) slot(field Field) *fieldSlot {
	slot, ok := s.fields[field]
	if !ok {
		slot = &fieldSlot{}
		s.fields[field] = slot
	}
	return slot
}
