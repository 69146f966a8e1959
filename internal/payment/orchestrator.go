// Package payment creates payment intents for a checkout session and classifies confirmation outcomes.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

const DefaultCreateTimeout = 20 * time.Second

var (
	ErrInFlight = errors.New("payment intent creation already in flight")
	ErrNotReady = errors.New("checkout is not ready for payment")
)

type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, idempotencyKey string, req backend.IntentRequest) (string, error)
}

// Conditions is the session state an intent creation depends on.
type Conditions struct {
	ConfigLoaded bool
	Step         domain.Step
}

// Orchestrator owns the payment intent of one checkout session. At most one creation
// call is outstanding at a time and a created secret is never replaced.
type Orchestrator struct {
	creator   IntentCreator
	sessionID string
	timeout   time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	secret   string
	inFlight bool
	attempts int
}

type Option func(*Orchestrator)

func WithCreateTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(creator IntentCreator, sessionID string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		creator:   creator,
		sessionID: sessionID,
		timeout:   DefaultCreateTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ensure returns the session's client secret, creating the intent if needed.
// It returns ErrNotReady when cond does not allow creation and ErrInFlight when
// another call is already creating the intent. Once sent, the request runs to
// completion even if ctx is cancelled.
func (o *Orchestrator) Ensure(ctx context.Context, cond Conditions, req backend.IntentRequest) (string, error) {
	o.mu.Lock()
	if o.secret != "" {
		secret := o.secret
		o.mu.Unlock()
		return secret, nil
	}
	if !cond.ConfigLoaded || cond.Step != domain.StepPayment {
		o.mu.Unlock()
		return "", ErrNotReady
	}
	if o.inFlight {
		o.mu.Unlock()
		return "", ErrInFlight
	}
	o.inFlight = true
	o.attempts++
	key := fmt.Sprintf("%s:%d", o.sessionID, o.attempts)
	o.mu.Unlock()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	o.logger.Info("creating payment intent",
		zap.String("session_id", o.sessionID), zap.String("idempotency_key", key), zap.Int("items", len(req.Items)))
	secret, err := o.creator.CreatePaymentIntent(cctx, key, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
	if err != nil {
		o.logger.Warn("payment intent creation failed",
			zap.String("session_id", o.sessionID), zap.String("idempotency_key", key), zap.Error(err))
		return "", err
	}
	o.secret = secret
	return secret, nil
}

func (o *Orchestrator) Secret() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.secret
}

func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Attempts is the number of creation calls sent so far.
func (o *Orchestrator) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}
