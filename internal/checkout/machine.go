// Package checkout drives a checkout session from country selection to payment confirmation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"go.uber.org/zap"
)

const defaultPhoneDigits = 10

// Settings is the static store configuration a session checks against.
type Settings struct {
	ProjectUUID            string
	StoreName              string
	Mode                   domain.StoreMode
	BusinessType           domain.BusinessType
	AllowedZipCodes        []string
	SupportedCountries     []string
	PhoneDigits            int
	RequireShippingAddress bool
	WhatsAppNumber         string
	PublishableKey         string
}

func (s Settings) normalized() Settings {
	if s.PhoneDigits <= 0 {
		s.PhoneDigits = defaultPhoneDigits
	}
	if s.BusinessType == "" {
		s.BusinessType = domain.BusinessPhysical
	}
	if s.Mode == "" {
		s.Mode = domain.ModeShop
	}
	return s
}

// Cart is the read side of the cart store plus the post-purchase clear.
type Cart interface {
	Snapshot() domain.CartSnapshot
	Clear(ctx context.Context)
}

type MerchantSource interface {
	MerchantConfig(ctx context.Context) (domain.MerchantConfig, error)
}

type PostalLookup interface {
	Schedule(field postal.Field, postalCode, countryCode string, apply func(*domain.AddressFragment))
	Clear(field postal.Field)
	State(field postal.Field) postal.FieldState
	Close()
}

// Deps are the collaborators of one session.
type Deps struct {
	Cart      Cart
	Merchants MerchantSource
	Lookups   PostalLookup
	Intents   payment.IntentCreator
	Publisher publisher.Publisher
	Logger    *zap.Logger

	// OnComplete runs once after a successful payment confirmation.
	OnComplete func(sessionID string)
}

// Machine is one checkout session. All methods are safe for concurrent use.
// The machine never calls its PostalLookup while holding mu, because lookup
// results are applied back into the machine under the lookup's own lock.
type Machine struct {
	id        string
	settings  Settings
	cart      Cart
	merchants MerchantSource
	lookups   PostalLookup
	payments  *payment.Orchestrator
	publisher publisher.Publisher
	logger    *zap.Logger
	onDone    func(string)

	mu                sync.Mutex
	step              domain.Step
	country           string
	shippingAvailable bool
	customer          domain.CustomerData
	merchant          *domain.MerchantConfig
	errors            []string
	apiError          string
	paymentFailure    *payment.Failure
	completed         bool
	orderID           string
}

func NewMachine(id string, settings Settings, deps Deps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := deps.Publisher
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	settings = settings.normalized()

	m := &Machine{
		id:        id,
		settings:  settings,
		cart:      deps.Cart,
		merchants: deps.Merchants,
		lookups:   deps.Lookups,
		payments:  payment.NewOrchestrator(deps.Intents, id, payment.WithLogger(logger)),
		publisher: pub,
		logger:    logger.With(zap.String("session_id", id)),
		onDone:    deps.OnComplete,
		step:      domain.StepCountrySelection,
		customer:  domain.NewCustomerData(),
	}
	m.shippingAvailable = Covered(settings.AllowedZipCodes, "")
	return m
}

func (m *Machine) ID() string { return m.id }

func (m *Machine) Step() domain.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// LoadMerchant fetches the merchant configuration once per session.
func (m *Machine) LoadMerchant(ctx context.Context) error {
	m.mu.Lock()
	loaded := m.merchant != nil
	m.mu.Unlock()
	if loaded {
		return nil
	}

	cfg, err := m.merchants.MerchantConfig(ctx)
	if err != nil {
		m.logger.Warn("merchant config fetch failed", zap.Error(err))
		m.mu.Lock()
		m.apiError = "Could not load the store configuration. Try again."
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMerchantUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.merchant == nil {
		m.merchant = &cfg
		m.apiError = ""
	}
	return nil
}

// Next moves the session one step forward. In Payment it (re)creates the payment
// intent if the session does not have one yet.
func (m *Machine) Next(ctx context.Context) error {
	switch m.Step() {
	case domain.StepCountrySelection:
		return m.toAddress(ctx)
	case domain.StepAddressCollection:
		return m.toPayment(ctx)
	default:
		return m.ensureIntent(ctx)
	}
}

// Back moves exactly one step backwards. CountrySelection stays put.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed {
		return ErrSessionCompleted
	}
	m.step = m.step.Previous()
	m.errors = nil
	m.paymentFailure = nil
	return nil
}

func (m *Machine) toAddress(ctx context.Context) error {
	if err := m.LoadMerchant(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != domain.StepCountrySelection {
		return nil
	}
	if err := m.guardLocked(); err != nil {
		return err
	}
	if m.country == "" {
		m.errors = []string{msgCountryRequired}
		return &ValidationError{Messages: m.errors}
	}
	if m.needsManualQuoteLocked() {
		return ErrManualQuoteRequired
	}

	m.errors = nil
	m.step = domain.StepAddressCollection
	m.logger.Debug("checkout step changed", zap.Stringer("step", m.step), zap.String("country", m.country))
	return nil
}

func (m *Machine) toPayment(ctx context.Context) error {
	m.mu.Lock()
	if m.step != domain.StepAddressCollection {
		m.mu.Unlock()
		return nil
	}
	if err := m.guardLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if msgs := validate(m.customer, m.settings, m.shippingAvailable); len(msgs) > 0 {
		m.errors = msgs
		m.mu.Unlock()
		return &ValidationError{Messages: msgs}
	}

	m.errors = nil
	m.apiError = ""
	m.step = domain.StepPayment
	m.logger.Debug("checkout step changed", zap.Stringer("step", m.step))
	m.mu.Unlock()

	return m.ensureIntent(ctx)
}

// ensureIntent creates the payment intent on entry to Payment. A failure reverts
// the session to AddressCollection so the customer can correct and retry.
func (m *Machine) ensureIntent(ctx context.Context) error {
	m.mu.Lock()
	if m.completed {
		m.mu.Unlock()
		return nil
	}
	cond := payment.Conditions{ConfigLoaded: m.merchant != nil, Step: m.step}
	req := backend.NewIntentRequest(m.settings.ProjectUUID, m.cart.Snapshot().Items, m.customer)
	m.mu.Unlock()

	_, err := m.payments.Ensure(ctx, cond, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payment.ErrInFlight):
		return nil
	case errors.Is(err, payment.ErrNotReady):
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiError = intentErrorMessage(err)
	if m.step == domain.StepPayment {
		m.step = domain.StepAddressCollection
	}
	return &IntentError{Message: m.apiError, Err: err}
}

func intentErrorMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var rejected *backend.RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	if errors.Is(err, backend.ErrIntentRejected) {
		return "Could not start the payment gateway."
	}
	return "Could not connect to the server."
}

// guardLocked checks the conditions every forward transition needs.
func (m *Machine) guardLocked() error {
	if m.completed {
		return ErrSessionCompleted
	}
	if m.merchant != nil && !m.merchant.IsActive {
		return ErrStoreClosed
	}
	if m.cart.Snapshot().IsEmpty() {
		return ErrEmptyCart
	}
	return nil
}

func (m *Machine) needsManualQuoteLocked() bool {
	if m.merchant == nil || m.country == "" {
		return false
	}
	return !m.merchant.IsDomestic(m.country) && !m.merchant.ShipsInternationally()
}

func (m *Machine) recomputeCoverageLocked() {
	m.shippingAvailable = Covered(m.settings.AllowedZipCodes, m.customer.DeliveryAddress().PostalCode)
}

// Close stops pending postal lookups of the session.
func (m *Machine) Close() {
	m.lookups.Close()
}
