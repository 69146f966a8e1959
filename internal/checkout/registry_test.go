package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	fragment *domain.AddressFragment
}

func (s stubSearcher) Search(context.Context, string, string) (*domain.AddressFragment, error) {
	return s.fragment, nil
}

func newRegistry(t *testing.T, settings Settings, cart *fakeCart, merchants *fakeMerchants, opts ...func(*RegistryDeps)) *Registry {
	t.Helper()
	deps := RegistryDeps{
		Cart:      cart,
		Merchants: merchants,
		Searcher: stubSearcher{fragment: &domain.AddressFragment{
			Neighborhood: "Centro",
			City:         "Monterrey",
			State:        "Nuevo Leon",
			PostalCode:   "64000",
			Places:       []domain.Place{{Name: "Centro", State: "Nuevo Leon"}},
		}},
		Intents:     &fakeIntents{secret: "pi_secret"},
		Publisher:   &fakePublisher{},
		QuietPeriod: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	r := NewRegistry(settings, deps)
	t.Cleanup(r.Close)
	return r
}

func mugCart() *fakeCart {
	return newFakeCart(domain.LineItem{ProductID: "p1", Name: "Mug", UnitPrice: 5000, Quantity: 1, Currency: "mxn"})
}

func TestRegistry_StartAndGet(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{cfg: mxMerchant()})
	defer r.Close()

	m, err := r.Start(context.Background())
	require.NoError(t, err)

	got, err := r.Get(m.ID())
	require.NoError(t, err)
	assert.Same(t, m, got)
	assert.Equal(t, 1, r.Len())

	r.End(m.ID())
	r.End(m.ID())
	_, err = r.Get(m.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, r.Len())
}

func TestRegistry_StartGuards(t *testing.T) {
	tests := []struct {
		name      string
		settings  func(Settings) Settings
		cart      *fakeCart
		merchants *fakeMerchants
		wantErr   error
	}{
		{
			name:      "catalog mode",
			settings:  func(s Settings) Settings { s.Mode = domain.ModeCatalog; return s },
			cart:      mugCart(),
			merchants: &fakeMerchants{cfg: mxMerchant()},
			wantErr:   ErrCatalogMode,
		},
		{
			name:      "empty cart",
			cart:      newFakeCart(),
			merchants: &fakeMerchants{cfg: mxMerchant()},
			wantErr:   ErrEmptyCart,
		},
		{
			name: "inactive store",
			cart: mugCart(),
			merchants: &fakeMerchants{cfg: domain.MerchantConfig{
				OriginCountry: "MX",
				IsActive:      false,
			}},
			wantErr: ErrStoreClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings()
			if tt.settings != nil {
				s = tt.settings(s)
			}
			r := newRegistry(t, s, tt.cart, tt.merchants)

			m, err := r.Start(context.Background())

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, m)
			assert.Zero(t, r.Len())
		})
	}
}

func TestRegistry_StartSurvivesMerchantFailure(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{err: errors.New("timeout")})
	defer r.Close()

	m, err := r.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, m.View().APIError)
}

func TestRegistry_PostalLookupAutofills(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{cfg: mxMerchant()})
	defer r.Close()

	m, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.SelectCountry("MX"))
	require.NoError(t, m.SetPostalCode(postal.FieldBilling, "64000"))

	require.Eventually(t, func() bool {
		return m.View().Customer.BillingAddress.City == "Monterrey"
	}, time.Second, 5*time.Millisecond)

	v := m.View()
	assert.Equal(t, "Centro", v.Customer.BillingAddress.Neighborhood)
	assert.Equal(t, "Nuevo Leon", v.Customer.BillingAddress.State)
	require.NotNil(t, v.Lookups[postal.FieldBilling].Suggestion)
	assert.False(t, v.Lookups[postal.FieldBilling].Loading)
}

func driveToPayment(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.SelectCountry("MX"))
	require.NoError(t, m.Next(context.Background()))
	require.NoError(t, m.SetCustomerField("name", "Ana López"))
	require.NoError(t, m.SetCustomerField("email", "ana@example.com"))
	require.NoError(t, m.SetCustomerField("phone", "81 1234 5678"))
	require.NoError(t, m.SetBillingField("street", "Zaragoza"))
	require.NoError(t, m.SetBillingField("number_ext", "100"))
	require.NoError(t, m.SetBillingField("neighborhood", "Centro"))
	require.NoError(t, m.SetBillingField("postal_code", "64000"))
	require.NoError(t, m.Next(context.Background()))
	require.Equal(t, domain.StepPayment, m.Step())
}

func TestRegistry_ConfirmedSessionIsDiscarded(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{cfg: mxMerchant()})

	m, err := r.Start(context.Background())
	require.NoError(t, err)
	driveToPayment(t, m)
	require.Equal(t, 1, r.Len())

	conf, err := m.HandleConfirmation(context.Background(), payment.Outcome{Succeeded: true})
	require.NoError(t, err)
	assert.True(t, conf.Completed)

	assert.Zero(t, r.Len())
	_, err = r.Get(m.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_FailedConfirmationKeepsSession(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{cfg: mxMerchant()})

	m, err := r.Start(context.Background())
	require.NoError(t, err)
	driveToPayment(t, m)

	_, err = m.HandleConfirmation(context.Background(), payment.Outcome{ErrorType: "card_error", ErrorMessage: "declined"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_IdleSessionsExpire(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{cfg: mxMerchant()}, func(d *RegistryDeps) {
		d.IdleTimeout = 30 * time.Millisecond
		d.SweepInterval = 5 * time.Millisecond
	})

	_, err := r.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_GetKeepsSessionAlive(t *testing.T) {
	r := newRegistry(t, defaultSettings(), mugCart(), &fakeMerchants{cfg: mxMerchant()}, func(d *RegistryDeps) {
		d.IdleTimeout = 30 * time.Minute
		d.SweepInterval = time.Hour
	})
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	m, err := r.Start(context.Background())
	require.NoError(t, err)

	clock = clock.Add(20 * time.Minute)
	_, err = r.Get(m.ID())
	require.NoError(t, err)

	clock = clock.Add(20 * time.Minute)
	assert.Zero(t, r.sweep())
	assert.Equal(t, 1, r.Len())

	clock = clock.Add(11 * time.Minute)
	assert.Equal(t, 1, r.sweep())
	assert.Zero(t, r.Len())
}
