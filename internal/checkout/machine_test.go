package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	m         *Machine
	cart      *fakeCart
	merchants *fakeMerchants
	lookups   *fakeLookups
	intents   *fakeIntents
	publisher *fakePublisher
}

func mxMerchant() domain.MerchantConfig {
	return domain.MerchantConfig{
		OriginCountry:     "MX",
		ShippingLocalCost: 1000,
		BaseCurrency:      "mxn",
		IsActive:          true,
	}
}

func defaultSettings() Settings {
	return Settings{
		ProjectUUID:    "proj",
		StoreName:      "Gazel Shop",
		BusinessType:   domain.BusinessPhysical,
		WhatsAppNumber: "5218112345678",
	}
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		cart:      newFakeCart(domain.LineItem{ProductID: "p1", Name: "Mug", UnitPrice: 5000, Quantity: 2, Currency: "mxn"}),
		merchants: &fakeMerchants{cfg: mxMerchant()},
		lookups:   newFakeLookups(),
		intents:   &fakeIntents{secret: "pi_secret"},
		publisher: &fakePublisher{},
	}
	h.m = NewMachine("sess-1", settings, Deps{
		Cart:      h.cart,
		Merchants: h.merchants,
		Lookups:   h.lookups,
		Intents:   h.intents,
		Publisher: h.publisher,
	})
	return h
}

func (h *harness) fillValidCustomer(t *testing.T) {
	t.Helper()
	require.NoError(t, h.m.SetCustomerField("name", "Ana López"))
	require.NoError(t, h.m.SetCustomerField("email", "ana@example.com"))
	require.NoError(t, h.m.SetCustomerField("phone", "81 1234 5678"))
	require.NoError(t, h.m.SetBillingField("street", "Zaragoza"))
	require.NoError(t, h.m.SetBillingField("number_ext", "100"))
	require.NoError(t, h.m.SetBillingField("neighborhood", "Centro"))
	require.NoError(t, h.m.SetBillingField("postal_code", "64000"))
}

func (h *harness) toAddress(t *testing.T) {
	t.Helper()
	require.NoError(t, h.m.SelectCountry("mx"))
	require.NoError(t, h.m.Next(context.Background()))
	require.Equal(t, domain.StepAddressCollection, h.m.Step())
}

func TestNext_CountryRequired(t *testing.T) {
	h := newHarness(t, defaultSettings())

	err := h.m.Next(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{msgCountryRequired}, verr.Messages)
	assert.Equal(t, domain.StepCountrySelection, h.m.Step())
}

func TestNext_InternationalWithoutRateRequiresManualQuote(t *testing.T) {
	h := newHarness(t, defaultSettings())
	require.NoError(t, h.m.SelectCountry("US"))

	err := h.m.Next(context.Background())

	assert.ErrorIs(t, err, ErrManualQuoteRequired)
	assert.Equal(t, domain.StepCountrySelection, h.m.Step())
	assert.True(t, h.m.View().ManualQuoteOnly)
}

func TestNext_InternationalWithRate(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.merchants.cfg.ShippingIntlCost = 2500
	require.NoError(t, h.m.SelectCountry("US"))

	require.NoError(t, h.m.Next(context.Background()))
	assert.Equal(t, domain.StepAddressCollection, h.m.Step())
	assert.Equal(t, int64(2500), h.m.Summary().Shipping)
}

func TestNext_StoreClosed(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.merchants.cfg.IsActive = false
	require.NoError(t, h.m.SelectCountry("MX"))

	assert.ErrorIs(t, h.m.Next(context.Background()), ErrStoreClosed)
}

func TestNext_EmptyCart(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.cart.Clear(context.Background())
	require.NoError(t, h.m.SelectCountry("MX"))

	assert.ErrorIs(t, h.m.Next(context.Background()), ErrEmptyCart)
}

func TestNext_MerchantConfigFailureIsRetried(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.merchants.err = errors.New("dial tcp: refused")
	require.NoError(t, h.m.SelectCountry("MX"))

	err := h.m.Next(context.Background())
	assert.ErrorIs(t, err, ErrMerchantUnavailable)
	assert.NotEmpty(t, h.m.View().APIError)

	h.merchants.m.Lock()
	h.merchants.err = nil
	h.merchants.m.Unlock()

	require.NoError(t, h.m.Next(context.Background()))
	assert.Empty(t, h.m.View().APIError)
	require.NoError(t, h.m.LoadMerchant(context.Background()))
	assert.Equal(t, 2, h.merchants.calls)
}

func TestValidation_OrderedMessages(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)

	err := h.m.Next(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{
		msgNameRequired,
		msgEmailInvalid,
		"Phone must have 10 digits",
		msgPostalRequired,
		msgNeighborhood,
		msgStreetRequired,
		msgNumberExtMissing,
	}, verr.Messages)
	assert.Equal(t, domain.StepAddressCollection, h.m.Step())
	assert.Equal(t, verr.Messages, h.m.View().Errors)
	assert.Zero(t, h.intents.calls())
}

func TestValidation_ServiceBusinessSkipsAddress(t *testing.T) {
	s := defaultSettings()
	s.BusinessType = domain.BusinessService
	h := newHarness(t, s)
	h.toAddress(t)
	require.NoError(t, h.m.SetCustomerField("name", "Ana"))
	require.NoError(t, h.m.SetCustomerField("email", "ana@example.com"))
	require.NoError(t, h.m.SetCustomerField("phone", "8112345678"))

	require.NoError(t, h.m.Next(context.Background()))
	assert.Equal(t, domain.StepPayment, h.m.Step())
	assert.Zero(t, h.m.Summary().Shipping)
}

func TestValidation_ConfiguredPhoneLength(t *testing.T) {
	s := defaultSettings()
	s.PhoneDigits = 8
	h := newHarness(t, s)

	require.NoError(t, h.m.SetCustomerField("phone", "8888-7777-99"))
	assert.Equal(t, "88887777", h.m.View().Customer.Phone)
}

func TestValidation_EmailWithoutAt(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)
	h.fillValidCustomer(t)
	require.NoError(t, h.m.SetCustomerField("email", "ana.example.com"))

	err := h.m.Next(context.Background())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{msgEmailInvalid}, verr.Messages)
}

func TestCoverage_Recompute(t *testing.T) {
	s := defaultSettings()
	s.AllowedZipCodes = []string{"64000", "64010"}
	h := newHarness(t, s)
	require.NoError(t, h.m.SelectCountry("MX"))

	assert.False(t, h.m.View().ShippingAvailable, "pending until a postal code is typed")

	require.NoError(t, h.m.SetPostalCode(postal.FieldBilling, "640"))
	assert.False(t, h.m.View().ShippingAvailable)

	require.NoError(t, h.m.SetPostalCode(postal.FieldBilling, "64010"))
	assert.True(t, h.m.View().ShippingAvailable)

	require.NoError(t, h.m.SetPostalCode(postal.FieldBilling, "64999"))
	assert.False(t, h.m.View().ShippingAvailable)
}

func TestCoverage_BlocksPayment(t *testing.T) {
	s := defaultSettings()
	s.AllowedZipCodes = []string{"01000"}
	h := newHarness(t, s)
	h.toAddress(t)
	h.fillValidCustomer(t)

	err := h.m.Next(context.Background())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{msgNoCoverage}, verr.Messages)
}

func TestCovered(t *testing.T) {
	assert.True(t, Covered(nil, ""))
	assert.True(t, Covered(nil, "1"))
	assert.False(t, Covered([]string{"1234"}, "123"))
	assert.True(t, Covered([]string{"1234"}, "1234"))
	assert.False(t, Covered([]string{"1234"}, "12345"))
}

func TestHappyPath_CreatesOneIntent(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)
	h.fillValidCustomer(t)

	require.NoError(t, h.m.Next(context.Background()))
	assert.Equal(t, domain.StepPayment, h.m.Step())
	assert.Equal(t, "pi_secret", h.m.View().ClientSecret)

	require.NoError(t, h.m.Next(context.Background()))
	require.NoError(t, h.m.Back())
	assert.Equal(t, domain.StepAddressCollection, h.m.Step())
	require.NoError(t, h.m.Next(context.Background()))
	assert.Equal(t, domain.StepPayment, h.m.Step())

	assert.Equal(t, 1, h.intents.calls())
	req := h.intents.reqs[0]
	assert.Equal(t, "proj", req.ProjectUUID)
	assert.Equal(t, []backend.IntentItem{{UUID: "p1", Quantity: 2}}, req.Items)
	assert.Equal(t, "8112345678", req.CustomerData.Phone)
	assert.Equal(t, "MX", req.CustomerData.BillingAddress.CountryCode)
	assert.Nil(t, req.CustomerData.ShippingAddress)
	assert.Equal(t, []string{"sess-1:1"}, h.intents.keys)
}

func TestIntentFailure_RevertsAndAllowsRetry(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.intents.err = &backend.RejectedError{Message: "product out of stock"}
	h.toAddress(t)
	h.fillValidCustomer(t)

	err := h.m.Next(context.Background())
	require.ErrorIs(t, err, backend.ErrIntentRejected)
	var intentErr *IntentError
	require.ErrorAs(t, err, &intentErr)
	assert.Equal(t, "product out of stock", intentErr.Message)

	v := h.m.View()
	assert.Equal(t, "address", v.Step)
	assert.Equal(t, "product out of stock", v.APIError)
	assert.Empty(t, v.ClientSecret)
	assert.False(t, v.PaymentInFlight)

	h.intents.m.Lock()
	h.intents.err = nil
	h.intents.m.Unlock()

	require.NoError(t, h.m.Next(context.Background()))
	v = h.m.View()
	assert.Equal(t, "payment", v.Step)
	assert.Equal(t, "pi_secret", v.ClientSecret)
	assert.Empty(t, v.APIError)
	assert.Equal(t, 2, h.intents.calls())
}

func TestIntentFailure_NetworkMessage(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.intents.err = errors.New("connection reset")
	h.toAddress(t)
	h.fillValidCustomer(t)

	err := h.m.Next(context.Background())
	var intentErr *IntentError
	require.ErrorAs(t, err, &intentErr)
	assert.Equal(t, "Could not connect to the server.", intentErr.Message)
	assert.NotErrorIs(t, err, backend.ErrIntentRejected)
	assert.Equal(t, "Could not connect to the server.", h.m.View().APIError)
}

func TestView_PublishableKey(t *testing.T) {
	s := defaultSettings()
	s.PublishableKey = "pk_test_123"
	h := newHarness(t, s)

	assert.Equal(t, "pk_test_123", h.m.View().PublishableKey)
	assert.Empty(t, newHarness(t, defaultSettings()).m.View().PublishableKey)
}

func TestPaymentReentry_WhileInFlightIsNoop(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.intents.release = make(chan struct{})
	h.intents.entered = make(chan struct{}, 1)
	h.toAddress(t)
	h.fillValidCustomer(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, h.m.Next(context.Background()))
	}()
	<-h.intents.entered

	require.NoError(t, h.m.Next(context.Background()))
	require.NoError(t, h.m.Next(context.Background()))
	assert.True(t, h.m.View().PaymentInFlight)

	close(h.intents.release)
	wg.Wait()

	assert.Equal(t, 1, h.intents.calls())
	assert.Equal(t, "pi_secret", h.m.View().ClientSecret)
}

func TestBack(t *testing.T) {
	h := newHarness(t, defaultSettings())

	require.NoError(t, h.m.Back())
	assert.Equal(t, domain.StepCountrySelection, h.m.Step())

	h.toAddress(t)
	require.NoError(t, h.m.Back())
	assert.Equal(t, domain.StepCountrySelection, h.m.Step())
}

func TestSelectCountry(t *testing.T) {
	s := defaultSettings()
	s.SupportedCountries = []string{"MX", "CR"}
	h := newHarness(t, s)

	assert.ErrorIs(t, h.m.SelectCountry("ZZ"), ErrUnsupportedCountry)

	require.NoError(t, h.m.SelectCountry("mx"))
	require.NoError(t, h.m.SetPostalCode(postal.FieldBilling, "64000"))
	require.NoError(t, h.m.SelectCountry("CR"))

	v := h.m.View()
	assert.Equal(t, "CR", v.Country)
	assert.Empty(t, v.Customer.BillingAddress.PostalCode)
	assert.Equal(t, "CR", v.Customer.BillingAddress.CountryCode)
	assert.Contains(t, h.lookups.cleared, postal.FieldBilling)

	h.toAddress(t)
	assert.ErrorIs(t, h.m.SelectCountry("CR"), ErrWrongStep)
}

func TestSetPostalCode_CleansAndAutofills(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.lookups.result = &domain.AddressFragment{
		Neighborhood: "Monterrey Centro, Monterrey",
		City:         "Monterrey Centro",
		State:        "Nuevo Leon",
		PostalCode:   "64000",
		Places: []domain.Place{
			{Name: "Monterrey Centro, Monterrey", State: "Nuevo Leon"},
			{Name: "Obispado", State: "Nuevo Leon"},
		},
	}
	require.NoError(t, h.m.SelectCountry("MX"))

	require.NoError(t, h.m.SetBillingField("postal_code", " 64-000 "))

	require.Len(t, h.lookups.scheduled, 1)
	assert.Equal(t, scheduled{postal.FieldBilling, "64000", "MX"}, h.lookups.scheduled[0])

	addr := h.m.View().Customer.BillingAddress
	assert.Equal(t, "64000", addr.PostalCode)
	assert.Equal(t, "Monterrey Centro, Monterrey", addr.Neighborhood)
	assert.Equal(t, "Monterrey Centro", addr.City)
	assert.Equal(t, "Nuevo Leon", addr.State)
	assert.Equal(t, "MX", addr.CountryCode)

	require.NoError(t, h.m.SelectPlace(postal.FieldBilling, 1))
	addr = h.m.View().Customer.BillingAddress
	assert.Equal(t, "Obispado", addr.Neighborhood)
	assert.Equal(t, "Obispado", addr.City)

	assert.ErrorIs(t, h.m.SelectPlace(postal.FieldBilling, 5), ErrNoSuchPlace)
}

func TestSetPostalCode_NoCountryNoLookup(t *testing.T) {
	h := newHarness(t, defaultSettings())

	require.NoError(t, h.m.SetPostalCode(postal.FieldBilling, "64000"))
	assert.Empty(t, h.lookups.scheduled)
}

func TestShippingAddress(t *testing.T) {
	s := defaultSettings()
	s.RequireShippingAddress = true
	h := newHarness(t, s)
	h.toAddress(t)
	h.fillValidCustomer(t)

	assert.ErrorIs(t, h.m.SetShippingField("street", "Juarez"), ErrShipsToBilling)

	require.NoError(t, h.m.SetShipToBilling(false))
	v := h.m.View()
	require.NotNil(t, v.Customer.ShippingAddress)
	assert.Equal(t, "Zaragoza", v.Customer.ShippingAddress.Street)
	assert.False(t, v.ShipToBilling)

	require.NoError(t, h.m.SetShippingField("street", ""))
	err := h.m.Next(context.Background())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{shippingPrefix + msgStreetRequired}, verr.Messages)

	require.NoError(t, h.m.SetShippingField("street", "Juarez"))
	require.NoError(t, h.m.Next(context.Background()))
	require.NotNil(t, h.intents.reqs[0].CustomerData.ShippingAddress)
	assert.Equal(t, "Juarez", h.intents.reqs[0].CustomerData.ShippingAddress.Street)
}

func TestShippingAddress_NotRequired(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)
	h.fillValidCustomer(t)
	require.NoError(t, h.m.SetShipToBilling(false))
	require.NoError(t, h.m.SetShippingField("street", ""))

	require.NoError(t, h.m.Next(context.Background()))
}

func TestShippingAddress_CoverageFollowsDeliveryAddress(t *testing.T) {
	s := defaultSettings()
	s.AllowedZipCodes = []string{"64000"}
	h := newHarness(t, s)
	h.toAddress(t)
	h.fillValidCustomer(t)
	assert.True(t, h.m.View().ShippingAvailable)

	require.NoError(t, h.m.SetShipToBilling(false))
	require.NoError(t, h.m.SetShippingField("postal_code", "01000"))
	assert.False(t, h.m.View().ShippingAvailable)

	require.NoError(t, h.m.SetShipToBilling(true))
	assert.True(t, h.m.View().ShippingAvailable)
	assert.Contains(t, h.lookups.cleared, postal.FieldShipping)
}

func TestSummary_Scenarios(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)

	sum := h.m.Summary()
	assert.Equal(t, int64(10000), sum.Subtotal)
	assert.Equal(t, int64(1000), sum.Shipping)
	assert.Equal(t, int64(11000), sum.Total)
	assert.Equal(t, "mxn", sum.Currency)

	h2 := newHarness(t, defaultSettings())
	h2.merchants.cfg.FreeShippingThreshold = 10000
	h2.toAddress(t)

	sum = h2.m.Summary()
	assert.Equal(t, int64(0), sum.Shipping)
	assert.Equal(t, int64(10000), sum.Total)
}

func TestHandleConfirmation_Success(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)
	h.fillValidCustomer(t)
	require.NoError(t, h.m.Next(context.Background()))

	conf, err := h.m.HandleConfirmation(context.Background(), payment.Outcome{Succeeded: true})
	require.NoError(t, err)

	assert.True(t, conf.Completed)
	assert.Regexp(t, `^ORD-[0-9A-F]{9}$`, conf.OrderID)
	assert.Contains(t, conf.ConfirmationLink, "https://wa.me/5218112345678?text=")
	assert.Equal(t, 1, h.cart.cleared)

	require.Len(t, h.publisher.events, 1)
	ev := h.publisher.events[0]
	assert.Equal(t, conf.OrderID, ev.OrderID)
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, int64(11000), ev.Total)
	assert.Equal(t, "ana@example.com", ev.Email)

	again, err := h.m.HandleConfirmation(context.Background(), payment.Outcome{Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, conf.OrderID, again.OrderID)
	assert.Len(t, h.publisher.events, 1)

	v := h.m.View()
	assert.True(t, v.Completed)
	assert.Equal(t, "payment", v.Step)
	assert.ErrorIs(t, h.m.Back(), ErrSessionCompleted)
}

func TestHandleConfirmation_PublishFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.publisher.err = errors.New("broker down")
	h.toAddress(t)
	h.fillValidCustomer(t)
	require.NoError(t, h.m.Next(context.Background()))

	conf, err := h.m.HandleConfirmation(context.Background(), payment.Outcome{Succeeded: true, OrderID: "ORD-42"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-42", conf.OrderID)
}

func TestHandleConfirmation_FailureKeepsSecret(t *testing.T) {
	h := newHarness(t, defaultSettings())
	h.toAddress(t)
	h.fillValidCustomer(t)
	require.NoError(t, h.m.Next(context.Background()))

	conf, err := h.m.HandleConfirmation(context.Background(), payment.Outcome{
		ErrorType:    "card_error",
		ErrorMessage: "Your card was declined.",
	})
	require.NoError(t, err)

	assert.False(t, conf.Completed)
	require.NotNil(t, conf.Failure)
	assert.Equal(t, payment.KindCard, conf.Failure.Kind)
	assert.Equal(t, "Your card was declined.", conf.Failure.Message)
	assert.Equal(t, "pi_secret", conf.ClientSecret)

	v := h.m.View()
	assert.Equal(t, "payment", v.Step)
	assert.Equal(t, "pi_secret", v.ClientSecret)
	assert.Zero(t, h.cart.cleared)

	conf, err = h.m.HandleConfirmation(context.Background(), payment.Outcome{ErrorType: "api_connection_error"})
	require.NoError(t, err)
	assert.Equal(t, payment.KindUnexpected, conf.Failure.Kind)
	assert.Equal(t, 1, h.intents.calls())
}

func TestHandleConfirmation_OutsidePayment(t *testing.T) {
	h := newHarness(t, defaultSettings())

	_, err := h.m.HandleConfirmation(context.Background(), payment.Outcome{Succeeded: true})
	assert.ErrorIs(t, err, ErrWrongStep)
}
