package checkout

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/shipping"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Summary is the priced order as currently shown to the customer.
type Summary struct {
	Items    []domain.LineItem `json:"items"`
	Currency string            `json:"currency"`
	shipping.Totals
}

// Summary prices the cart with a fresh shipping calculation.
func (m *Machine) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryLocked()
}

func (m *Machine) summaryLocked() Summary {
	snap := m.cart.Snapshot()
	s := Summary{Items: snap.Items, Currency: snap.Currency}
	if m.merchant == nil {
		s.Totals = shipping.Totals{Subtotal: snap.TotalAmount, Total: snap.TotalAmount}
		return s
	}
	s.Totals = shipping.Compute(snap.TotalAmount, m.country, *m.merchant, m.settings.BusinessType)
	return s
}

// Confirmation is the result of applying a payment widget outcome.
type Confirmation struct {
	Completed        bool             `json:"completed"`
	OrderID          string           `json:"order_id,omitempty"`
	ConfirmationLink string           `json:"confirmation_link,omitempty"`
	Failure          *payment.Failure `json:"failure,omitempty"`
	ClientSecret     string           `json:"client_secret,omitempty"`
}

// HandleConfirmation applies the widget's outcome. Success clears the cart and
// publishes the order; failure keeps the session in Payment with the same secret.
func (m *Machine) HandleConfirmation(ctx context.Context, outcome payment.Outcome) (Confirmation, error) {
	m.mu.Lock()
	secret := m.payments.Secret()
	if m.step != domain.StepPayment {
		m.mu.Unlock()
		return Confirmation{}, ErrWrongStep
	}
	if secret == "" {
		m.mu.Unlock()
		return Confirmation{}, ErrNoPaymentIntent
	}
	if m.completed {
		orderID := m.orderID
		m.mu.Unlock()
		return Confirmation{Completed: true, OrderID: orderID, ConfirmationLink: m.ConfirmationLink(orderID)}, nil
	}

	if !outcome.Succeeded {
		f := payment.Classify(outcome.ErrorType, outcome.ErrorMessage)
		m.paymentFailure = &f
		m.mu.Unlock()
		m.logger.Info("payment confirmation failed", zap.String("kind", string(f.Kind)))
		return Confirmation{Failure: &f, ClientSecret: secret}, nil
	}

	orderID := outcome.OrderID
	if orderID == "" {
		orderID = newOrderID()
	}
	summary := m.summaryLocked()
	event := publisher.OrderCompleted{
		OrderID:     orderID,
		SessionID:   m.id,
		ProjectUUID: m.settings.ProjectUUID,
		Items:       summary.Items,
		Subtotal:    summary.Subtotal,
		Shipping:    summary.Shipping,
		Total:       summary.Total,
		Currency:    summary.Currency,
		Country:     m.country,
		Email:       m.customer.Email,
		CompletedAt: time.Now().UTC(),
	}
	m.completed = true
	m.orderID = orderID
	m.paymentFailure = nil
	m.mu.Unlock()

	m.cart.Clear(ctx)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.publisher.PublishOrderCompleted(pctx, event); err != nil {
		m.logger.Warn("failed to publish order event", zap.String("order_id", orderID), zap.Error(err))
	}
	m.logger.Info("checkout completed", zap.String("order_id", orderID), zap.Int64("total", summary.Total))
	if m.onDone != nil {
		m.onDone(m.id)
	}

	return Confirmation{Completed: true, OrderID: orderID, ConfirmationLink: m.ConfirmationLink(orderID)}, nil
}
