package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WhatsAppLink builds a wa.me deep link carrying message as its text.
func WhatsAppLink(number, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, text)
}

// FormatAmount renders minor units with two decimals, e.g. 11000 -> "110.00".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func quoteMessage(postalCode string, cart domain.CartSnapshot) string {
	if postalCode == "" {
		postalCode = "N/A"
	}
	lines := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, fmt.Sprintf("- %s (x%d)", it.Name, it.Quantity))
	}

	var b strings.Builder
	b.WriteString("Hello, I would like a quote for a special order:\n\n")
	fmt.Fprintf(&b, "Destination postal code: %s\n", postalCode)
	fmt.Fprintf(&b, "Cart total: $%s %s\n\n", FormatAmount(cart.TotalAmount), strings.ToUpper(cart.Currency))
	fmt.Fprintf(&b, "Products:\n%s\n\n", strings.Join(lines, "\n"))
	b.WriteString("I look forward to hearing the shipping cost.")
	return b.String()
}

func confirmationMessage(storeName, orderID string) string {
	return fmt.Sprintf("Hello! I just paid for an order at %s.\n\nMy order number is: *%s*\n\n"+
		"I look forward to the shipping confirmation. Thank you!", storeName, orderID)
}

// ManualQuote returns the messaging link for quoting the order by hand. The session state is unchanged.
func (m *Machine) ManualQuote() string {
	m.mu.Lock()
	postalCode := m.customer.DeliveryAddress().PostalCode
	m.mu.Unlock()
	return WhatsAppLink(m.settings.WhatsAppNumber, quoteMessage(postalCode, m.cart.Snapshot()))
}

// ConfirmationLink is the post-purchase message link for orderID.
func (m *Machine) ConfirmationLink(orderID string) string {
	return WhatsAppLink(m.settings.WhatsAppNumber, confirmationMessage(m.settings.StoreName, orderID))
}

func newOrderID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:9])
}
