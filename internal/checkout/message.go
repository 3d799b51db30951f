package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// es-CL uses the same separators as es: "." for thousands.
var amountPrinter = message.NewPrinter(language.Spanish)

// Contact is the customer data that goes into the hand-off message.
type Contact struct {
	Name      string
	Phone     string
	Method    models.PaymentMethod
	Reference string
}

// FormatAmount renders whole currency units with thousands grouping, e.g. 10.000.
func FormatAmount(amount decimal.Decimal) string {
	return amountPrinter.Sprintf("%d", amount.Round(0).IntPart())
}

const banner = "=============================="

// ComposeMessage builds the plain-text order message sent to the store's chat.
func ComposeMessage(snap cart.Snapshot, contact Contact) string {
	var b strings.Builder

	b.WriteString(banner + "\n")
	b.WriteString("   NUEVO PEDIDO WEB\n")
	b.WriteString(banner + "\n\n")

	b.WriteString("Cliente: " + contact.Name + "\n")
	b.WriteString("Teléfono: " + contact.Phone + "\n\n")

	b.WriteString("--- DETALLE ---\n")
	for _, line := range snap.Lines {
		fmt.Fprintf(&b, "• %d x %s ($%s)\n", line.Quantity, line.Name, FormatAmount(line.Subtotal()))
	}

	b.WriteString("\nTOTAL A PAGAR: $" + FormatAmount(snap.Total()) + "\n")

	switch contact.Method {
	case models.PaymentMethodBankTransfer:
		b.WriteString("Pago: Transferencia (Ref: " + contact.Reference + ")\n")
	case models.PaymentMethodPickupPay:
		b.WriteString("Pago: En Local\n")
	}

	if strings.TrimSpace(snap.Note) != "" {
		b.WriteString("\nNota: " + snap.Note + "\n")
	}

	return b.String()
}

// HandoffURL appends the percent-encoded message to base/destination.
func HandoffURL(base, destination, msg string) string {
	text := strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(destination) + "?text=" + text
}
