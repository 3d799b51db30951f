package checkout

import (
	"net/url"
	"strings"
	"testing"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id int64, name string, price int64, qty int) models.CartLine {
	return models.CartLine{
		Product:  models.Product{ID: id, Name: name, Price: decimal.NewFromInt(price)},
		Quantity: qty,
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0"},
		{990, "990"},
		{10000, "10.000"},
		{1234567, "1.234.567"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.NewFromInt(tt.amount)))
		})
	}
}

func TestComposeMessage_BankTransfer(t *testing.T) {
	snap := cart.Snapshot{
		Lines: []models.CartLine{
			line(1, "California Roll", 5000, 2),
			line(2, "Gyozas", 3500, 1),
		},
		Note: "sin sésamo",
	}
	msg := ComposeMessage(snap, Contact{
		Name:      "Ana",
		Phone:     "+56911111111",
		Method:    models.PaymentMethodBankTransfer,
		Reference: "OP-991",
	})

	assert.True(t, strings.HasPrefix(msg, banner+"\n   NUEVO PEDIDO WEB\n"+banner+"\n"))
	assert.Contains(t, msg, "Cliente: Ana\n")
	assert.Contains(t, msg, "Teléfono: +56911111111\n")
	assert.Contains(t, msg, "• 2 x California Roll ($10.000)\n")
	assert.Contains(t, msg, "• 1 x Gyozas ($3.500)\n")
	assert.Contains(t, msg, "TOTAL A PAGAR: $13.500\n")
	assert.Contains(t, msg, "Pago: Transferencia (Ref: OP-991)\n")
	assert.Contains(t, msg, "Nota: sin sésamo\n")

	// sections appear in order
	order := []string{"Cliente:", "--- DETALLE ---", "California Roll", "Gyozas", "TOTAL A PAGAR", "Pago:", "Nota:"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(msg, marker)
		require.Greater(t, idx, last, "%q out of order", marker)
		last = idx
	}
}

func TestComposeMessage_PickupWithoutNote(t *testing.T) {
	snap := cart.Snapshot{Lines: []models.CartLine{line(1, "Ramen", 8900, 1)}, Note: "   "}
	msg := ComposeMessage(snap, Contact{Name: "Luis", Phone: "123", Method: models.PaymentMethodPickupPay})

	assert.Contains(t, msg, "Pago: En Local\n")
	assert.NotContains(t, msg, "Ref:")
	assert.NotContains(t, msg, "Nota:")
	assert.Contains(t, msg, "TOTAL A PAGAR: $8.900\n")
}

func TestHandoffURL_RoundTrips(t *testing.T) {
	msg := ComposeMessage(cart.Snapshot{
		Lines: []models.CartLine{line(1, "Té & Café", 2500, 3)},
		Note:  "50% menos azúcar?",
	}, Contact{Name: "Ana María", Phone: "+56911111111", Method: models.PaymentMethodPickupPay})

	raw := HandoffURL("https://wa.me/", "56976645547", msg)

	assert.True(t, strings.HasPrefix(raw, "https://wa.me/56976645547?text="))
	assert.NotContains(t, raw, "+", "spaces must be encoded as %20")
	assert.NotContains(t, raw, " ")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, msg, u.Query().Get("text"))
}
