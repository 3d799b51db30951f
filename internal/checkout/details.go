package checkout

import (
	"github.com/safar/go-storefront/internal/models"
)

// MethodInfo is the store's fixed payment information shown in MethodDetails.
type MethodInfo struct {
	Bank          string
	AccountType   string
	AccountNumber string
	AccountRUT    string
	AccountEmail  string
	PickupAddress string
}

type BankDetails struct {
	Bank          string `json:"bank"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	RUT           string `json:"rut"`
	Email         string `json:"email,omitempty"`
}

type PickupDetails struct {
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
}

type Details struct {
	Method models.PaymentMethod `json:"method"`
	Total  string               `json:"total"`
	Bank   *BankDetails         `json:"bank,omitempty"`
	Pickup *PickupDetails       `json:"pickup,omitempty"`
}

// Details describes how to pay for the chosen method. Only available in MethodDetails.
func (f *Flow) Details() (Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateMethodDetails {
		return Details{}, illegal("details", f.session.State)
	}

	d := Details{
		Method: f.session.PaymentMethod,
		Total:  "$" + FormatAmount(f.cart.Total()),
	}
	info := f.cfg.Method
	switch f.session.PaymentMethod {
	case models.PaymentMethodBankTransfer:
		d.Bank = &BankDetails{
			Bank:          info.Bank,
			AccountType:   info.AccountType,
			AccountNumber: info.AccountNumber,
			RUT:           info.AccountRUT,
			Email:         info.AccountEmail,
		}
	case models.PaymentMethodPickupPay:
		d.Pickup = &PickupDetails{
			Address:      info.PickupAddress,
			Instructions: "Pagas en efectivo o tarjeta al retirar.",
		}
	}
	return d, nil
}
