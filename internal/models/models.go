package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"order"`
}

type Product struct {
	ID            int64               `json:"id"`
	CategoryID    int64               `json:"category_id"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	ImageURL      string              `json:"image_url,omitempty"`
	IsSpecial     bool                `json:"is_special"`
	IsActive      bool                `json:"is_active"`
}

// EffectivePrice is the discount price when one is set and positive, the list
// price otherwise. A zero discount is not a discount.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.Valid && p.DiscountPrice.Decimal.IsPositive() {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// CartLine is a snapshot of a product taken when it was first added, plus the
// carted quantity. The JSON shape is the product fields with "quantity" beside them.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type PaymentMethod string

const (
	PaymentMethodNone         PaymentMethod = ""
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPickupPay    PaymentMethod = "pickup_pay"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodPickupPay
}

type Order struct {
	ID               int64           `json:"id"`
	OrderNumber      string          `json:"order_number"`
	ClientName       string          `json:"client_name"`
	ClientPhone      string          `json:"client_phone"`
	PaymentReference string          `json:"payment_ref"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	Total            decimal.Decimal `json:"total"`
	Items            []CartLine      `json:"items"`
	Note             string          `json:"note"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PaymentReferenceNotApplicable is stored when no transfer reference was collected.
const PaymentReferenceNotApplicable = "N/A"

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const EventOrderPlaced = "order_placed"

// OrderPlacedEvent is the payload announced for every persisted order.
type OrderPlacedEvent struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	ClientName    string          `json:"client_name"`
	ClientPhone   string          `json:"client_phone"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentRef    string          `json:"payment_ref"`
	Items         []CartLine      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Note          string          `json:"note,omitempty"`
	PlacedAt      time.Time       `json:"placed_at"`
}

func NewOrderPlacedEvent(order *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		ClientName:    order.ClientName,
		ClientPhone:   order.ClientPhone,
		PaymentMethod: order.PaymentMethod,
		PaymentRef:    order.PaymentReference,
		Items:         order.Items,
		Total:         order.Total,
		Note:          order.Note,
		PlacedAt:      order.CreatedAt,
	}
}

// OutboxEvent is a row of the order outbox waiting to be published.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
