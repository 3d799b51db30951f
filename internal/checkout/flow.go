package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/models"
	"go.uber.org/zap"
)

// OrderStore is the persistence the flow needs at submit time.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) (int64, error)
}

// Launcher opens the hand-off URL in the external messaging application.
type Launcher interface {
	Launch(url string)
}

type LauncherFunc func(url string)

func (f LauncherFunc) Launch(url string) { f(url) }

type Config struct {
	BaseURL     string
	Destination string
	// Delay between entering Confirmed and launching the hand-off.
	Delay  time.Duration
	Method MethodInfo
}

// Session is a read-only view of the flow's state.
type Session struct {
	State              State                `json:"state"`
	PaymentMethod      models.PaymentMethod `json:"payment_method,omitempty"`
	ClientName         string               `json:"client_name"`
	ClientPhone        string               `json:"client_phone"`
	PaymentReference   string               `json:"payment_ref"`
	SubmissionInFlight bool                 `json:"submission_in_flight"`
	LastError          string               `json:"last_error,omitempty"`
	OrderID            int64                `json:"order_id,omitempty"`
	OrderNumber        string               `json:"order_number,omitempty"`
	HandoffURL         string               `json:"handoff_url,omitempty"`
}

// Flow drives one checkout attempt over a cart. It only reads the cart until
// the confirmed session is closed out by StartNewOrder or ReturnToMenu.
type Flow struct {
	mu       sync.Mutex
	cart     *cart.Store
	orders   OrderStore
	launcher Launcher
	cfg      Config
	logger   *zap.Logger

	session Session
	// scheduled hand-offs that have not fired; Close stops them
	handoffs []*pendingHandoff
	closed   bool
}

type pendingHandoff struct {
	timer *time.Timer
}

func NewFlow(c *cart.Store, orders OrderStore, launcher Launcher, cfg Config, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		cart:     c,
		orders:   orders,
		launcher: launcher,
		cfg:      cfg,
		logger:   logger,
		session:  Session{State: StateReviewing},
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.State
}

func (f *Flow) Session() Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *Flow) resetLocked() {
	f.session = Session{State: StateReviewing}
}

func (f *Flow) transitionLocked(to State) {
	f.logger.Debug("checkout transition",
		zap.Stringer("from", f.session.State),
		zap.Stringer("to", to))
	f.session.State = to
}

func (f *Flow) StartCheckout() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateReviewing {
		return illegal("start checkout", f.session.State)
	}
	if f.cart.Snapshot().IsEmpty() {
		return ErrEmptyCart
	}
	f.transitionLocked(StateSelectingMethod)
	return nil
}

// EditCart runs edit against the cart while the flow is in Reviewing. Holding
// the flow lock keeps StartCheckout from interleaving with the edit.
func (f *Flow) EditCart(edit func(c *cart.Store)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateReviewing {
		return ErrCartLocked
	}
	edit(f.cart)
	return nil
}

func (f *Flow) ChooseMethod(method models.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateSelectingMethod {
		return illegal("choose method", f.session.State)
	}
	if !method.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	f.session.PaymentMethod = method
	f.transitionLocked(StateMethodDetails)
	return nil
}

// ConfirmPaid is the bank-transfer "I paid" step.
func (f *Flow) ConfirmPaid() error {
	return f.leaveDetails("confirm paid", models.PaymentMethodBankTransfer)
}

// Continue is the pickup-pay step past the store instructions.
func (f *Flow) Continue() error {
	return f.leaveDetails("continue", models.PaymentMethodPickupPay)
}

func (f *Flow) leaveDetails(event string, method models.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateMethodDetails || f.session.PaymentMethod != method {
		return illegal(event, f.session.State)
	}
	f.transitionLocked(StateContactForm)
	return nil
}

// Back returns from the method details to the method choice.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateMethodDetails {
		return illegal("back", f.session.State)
	}
	f.session.PaymentMethod = models.PaymentMethodNone
	f.transitionLocked(StateSelectingMethod)
	return nil
}

// Cancel abandons the payment flow and clears every session field.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.session.State.cancellable() {
		return illegal("cancel", f.session.State)
	}
	f.resetLocked()
	return nil
}

// SetContact records the contact form fields. A reference given for pickup
// payment is dropped.
func (f *Flow) SetContact(name, phone, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateContactForm {
		return illegal("set contact", f.session.State)
	}
	f.session.ClientName = name
	f.session.ClientPhone = phone
	if f.session.PaymentMethod == models.PaymentMethodBankTransfer {
		f.session.PaymentReference = reference
	} else {
		f.session.PaymentReference = ""
	}
	return nil
}

// Column widths of the orders table.
const (
	MaxClientNameLen  = 200
	MaxClientPhoneLen = 40
	MaxReferenceLen   = 120
)

func (f *Flow) validateLocked() error {
	var missing, tooLong []string
	check := func(field, value string, max int, required bool) {
		value = strings.TrimSpace(value)
		switch {
		case required && value == "":
			missing = append(missing, field)
		case utf8.RuneCountInString(value) > max:
			tooLong = append(tooLong, field)
		}
	}
	check("client_name", f.session.ClientName, MaxClientNameLen, true)
	check("client_phone", f.session.ClientPhone, MaxClientPhoneLen, true)
	if f.session.PaymentMethod == models.PaymentMethodBankTransfer {
		check("payment_ref", f.session.PaymentReference, MaxReferenceLen, true)
	}
	if len(missing) > 0 || len(tooLong) > 0 {
		return &ValidationError{Fields: missing, TooLong: tooLong}
	}
	return nil
}

func (f *Flow) buildOrderLocked(snap cart.Snapshot) *models.Order {
	reference := models.PaymentReferenceNotApplicable
	if f.session.PaymentMethod == models.PaymentMethodBankTransfer {
		reference = strings.TrimSpace(f.session.PaymentReference)
	}
	return &models.Order{
		ClientName:       strings.TrimSpace(f.session.ClientName),
		ClientPhone:      strings.TrimSpace(f.session.ClientPhone),
		PaymentReference: reference,
		PaymentMethod:    f.session.PaymentMethod,
		Total:            snap.Total(),
		Items:            snap.Lines,
		Note:             snap.Note,
		Status:           models.OrderStatusPending,
	}
}

// Submit persists the order once. A submit while another is in flight is
// rejected without touching the store. On failure the session returns to the
// contact form with its fields intact.
func (f *Flow) Submit(ctx context.Context) (*models.Order, error) {
	f.mu.Lock()
	if f.session.SubmissionInFlight {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if f.session.State != StateContactForm {
		state := f.session.State
		f.mu.Unlock()
		return nil, illegal("submit", state)
	}
	if err := f.validateLocked(); err != nil {
		f.session.LastError = err.Error()
		f.mu.Unlock()
		return nil, err
	}
	snap := f.cart.Snapshot()
	if snap.IsEmpty() {
		f.session.LastError = ErrEmptyCart.Error()
		f.mu.Unlock()
		return nil, ErrEmptyCart
	}

	order := f.buildOrderLocked(snap)
	contact := Contact{
		Name:      order.ClientName,
		Phone:     order.ClientPhone,
		Method:    order.PaymentMethod,
		Reference: order.PaymentReference,
	}
	f.session.SubmissionInFlight = true
	f.session.LastError = ""
	f.transitionLocked(StateSubmitting)
	f.mu.Unlock()

	// once issued the write is not cancelled by the caller going away
	id, err := f.orders.Insert(context.WithoutCancel(ctx), order)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.SubmissionInFlight = false

	if f.closed {
		f.logger.Warn("order submission finished after session closed",
			zap.Int64("order_id", id), zap.Error(err))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOrderNotPlaced, err)
		}
		order.ID = id
		return order, nil
	}

	if err != nil {
		f.logger.Error("order insert failed", zap.Error(err))
		f.session.LastError = ErrOrderNotPlaced.Error()
		f.transitionLocked(StateContactForm)
		return nil, fmt.Errorf("%w: %w", ErrOrderNotPlaced, err)
	}

	order.ID = id
	handoffURL := HandoffURL(f.cfg.BaseURL, f.cfg.Destination, ComposeMessage(snap, contact))
	f.session.OrderID = id
	f.session.OrderNumber = order.OrderNumber
	f.session.HandoffURL = handoffURL
	f.transitionLocked(StateConfirmed)
	f.scheduleHandoffLocked(handoffURL)

	f.logger.Info("order placed",
		zap.Int64("order_id", id),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.Total.String()))

	return order, nil
}

func (f *Flow) scheduleHandoffLocked(url string) {
	if f.launcher == nil {
		return
	}
	h := &pendingHandoff{}
	h.timer = time.AfterFunc(f.cfg.Delay, func() { f.fireHandoff(h, url) })
	f.handoffs = append(f.handoffs, h)
}

// fireHandoff launches url unless the flow was closed first. The launcher runs
// without the lock held.
func (f *Flow) fireHandoff(h *pendingHandoff, url string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	for i, pending := range f.handoffs {
		if pending == h {
			f.handoffs = append(f.handoffs[:i], f.handoffs[i+1:]...)
			break
		}
	}
	launcher := f.launcher
	f.mu.Unlock()

	launcher.Launch(url)
}

// StartNewOrder clears the cart and starts over in Reviewing. A hand-off
// still waiting on its delay is left to fire: the order is already placed.
// Close still cancels it.
func (f *Flow) StartNewOrder() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateConfirmed {
		return illegal("start new order", f.session.State)
	}
	f.cart.Clear()
	f.resetLocked()
	return nil
}

// ReturnToMenu clears the cart and ends the flow.
func (f *Flow) ReturnToMenu() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.State != StateConfirmed {
		return illegal("return to menu", f.session.State)
	}
	f.cart.Clear()
	f.transitionLocked(StateExited)
	return nil
}

// Close tears the session down and cancels every hand-off that has not fired
// yet, including ones scheduled before StartNewOrder or ReturnToMenu.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, h := range f.handoffs {
		h.timer.Stop()
	}
	f.handoffs = nil
	f.closed = true
}

// PendingHandoffs reports how many scheduled hand-offs have not fired.
func (f *Flow) PendingHandoffs() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.handoffs)
}
