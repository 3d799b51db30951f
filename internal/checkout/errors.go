package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition    = errors.New("illegal checkout transition")
	ErrSubmissionInFlight   = errors.New("order submission already in progress")
	ErrOrderNotPlaced       = errors.New("order could not be registered, please try again")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrCartLocked           = errors.New("cart cannot change while checkout is in progress")
)

// ValidationError lists the contact fields that block a submit: Fields are
// missing, TooLong exceed the stored column width.
type ValidationError struct {
	Fields  []string
	TooLong []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Fields) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Fields, ", "))
	}
	if len(e.TooLong) > 0 {
		parts = append(parts, "fields too long: "+strings.Join(e.TooLong, ", "))
	}
	return strings.Join(parts, "; ")
}

// Invalid returns every field named by the error.
func (e *ValidationError) Invalid() []string {
	return append(append([]string(nil), e.Fields...), e.TooLong...)
}

func illegal(event string, from State) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, event, from)
}
