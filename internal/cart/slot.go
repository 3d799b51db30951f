package cart

import (
	"context"
	"errors"
)

// Slot is a named string value the cart mirrors itself into so it survives
// reloads. Get returns ErrSlotEmpty when nothing is stored under key.
type Slot interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var ErrSlotEmpty = errors.New("cart slot empty")
