package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const slotWriteTimeout = 2 * time.Second

// Snapshot is an immutable copy of the cart at one point in time.
type Snapshot struct {
	Lines []models.CartLine `json:"lines"`
	Note  string            `json:"note"`
}

func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (s Snapshot) ItemCount() int {
	count := 0
	for _, line := range s.Lines {
		count += line.Quantity
	}
	return count
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Store owns one browsing session's cart. Lines keep insertion order and there
// is at most one line per product id. With a Slot configured every mutation
// writes the full cart through before returning.
type Store struct {
	mu     sync.RWMutex
	lines  []models.CartLine
	note   string
	slot   Slot
	key    string
	logger *zap.Logger
}

type Option func(*Store)

// WithSlot makes the cart durable under key.
func WithSlot(slot Slot, key string) Option {
	return func(s *Store) {
		s.slot = slot
		s.key = key
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Durable() bool {
	return s.slot != nil
}

// Load replaces the in-memory cart with the one stored in the slot. A missing
// or unreadable snapshot leaves an empty cart; it is never an error.
func (s *Store) Load(ctx context.Context) {
	if s.slot == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.note = ""

	raw, err := s.slot.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			s.logger.Warn("cart slot read failed, starting empty", zap.String("key", s.key), zap.Error(err))
		}
		return
	}

	var lines []models.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		s.logger.Debug("cart slot corrupt, starting empty", zap.String("key", s.key), zap.Error(err))
		return
	}
	s.lines = sanitize(lines)

	note, err := s.slot.Get(ctx, noteKey(s.key))
	if err == nil {
		s.note = note
	}
}

// sanitize drops lines with a non-positive quantity and merges duplicate ids,
// keeping the first snapshot of each product.
func sanitize(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		if i, ok := index[line.ID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ID] = len(out)
		out = append(out, snapshotOf(line.Product, line.Quantity))
	}
	return out
}

// snapshotOf copies the product fields a line keeps, coercing values the
// catalog should never send.
func snapshotOf(p models.Product, quantity int) models.CartLine {
	p.Name = strings.TrimSpace(p.Name)
	if p.Price.IsNegative() {
		p.Price = decimal.Zero
	}
	if p.DiscountPrice.Valid && !p.DiscountPrice.Decimal.IsPositive() {
		p.DiscountPrice = decimal.NullDecimal{}
	}
	return models.CartLine{Product: p, Quantity: quantity}
}

func (s *Store) indexOf(productID int64) int {
	for i := range s.lines {
		if s.lines[i].ID == productID {
			return i
		}
	}
	return -1
}

// AddOrIncrement bumps the quantity of an existing line or appends a new one
// with the product's current fields.
func (s *Store) AddOrIncrement(product models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, snapshotOf(product, 1))
	}
	s.persistLocked()
}

// Decrement lowers a line's quantity by one and removes the line at zero.
// Unknown ids are ignored.
func (s *Store) Decrement(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines[i].Quantity--
	if s.lines[i].Quantity <= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	s.persistLocked()
}

func (s *Store) Remove(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.persistLocked()
}

func (s *Store) SetNote(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.note = text
	s.persistLocked()
}

func (s *Store) Note() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.note
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.note = ""
	s.persistLocked()
}

func (s *Store) EffectivePrice(product models.Product) decimal.Decimal {
	return product.EffectivePrice()
}

func (s *Store) Total() decimal.Decimal {
	return s.Snapshot().Total()
}

func (s *Store) ItemCount() int {
	return s.Snapshot().ItemCount()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]models.CartLine, len(s.lines))
	copy(lines, s.lines)
	return Snapshot{Lines: lines, Note: s.note}
}

// persistLocked writes the cart through to the slot. Failures are logged: the
// in-memory cart stays authoritative for the session.
func (s *Store) persistLocked() {
	if s.slot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), slotWriteTimeout)
	defer cancel()

	if len(s.lines) == 0 && s.note == "" {
		if err := s.slot.Delete(ctx, s.key); err != nil {
			s.logger.Warn("cart slot delete failed", zap.String("key", s.key), zap.Error(err))
		}
		if err := s.slot.Delete(ctx, noteKey(s.key)); err != nil {
			s.logger.Warn("cart slot delete failed", zap.String("key", noteKey(s.key)), zap.Error(err))
		}
		return
	}

	lines := s.lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		s.logger.Error("marshal cart failed", zap.Error(err))
		return
	}
	if err := s.slot.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Warn("cart slot write failed", zap.String("key", s.key), zap.Error(err))
	}
	if err := s.slot.Set(ctx, noteKey(s.key), s.note); err != nil {
		s.logger.Warn("cart slot write failed", zap.String("key", noteKey(s.key)), zap.Error(err))
	}
}

func noteKey(key string) string {
	return key + ":note"
}
