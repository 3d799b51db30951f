package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// OrderStore persists placed orders. Items are stored as the full cart line
// snapshot so an order stays readable after the catalog changes.
type OrderStore struct {
	db     *sql.DB
	outbox bool
}

type OrderStoreOption func(*OrderStore)

// WithOutbox makes Insert queue an order_placed event in the same transaction
// as the order row.
func WithOutbox() OrderStoreOption {
	return func(s *OrderStore) { s.outbox = true }
}

func NewOrderStore(db *sql.DB, opts ...OrderStoreOption) *OrderStore {
	s := &OrderStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func generateOrderNumber() string {
	return "WEB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Insert writes order and fills in ID, OrderNumber, Status and CreatedAt.
func (s *OrderStore) Insert(ctx context.Context, order *models.Order) (int64, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return 0, fmt.Errorf("marshal order items: %w", err)
	}

	if order.OrderNumber == "" {
		order.OrderNumber = generateOrderNumber()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	err = database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, client_name, client_phone, payment_ref, payment_method,
			                     total, items, note, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			 RETURNING id, created_at`,
			order.OrderNumber,
			order.ClientName,
			order.ClientPhone,
			order.PaymentReference,
			string(order.PaymentMethod),
			order.Total,
			items,
			order.Note,
			order.Status,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil || !s.outbox {
			return err
		}
		return insertOutboxEvent(ctx, tx, order)
	})
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	return order.ID, nil
}

const orderColumns = `id, order_number, client_name, client_phone, payment_ref, payment_method,
		       total, items, note, status, created_at`

func scanOrder(row rowScanner) (models.Order, error) {
	var (
		order  models.Order
		method string
		items  []byte
	)

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.ClientName,
		&order.ClientPhone,
		&order.PaymentReference,
		&method,
		&order.Total,
		&items,
		&order.Note,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		return order, err
	}

	order.PaymentMethod = models.PaymentMethod(method)
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return order, fmt.Errorf("unmarshal order items: %w", err)
	}
	return order, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return &order, nil
}

// ListOrders returns the orders with the given ids, newest first. Unknown ids
// are skipped.
func (s *OrderStore) ListOrders(ctx context.Context, ids []int64) ([]models.Order, error) {
	orders := []models.Order{}
	if len(ids) == 0 {
		return orders, nil
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = ANY($1)
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}
