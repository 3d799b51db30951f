package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// Catalog is the read-only view of the menu. Products with is_active = false
// are treated as absent.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

const productColumns = `id, category_id, name, description, price, discount_price, image_url, is_special, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var (
		product     models.Product
		description sql.NullString
		imageURL    sql.NullString
	)

	err := row.Scan(
		&product.ID,
		&product.CategoryID,
		&product.Name,
		&description,
		&product.Price,
		&product.DiscountPrice,
		&imageURL,
		&product.IsSpecial,
		&product.IsActive,
	)
	if err != nil {
		return product, err
	}

	product.Description = description.String
	product.ImageURL = imageURL.String
	return product, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1 AND is_active`

	product, err := scanProduct(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &product, nil
}

// ListProducts pages active products by name. categoryID 0 means every category.
func (c *Catalog) ListProducts(ctx context.Context, categoryID int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE is_active AND ($1::bigint = 0 OR category_id = $1)`,
		categoryID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE is_active AND ($1::bigint = 0 OR category_id = $1)
		ORDER BY is_special DESC, name
		LIMIT $2 OFFSET $3`

	rows, err := c.db.QueryContext(ctx, query, categoryID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func (c *Catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, sort_order FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}
