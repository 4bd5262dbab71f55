package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"product-catalog/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this SKU already exists")
)

// uniqueViolation is the Postgres error code raised by the unique index on sku.
const uniqueViolation = "23505"

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductRepository defines the interface for product data access.
// Pages are zero-based.
type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	FindBySku(ctx context.Context, sku string) (*domain.Product, error)
	ExistsBySku(ctx context.Context, sku string) (bool, error)
	FindAll(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
	FindAllEnabled(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error)
	FindAllBySkuIn(ctx context.Context, skus []string) ([]*domain.Product, error)
	DeleteAll(ctx context.Context, products []*domain.Product) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = "id, sku, name, description, price, enabled, image_object_name, created_at, updated_at"

// Save inserts a new product or updates an existing one, keyed by id.
// The unique index on sku is the real duplicate guard; a violation is
// surfaced as ErrProductAlreadyExists.
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, sku, name, description, price, enabled, image_object_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    enabled = EXCLUDED.enabled,
		    image_object_name = EXCLUDED.image_object_name,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Name,
		product.Description,
		product.Price,
		product.Enabled,
		nullString(product.ImageObjectName),
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to save product: %w", err)
	}

	return nil
}

// FindBySku retrieves a product by its SKU using parameterized queries
func (r *productRepository) FindBySku(ctx context.Context, sku string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE sku = $1`, productColumns)

	product, err := r.scanProduct(r.db.QueryRowContext(ctx, query, sku))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by SKU: %w", err)
	}

	return product, nil
}

// ExistsBySku reports whether a product with the given SKU exists. This is a
// fast-path check only; the unique index still guards concurrent creates.
func (r *productRepository) ExistsBySku(ctx context.Context, sku string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, sku).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}

	return exists, nil
}

// FindAll retrieves all products with pagination and sorting
func (r *productRepository) FindAll(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"sku":        true,
		"name":       true,
		"price":      true,
		"created_at": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at" // Default sort field
	}

	// Validate sort order
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc // Default sort order
	}

	countQuery := `SELECT COUNT(*) FROM products`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		ORDER BY %s %s
		LIMIT $1 OFFSET $2
	`, productColumns, sortBy, sortOrder)

	rows, err := r.db.QueryContext(ctx, query, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products, err := r.scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// FindAllEnabled retrieves enabled products with pagination, ordered by SKU
func (r *productRepository) FindAllEnabled(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error) {
	countQuery := `SELECT COUNT(*) FROM products WHERE enabled = TRUE`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count enabled products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE enabled = TRUE
		ORDER BY sku ASC
		LIMIT $1 OFFSET $2
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list enabled products: %w", err)
	}
	defer rows.Close()

	products, err := r.scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// FindAllBySkuIn retrieves all products whose SKU is in the given list.
// Unknown SKUs are silently skipped.
func (r *productRepository) FindAllBySkuIn(ctx context.Context, skus []string) ([]*domain.Product, error) {
	if len(skus) == 0 {
		return []*domain.Product{}, nil
	}

	placeholders := make([]string, len(skus))
	args := make([]interface{}, len(skus))
	for i, sku := range skus {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = sku
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE sku IN (%s)
		ORDER BY sku ASC
	`, productColumns, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by SKUs: %w", err)
	}
	defer rows.Close()

	return r.scanProducts(rows)
}

// DeleteAll removes the given products from the database
func (r *productRepository) DeleteAll(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	placeholders := make([]string, len(products))
	args := make([]interface{}, len(products))
	for i, product := range products {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = product.ID
	}

	query := fmt.Sprintf(`DELETE FROM products WHERE id IN (%s)`, strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *productRepository) scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var imageObjectName sql.NullString

	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Enabled,
		&imageObjectName,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.ImageObjectName = imageObjectName.String
	return product, nil
}

func (r *productRepository) scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := r.scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
