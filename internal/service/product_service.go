package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"product-catalog/internal/client"
	"product-catalog/internal/domain"
	"product-catalog/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyImageFile = errors.New("image file must not be empty")
)

// ProductInput carries the fields accepted when creating a product
type ProductInput struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
}

// ProductUpdateInput carries the fields accepted when updating a product.
// The enabled flag and the image are updated through dedicated operations.
type ProductUpdateInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
}

// AdminProductResponse is the admin-facing view of a product
type AdminProductResponse struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Enabled         bool            `json:"enabled"`
	ImageObjectName string          `json:"imageObjectName,omitempty"`
	PreviewURL      string          `json:"previewUrl,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ProductResponse is the public-facing view of a product
type ProductResponse struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	PreviewURL  string          `json:"previewUrl"`
}

// AdminProductPage is a page of admin product views
type AdminProductPage struct {
	Content       []AdminProductResponse `json:"content"`
	Page          int                    `json:"page"`
	Size          int                    `json:"size"`
	TotalElements int                    `json:"totalElements"`
	TotalPages    int                    `json:"totalPages"`
}

// ProductPage is a page of public product views
type ProductPage struct {
	Content       []ProductResponse `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int               `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
}

// ProductService defines the business operations over the product catalog
type ProductService interface {
	CreateProduct(ctx context.Context, input ProductInput, upload *client.FileUpload) (*AdminProductResponse, error)
	CreateProducts(ctx context.Context, inputs []ProductInput) ([]AdminProductResponse, error)
	CreatePublicProduct(ctx context.Context, input ProductInput) (*ProductResponse, error)
	CreatePublicProducts(ctx context.Context, inputs []ProductInput) ([]ProductResponse, error)
	UpdateProduct(ctx context.Context, sku string, input ProductUpdateInput) (*AdminProductResponse, error)
	UpdateProductImage(ctx context.Context, sku string, upload client.FileUpload) (*AdminProductResponse, error)
	DisableProduct(ctx context.Context, sku string) error
	EnableProduct(ctx context.Context, sku string) error
	DeleteProducts(ctx context.Context, skus []string) error
	GetAdminProduct(ctx context.Context, sku string) (*AdminProductResponse, error)
	GetAdminProducts(ctx context.Context, page, size int, sortBy, sortDir string) (*AdminProductPage, error)
	GetPublicProduct(ctx context.Context, sku string) (*ProductResponse, error)
	GetPublicProducts(ctx context.Context, page, size int) (*ProductPage, error)
}

type productService struct {
	productRepo repository.ProductRepository
	fileClient  client.FileServiceClient
	logger      *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	fileClient client.FileServiceClient,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo: productRepo,
		fileClient:  fileClient,
		logger:      logger,
	}
}

// CreateProduct persists a new product, uploading its image first when one
// accompanies the request. An upload failure aborts the creation. If the
// subsequent save fails the uploaded object is orphaned; this is logged but
// not compensated.
func (s *productService) CreateProduct(ctx context.Context, input ProductInput, upload *client.FileUpload) (*AdminProductResponse, error) {
	exists, err := s.productRepo.ExistsBySku(ctx, input.SKU)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing product: %w", err)
	}
	if exists {
		return nil, repository.ErrProductAlreadyExists
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var previewURL string
	if upload != nil && !upload.IsEmpty() {
		dto, err := s.fileClient.UploadProductImage(ctx, product.SKU, *upload)
		if err != nil {
			return nil, fmt.Errorf("failed to upload product image: %w", err)
		}
		product.ImageObjectName = dto.ObjectName
		previewURL = dto.PresignedURL
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		if product.HasImage() {
			s.logger.Warn("Uploaded image orphaned by failed save",
				zap.String("sku", product.SKU),
				zap.String("object_name", product.ImageObjectName),
			)
		}
		return nil, err
	}

	s.logger.Info("Product created", zap.String("sku", product.SKU))
	resp := s.adminResponse(product, previewURL)
	return &resp, nil
}

// CreateProducts creates products sequentially; the first duplicate SKU
// aborts the batch and already-created products remain persisted.
func (s *productService) CreateProducts(ctx context.Context, inputs []ProductInput) ([]AdminProductResponse, error) {
	responses := make([]AdminProductResponse, 0, len(inputs))
	for _, input := range inputs {
		resp, err := s.CreateProduct(ctx, input, nil)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

// CreatePublicProduct creates a product through the public surface and
// returns the public view. Newly created products carry no image, so the
// preview URL is the placeholder path.
func (s *productService) CreatePublicProduct(ctx context.Context, input ProductInput) (*ProductResponse, error) {
	created, err := s.CreateProduct(ctx, input, nil)
	if err != nil {
		return nil, err
	}

	resp := publicViewOf(created)
	return &resp, nil
}

// CreatePublicProducts creates products sequentially through the public
// surface; the first duplicate SKU aborts the batch.
func (s *productService) CreatePublicProducts(ctx context.Context, inputs []ProductInput) ([]ProductResponse, error) {
	responses := make([]ProductResponse, 0, len(inputs))
	for _, input := range inputs {
		resp, err := s.CreatePublicProduct(ctx, input)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func publicViewOf(admin *AdminProductResponse) ProductResponse {
	previewURL := admin.PreviewURL
	if previewURL == "" {
		previewURL = client.PlaceholderImagePath
	}
	return ProductResponse{
		ID:          admin.ID,
		SKU:         admin.SKU,
		Name:        admin.Name,
		Description: admin.Description,
		Price:       admin.Price,
		PreviewURL:  previewURL,
	}
}

// UpdateProduct overwrites name, description and price. The enabled flag,
// the image reference and the creation timestamp are left untouched.
func (s *productService) UpdateProduct(ctx context.Context, sku string, input ProductUpdateInput) (*AdminProductResponse, error) {
	product, err := s.productRepo.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}

	resp := s.adminResponse(product, s.resolveAdminPreview(ctx, product))
	return &resp, nil
}

// UpdateProductImage uploads a new image and overwrites the product's image
// object reference
func (s *productService) UpdateProductImage(ctx context.Context, sku string, upload client.FileUpload) (*AdminProductResponse, error) {
	if upload.IsEmpty() {
		return nil, ErrEmptyImageFile
	}

	product, err := s.productRepo.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}

	dto, err := s.fileClient.UploadProductImage(ctx, sku, upload)
	if err != nil {
		return nil, fmt.Errorf("failed to upload product image: %w", err)
	}

	product.ImageObjectName = dto.ObjectName
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Save(ctx, product); err != nil {
		s.logger.Warn("Uploaded image orphaned by failed save",
			zap.String("sku", sku),
			zap.String("object_name", dto.ObjectName),
		)
		return nil, err
	}

	resp := s.adminResponse(product, dto.PresignedURL)
	return &resp, nil
}

// DisableProduct removes a product from the public surface. Idempotent.
func (s *productService) DisableProduct(ctx context.Context, sku string) error {
	return s.setEnabled(ctx, sku, false)
}

// EnableProduct returns a product to the public surface. Idempotent.
func (s *productService) EnableProduct(ctx context.Context, sku string) error {
	return s.setEnabled(ctx, sku, true)
}

func (s *productService) setEnabled(ctx context.Context, sku string, enabled bool) error {
	product, err := s.productRepo.FindBySku(ctx, sku)
	if err != nil {
		return err
	}

	product.Enabled = enabled
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Save(ctx, product); err != nil {
		return err
	}

	s.logger.Info("Product enabled flag changed",
		zap.String("sku", sku),
		zap.Bool("enabled", enabled),
	)
	return nil
}

// DeleteProducts deletes all products matching the given SKUs. Unknown SKUs
// are silently ignored.
func (s *productService) DeleteProducts(ctx context.Context, skus []string) error {
	products, err := s.productRepo.FindAllBySkuIn(ctx, skus)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}

	if err := s.productRepo.DeleteAll(ctx, products); err != nil {
		return err
	}

	s.logger.Info("Products deleted", zap.Int("count", len(products)), zap.Strings("skus", skus))
	return nil
}

// GetAdminProduct returns a product regardless of its enabled flag
func (s *productService) GetAdminProduct(ctx context.Context, sku string) (*AdminProductResponse, error) {
	product, err := s.productRepo.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}

	resp := s.adminResponse(product, s.resolveAdminPreview(ctx, product))
	return &resp, nil
}

// GetAdminProducts returns a page over all products, each annotated with a
// preview URL when an image exists
func (s *productService) GetAdminProducts(ctx context.Context, page, size int, sortBy, sortDir string) (*AdminProductPage, error) {
	sortOrder := repository.SortOrderDesc
	if strings.EqualFold(sortDir, "asc") {
		sortOrder = repository.SortOrderAsc
	}

	products, total, err := s.productRepo.FindAll(ctx, page, size, sortColumn(sortBy), sortOrder)
	if err != nil {
		return nil, err
	}

	content := make([]AdminProductResponse, 0, len(products))
	for _, product := range products {
		content = append(content, s.adminResponse(product, s.resolveAdminPreview(ctx, product)))
	}

	return &AdminProductPage{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages(total, size),
	}, nil
}

// GetPublicProduct returns an enabled product; disabled or unknown SKUs are
// both reported as not found
func (s *productService) GetPublicProduct(ctx context.Context, sku string) (*ProductResponse, error) {
	product, err := s.productRepo.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !product.Enabled {
		return nil, repository.ErrProductNotFound
	}

	resp := s.publicResponse(ctx, product)
	return &resp, nil
}

// GetPublicProducts returns a page of enabled products ordered by SKU
func (s *productService) GetPublicProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	products, total, err := s.productRepo.FindAllEnabled(ctx, page, size)
	if err != nil {
		return nil, err
	}

	content := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		content = append(content, s.publicResponse(ctx, product))
	}

	return &ProductPage{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages(total, size),
	}, nil
}

// resolveAdminPreview resolves a preview URL only when an image exists;
// products without an image stay without a preview in the admin view.
func (s *productService) resolveAdminPreview(ctx context.Context, product *domain.Product) string {
	if !product.HasImage() {
		return ""
	}

	url, err := s.fileClient.GetPreviewURL(ctx, product.ImageObjectName)
	if err != nil {
		s.logger.Warn("Failed to resolve preview URL",
			zap.String("sku", product.SKU),
			zap.Error(err),
		)
		return ""
	}
	return url
}

func (s *productService) adminResponse(product *domain.Product, previewURL string) AdminProductResponse {
	return AdminProductResponse{
		ID:              product.ID.String(),
		SKU:             product.SKU,
		Name:            product.Name,
		Description:     product.Description,
		Price:           product.Price,
		Enabled:         product.Enabled,
		ImageObjectName: product.ImageObjectName,
		PreviewURL:      previewURL,
		CreatedAt:       product.CreatedAt,
	}
}

// publicResponse always carries a preview URL; the resilient client degrades
// to the placeholder path when the image is missing or unreachable.
func (s *productService) publicResponse(ctx context.Context, product *domain.Product) ProductResponse {
	previewURL, err := s.fileClient.GetPreviewURL(ctx, product.ImageObjectName)
	if err != nil {
		s.logger.Warn("Failed to resolve preview URL",
			zap.String("sku", product.SKU),
			zap.Error(err),
		)
		previewURL = client.PlaceholderImagePath
	}

	return ProductResponse{
		ID:          product.ID.String(),
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		PreviewURL:  previewURL,
	}
}

// sortColumn maps API sort fields to database columns
func sortColumn(sortBy string) string {
	switch sortBy {
	case "sku", "name", "price":
		return sortBy
	default:
		return "created_at"
	}
}

func totalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
