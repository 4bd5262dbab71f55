package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"product-catalog/internal/client"
	"product-catalog/internal/domain"
	"product-catalog/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mock repositories for testing
type mockProductRepository struct {
	products      map[string]*domain.Product
	saveErr       error
	lastSortOrder repository.SortOrder
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[string]*domain.Product),
	}
}

func (m *mockProductRepository) Save(ctx context.Context, product *domain.Product) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if existing, ok := m.products[product.SKU]; ok && existing.ID != product.ID {
		return repository.ErrProductAlreadyExists
	}
	copied := *product
	m.products[product.SKU] = &copied
	return nil
}

func (m *mockProductRepository) FindBySku(ctx context.Context, sku string) (*domain.Product, error) {
	product, ok := m.products[sku]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *mockProductRepository) ExistsBySku(ctx context.Context, sku string) (bool, error) {
	_, ok := m.products[sku]
	return ok, nil
}

func (m *mockProductRepository) sorted() []*domain.Product {
	all := make([]*domain.Product, 0, len(m.products))
	for _, product := range m.products {
		all = append(all, product)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	return all
}

func paginate(all []*domain.Product, page, pageSize int) []*domain.Product {
	start := page * pageSize
	if start >= len(all) {
		return []*domain.Product{}
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (m *mockProductRepository) FindAll(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	m.lastSortOrder = sortOrder
	all := m.sorted()
	return paginate(all, page, pageSize), len(all), nil
}

func (m *mockProductRepository) FindAllEnabled(ctx context.Context, page, pageSize int) ([]*domain.Product, int, error) {
	enabled := []*domain.Product{}
	for _, product := range m.sorted() {
		if product.Enabled {
			enabled = append(enabled, product)
		}
	}
	return paginate(enabled, page, pageSize), len(enabled), nil
}

func (m *mockProductRepository) FindAllBySkuIn(ctx context.Context, skus []string) ([]*domain.Product, error) {
	found := []*domain.Product{}
	for _, sku := range skus {
		if product, ok := m.products[sku]; ok {
			found = append(found, product)
		}
	}
	return found, nil
}

func (m *mockProductRepository) DeleteAll(ctx context.Context, products []*domain.Product) error {
	for _, product := range products {
		delete(m.products, product.SKU)
	}
	return nil
}

// mockFileClient records uploads and serves canned preview URLs
type mockFileClient struct {
	uploads    int
	uploadErr  error
	previewErr error
}

func (m *mockFileClient) UploadProductImage(ctx context.Context, sku string, upload client.FileUpload) (*client.FileDto, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads++
	return &client.FileDto{
		ObjectName:   "products/" + sku + "/" + upload.Filename,
		ContentType:  upload.ContentType,
		Size:         int64(len(upload.Content)),
		PresignedURL: "https://files.example.com/products/" + sku,
	}, nil
}

func (m *mockFileClient) GetPreviewURL(ctx context.Context, objectName string) (string, error) {
	if m.previewErr != nil {
		return "", m.previewErr
	}
	if objectName == "" {
		return client.PlaceholderImagePath, nil
	}
	return "https://files.example.com/" + objectName, nil
}

func newTestService() (ProductService, *mockProductRepository, *mockFileClient) {
	repo := newMockProductRepository()
	files := &mockFileClient{}
	return NewProductService(repo, files, zap.NewNop()), repo, files
}

func sampleInput(sku string) ProductInput {
	return ProductInput{
		SKU:         sku,
		Name:        "Margherita",
		Description: "Tomato and mozzarella",
		Price:       decimal.NewFromFloat(9.99),
	}
}

func TestCreateProduct_DefaultsToEnabled(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	resp, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Enabled {
		t.Error("newly created product should be enabled")
	}
	if resp.CreatedAt.IsZero() {
		t.Error("createdAt should be set on creation")
	}
	if resp.ID == "" {
		t.Error("id should be assigned on creation")
	}

	stored, err := repo.FindBySku(ctx, "PIZZA-001")
	if err != nil {
		t.Fatalf("product not persisted: %v", err)
	}
	if !stored.Enabled {
		t.Error("persisted product should be enabled")
	}
}

func TestCreateProduct_DuplicateSku(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil)
	if !errors.Is(err, repository.ErrProductAlreadyExists) {
		t.Errorf("expected ErrProductAlreadyExists, got %v", err)
	}
}

func TestCreateProduct_UploadFailureAbortsCreation(t *testing.T) {
	service, repo, files := newTestService()
	files.uploadErr = errors.New("file service down")
	ctx := context.Background()

	upload := &client.FileUpload{Filename: "pizza.jpg", ContentType: "image/jpeg", Content: []byte{1, 2, 3}}
	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), upload); err == nil {
		t.Fatal("expected create to fail when the image upload fails")
	}

	if _, err := repo.FindBySku(ctx, "PIZZA-001"); !errors.Is(err, repository.ErrProductNotFound) {
		t.Error("product should not be persisted when the upload fails")
	}
}

func TestCreateProduct_WithImage(t *testing.T) {
	service, repo, files := newTestService()
	ctx := context.Background()

	upload := &client.FileUpload{Filename: "pizza.jpg", ContentType: "image/jpeg", Content: []byte{1, 2, 3}}
	resp, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), upload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if files.uploads != 1 {
		t.Errorf("expected exactly one upload, got %d", files.uploads)
	}
	if resp.ImageObjectName == "" {
		t.Error("image object name should be set")
	}
	if resp.PreviewURL == "" {
		t.Error("preview URL should be returned for a fresh upload")
	}

	stored, _ := repo.FindBySku(ctx, "PIZZA-001")
	if !stored.HasImage() {
		t.Error("persisted product should reference the uploaded object")
	}
}

func TestCreateProducts_StopsAtFirstDuplicate(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-002"), nil); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	_, err := service.CreateProducts(ctx, []ProductInput{
		sampleInput("PIZZA-001"),
		sampleInput("PIZZA-002"),
		sampleInput("PIZZA-003"),
	})
	if !errors.Is(err, repository.ErrProductAlreadyExists) {
		t.Fatalf("expected ErrProductAlreadyExists, got %v", err)
	}

	// Products created before the duplicate remain persisted
	if _, err := repo.FindBySku(ctx, "PIZZA-001"); err != nil {
		t.Error("product created before the duplicate should remain")
	}
	if _, err := repo.FindBySku(ctx, "PIZZA-003"); !errors.Is(err, repository.ErrProductNotFound) {
		t.Error("product after the duplicate should not have been created")
	}
}

func TestUpdateProduct_PreservesImageAndEnabledAndCreatedAt(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	upload := &client.FileUpload{Filename: "pizza.jpg", ContentType: "image/jpeg", Content: []byte{1}}
	created, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), upload)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := service.DisableProduct(ctx, "PIZZA-001"); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	updated, err := service.UpdateProduct(ctx, "PIZZA-001", ProductUpdateInput{
		Name:        "Margherita XL",
		Description: "Bigger",
		Price:       decimal.NewFromFloat(12.50),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Name != "Margherita XL" {
		t.Errorf("name not updated: %s", updated.Name)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("createdAt must not change on update")
	}
	if updated.Enabled {
		t.Error("update must not flip the enabled flag")
	}
	if updated.ImageObjectName != created.ImageObjectName {
		t.Error("update must not touch the image reference")
	}

	stored, _ := repo.FindBySku(ctx, "PIZZA-001")
	if !stored.UpdatedAt.After(stored.CreatedAt) {
		t.Error("updatedAt should advance past createdAt")
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.UpdateProduct(context.Background(), "MISSING", ProductUpdateInput{Name: "x"})
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestUpdateProductImage_EmptyFile(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.UpdateProductImage(context.Background(), "PIZZA-001", client.FileUpload{Filename: "empty.jpg"})
	if !errors.Is(err, ErrEmptyImageFile) {
		t.Errorf("expected ErrEmptyImageFile, got %v", err)
	}
}

func TestUpdateProductImage_ReplacesObjectName(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resp, err := service.UpdateProductImage(ctx, "PIZZA-001", client.FileUpload{
		Filename:    "new.jpg",
		ContentType: "image/jpeg",
		Content:     []byte{1, 2},
	})
	if err != nil {
		t.Fatalf("image update failed: %v", err)
	}

	if resp.ImageObjectName == "" {
		t.Error("image object name should be set after upload")
	}

	stored, _ := repo.FindBySku(ctx, "PIZZA-001")
	if stored.ImageObjectName != resp.ImageObjectName {
		t.Error("persisted image reference should match the response")
	}
}

func TestDisableEnable_PublicVisibility(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := service.DisableProduct(ctx, "PIZZA-001"); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	// Disabled products vanish from the public surface
	if _, err := service.GetPublicProduct(ctx, "PIZZA-001"); !errors.Is(err, repository.ErrProductNotFound) {
		t.Errorf("disabled product should be not found publicly, got %v", err)
	}

	// But stay visible to admins
	admin, err := service.GetAdminProduct(ctx, "PIZZA-001")
	if err != nil {
		t.Fatalf("admin lookup failed: %v", err)
	}
	if admin.Enabled {
		t.Error("admin view should report the product as disabled")
	}

	// Disabling again is idempotent
	if err := service.DisableProduct(ctx, "PIZZA-001"); err != nil {
		t.Errorf("repeated disable should succeed: %v", err)
	}

	if err := service.EnableProduct(ctx, "PIZZA-001"); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if _, err := service.GetPublicProduct(ctx, "PIZZA-001"); err != nil {
		t.Errorf("re-enabled product should be publicly visible: %v", err)
	}
}

func TestDisableProduct_NotFound(t *testing.T) {
	service, _, _ := newTestService()

	if err := service.DisableProduct(context.Background(), "MISSING"); !errors.Is(err, repository.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestDeleteProducts_IgnoresUnknownSkus(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-002"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := service.DeleteProducts(ctx, []string{"PIZZA-001", "UNKNOWN", "PIZZA-002"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if len(repo.products) != 0 {
		t.Errorf("expected all matching products deleted, %d remain", len(repo.products))
	}

	// A batch of entirely unknown SKUs is a no-op
	if err := service.DeleteProducts(ctx, []string{"NOPE"}); err != nil {
		t.Errorf("delete of unknown SKUs should succeed: %v", err)
	}
}

func TestGetPublicProducts_ExcludesDisabled(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	for _, sku := range []string{"PIZZA-001", "PIZZA-002", "PIZZA-003"} {
		if _, err := service.CreateProduct(ctx, sampleInput(sku), nil); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if err := service.DisableProduct(ctx, "PIZZA-002"); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	page, err := service.GetPublicProducts(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if page.TotalElements != 2 {
		t.Errorf("expected 2 enabled products, got %d", page.TotalElements)
	}
	for _, product := range page.Content {
		if product.SKU == "PIZZA-002" {
			t.Error("disabled product leaked into the public list")
		}
		if product.PreviewURL == "" {
			t.Error("public views must always carry a preview URL")
		}
	}
}

func TestGetPublicProducts_PlaceholderWhenPreviewFails(t *testing.T) {
	service, _, files := newTestService()
	ctx := context.Background()

	if _, err := service.CreateProduct(ctx, sampleInput("PIZZA-001"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	files.previewErr = errors.New("file service down")

	page, err := service.GetPublicProducts(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(page.Content) != 1 {
		t.Fatalf("expected one product, got %d", len(page.Content))
	}
	if page.Content[0].PreviewURL != client.PlaceholderImagePath {
		t.Errorf("expected placeholder preview, got %s", page.Content[0].PreviewURL)
	}
}

func TestGetAdminProducts_Pagination(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := service.CreateProduct(ctx, sampleInput(fmt.Sprintf("PIZZA-%03d", i)), nil); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	page, err := service.GetAdminProducts(ctx, 1, 3, "sku", "asc")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if page.TotalElements != 5 {
		t.Errorf("expected 5 total elements, got %d", page.TotalElements)
	}
	if page.TotalPages != 2 {
		t.Errorf("expected 2 total pages, got %d", page.TotalPages)
	}
	if len(page.Content) != 2 {
		t.Errorf("expected 2 items on the last page, got %d", len(page.Content))
	}
	if page.Page != 1 || page.Size != 3 {
		t.Errorf("page metadata should echo the request, got page=%d size=%d", page.Page, page.Size)
	}
}

func TestGetAdminProducts_SortDirCaseInsensitive(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		sortDir string
		want    repository.SortOrder
	}{
		{"asc", repository.SortOrderAsc},
		{"ASC", repository.SortOrderAsc},
		{"Asc", repository.SortOrderAsc},
		{"desc", repository.SortOrderDesc},
		{"DESC", repository.SortOrderDesc},
		{"", repository.SortOrderDesc},
	}

	for _, tc := range cases {
		if _, err := service.GetAdminProducts(ctx, 0, 10, "sku", tc.sortDir); err != nil {
			t.Fatalf("list failed for sortDir %q: %v", tc.sortDir, err)
		}
		if repo.lastSortOrder != tc.want {
			t.Errorf("sortDir %q mapped to %s, want %s", tc.sortDir, repo.lastSortOrder, tc.want)
		}
	}
}

func TestGetPublicProducts_Pagination(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := service.CreateProduct(ctx, sampleInput(fmt.Sprintf("PIZZA-%03d", i)), nil); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	first, err := service.GetPublicProducts(ctx, 0, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first.Content) != 3 {
		t.Errorf("expected 3 items on page 0, got %d", len(first.Content))
	}

	second, err := service.GetPublicProducts(ctx, 1, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(second.Content) != 2 {
		t.Errorf("expected 2 items on page 1, got %d", len(second.Content))
	}
	if second.TotalElements != 5 || second.TotalPages != 2 {
		t.Errorf("expected totalElements=5 totalPages=2, got %d and %d", second.TotalElements, second.TotalPages)
	}
}

func TestProperty_EveryCreatedProductIsPubliclyVisible(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("created products appear on the public surface until disabled", prop.ForAll(
		func(sku string, name string, price float64) bool {
			service, _, _ := newTestService()
			ctx := context.Background()

			_, err := service.CreateProduct(ctx, ProductInput{
				SKU:   sku,
				Name:  name,
				Price: decimal.NewFromFloat(price),
			}, nil)
			if err != nil {
				return true // Skip invalid inputs
			}

			public, err := service.GetPublicProduct(ctx, sku)
			if err != nil {
				t.Logf("FAIL: created product not publicly visible: %v", err)
				return false
			}
			if public.SKU != sku {
				t.Logf("FAIL: SKU mismatch, expected %s got %s", sku, public.SKU)
				return false
			}

			if err := service.DisableProduct(ctx, sku); err != nil {
				t.Logf("FAIL: disable failed: %v", err)
				return false
			}
			if _, err := service.GetPublicProduct(ctx, sku); !errors.Is(err, repository.ErrProductNotFound) {
				t.Logf("FAIL: disabled product still publicly visible")
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Z]{3,6}-[0-9]{3}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.Float64Range(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_PageMetadataConsistent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("totalPages covers totalElements for any page size", prop.ForAll(
		func(count int, size int) bool {
			service, _, _ := newTestService()
			ctx := context.Background()

			for i := 0; i < count; i++ {
				if _, err := service.CreateProduct(ctx, sampleInput(fmt.Sprintf("SKU-%04d", i)), nil); err != nil {
					t.Logf("FAIL: create failed: %v", err)
					return false
				}
			}

			page, err := service.GetAdminProducts(ctx, 0, size, "sku", "asc")
			if err != nil {
				t.Logf("FAIL: list failed: %v", err)
				return false
			}

			if page.TotalElements != count {
				t.Logf("FAIL: totalElements %d, expected %d", page.TotalElements, count)
				return false
			}

			expectedPages := (count + size - 1) / size
			if page.TotalPages != expectedPages {
				t.Logf("FAIL: totalPages %d, expected %d", page.TotalPages, expectedPages)
				return false
			}

			if count > 0 && len(page.Content) == 0 {
				t.Logf("FAIL: first page empty with %d products", count)
				return false
			}

			return true
		},
		gen.IntRange(0, 25),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
