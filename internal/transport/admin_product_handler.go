package transport

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"product-catalog/internal/client"
	"product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxUploadSize bounds in-memory parsing of multipart image uploads
const maxUploadSize = 10 << 20 // 10 MiB

// ProductRequest represents the product creation payload
type ProductRequest struct {
	SKU         string          `json:"sku" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// ProductUpdateRequest represents the product update payload
type ProductUpdateRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

func (r ProductRequest) toInput() service.ProductInput {
	return service.ProductInput{
		SKU:         r.SKU,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
	}
}

// AdminProductHandler handles HTTP requests on the admin surface
type AdminProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewAdminProductHandler creates a new AdminProductHandler
func NewAdminProductHandler(productService service.ProductService, logger *zap.Logger) *AdminProductHandler {
	return &AdminProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all admin product routes behind the given middleware
func (h *AdminProductHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/v1/admin/products", func(r chi.Router) {
		for _, guard := range guards {
			r.Use(guard)
		}

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/batch", h.CreateBatch)
		r.Delete("/batch", h.DeleteBatch)
		r.Get("/{sku}", h.Get)
		r.Put("/{sku}", h.Update)
		r.Put("/{sku}/image", h.UpdateImage)
		r.Patch("/{sku}/disable", h.Disable)
		r.Patch("/{sku}/enable", h.Enable)
	})
}

// Create handles product creation. JSON bodies create a bare product;
// multipart bodies carry a "product" JSON part plus an optional image "file".
func (h *AdminProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req ProductRequest
	var upload *client.FileUpload

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		if err := json.Unmarshal([]byte(r.FormValue("product")), &req); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product payload")
			return
		}
		if err := middleware.ValidateRequest(&req); err != nil {
			middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
			return
		}

		fileUpload, err := readFormFile(r)
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid image file")
			return
		}
		upload = fileUpload
	} else {
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			h.respondDecodeError(w, err)
			return
		}
	}

	if req.Price.Sign() < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	resp, err := h.productService.CreateProduct(r.Context(), req.toInput(), upload)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}

// CreateBatch creates several products from a JSON list
func (h *AdminProductHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]service.ProductInput, 0, len(reqs))
	for _, req := range reqs {
		if err := middleware.ValidateRequest(&req); err != nil {
			middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
			return
		}
		inputs = append(inputs, req.toInput())
	}

	resp, err := h.productService.CreateProducts(r.Context(), inputs)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}

// List returns a page over all products, including disabled ones
func (h *AdminProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 10)
	sortBy := queryString(r, "sortBy", "createdAt")
	sortDir := queryString(r, "sortDir", "desc")

	resp, err := h.productService.GetAdminProducts(r.Context(), page, size, sortBy, sortDir)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Get returns a single product by SKU regardless of its enabled flag
func (h *AdminProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.productService.GetAdminProduct(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Update overwrites a product's name, description and price
func (h *AdminProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProductUpdateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.respondDecodeError(w, err)
		return
	}

	if req.Price.Sign() < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	resp, err := h.productService.UpdateProduct(r.Context(), chi.URLParam(r, "sku"), service.ProductUpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// UpdateImage uploads a new image for a product via multipart form data
func (h *AdminProductHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	upload, err := readFormFile(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "image file is required")
		return
	}

	resp, err := h.productService.UpdateProductImage(r.Context(), chi.URLParam(r, "sku"), *upload)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Disable removes a product from the public surface
func (h *AdminProductHandler) Disable(w http.ResponseWriter, r *http.Request) {
	if err := h.productService.DisableProduct(r.Context(), chi.URLParam(r, "sku")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enable returns a product to the public surface
func (h *AdminProductHandler) Enable(w http.ResponseWriter, r *http.Request) {
	if err := h.productService.EnableProduct(r.Context(), chi.URLParam(r, "sku")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBatch deletes all products matching the given SKUs; unknown SKUs are
// silently ignored
func (h *AdminProductHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var skus []string
	if err := json.NewDecoder(r.Body).Decode(&skus); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.productService.DeleteProducts(r.Context(), skus); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminProductHandler) respondDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

func (h *AdminProductHandler) respondServiceError(w http.ResponseWriter, err error) {
	respondServiceError(w, err, h.logger)
}

// respondServiceError translates service errors to HTTP status codes
func respondServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrProductAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrEmptyImageFile):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// readFormFile extracts the "file" part of a parsed multipart form
func readFormFile(r *http.Request) (*client.FileUpload, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &client.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func queryString(r *http.Request, name, fallback string) string {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	return value
}
