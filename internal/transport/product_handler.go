package transport

import (
	"encoding/json"
	"net/http"

	"product-catalog/internal/middleware"
	"product-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests on the public surface. Disabled
// products are invisible here.
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all public product routes behind the given middleware
func (h *ProductHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/v1/products", func(r chi.Router) {
		for _, guard := range guards {
			r.Use(guard)
		}

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/batch", h.CreateBatch)
		r.Get("/{sku}", h.Get)
	})
}

// Create handles public product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Price.Sign() < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	resp, err := h.productService.CreatePublicProduct(r.Context(), req.toInput())
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}

// CreateBatch creates several products from a JSON list
func (h *ProductHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
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

	resp, err := h.productService.CreatePublicProducts(r.Context(), inputs)
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}

// List returns a page of enabled products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 10)

	resp, err := h.productService.GetPublicProducts(r.Context(), page, size)
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Get returns an enabled product by SKU; disabled and unknown SKUs both
// answer 404
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.productService.GetPublicProduct(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		respondServiceError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}
