package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"catalog-analytics-service/internal/catalog"
	"catalog-analytics-service/internal/domain"
	"catalog-analytics-service/internal/store"
)

// BatchIDHeader carries the id of an applied bulk stock update.
const BatchIDHeader = "X-Batch-ID"

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	svc      CatalogService
	log      *logrus.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(svc CatalogService, logger *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:      svc,
		log:      logger,
		validate: validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // no body for 204
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// respondWithServiceError maps the core error taxonomy onto HTTP status codes.
// Unclassified errors are logged and hidden behind fallback.
func (h *HTTPHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case catalog.IsNotFound(err):
		h.respondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error(fallback)
		h.respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, input interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request, param, resource string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid "+resource+" ID format")
		return 0, false
	}
	return id, true
}

// PaginationInfo describes one page of a listing.
type PaginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// --- Category Handlers ---

// CategoryCreateInput defines the expected input for creating a category.
type CategoryCreateInput struct {
	Name        string  `json:"name" validate:"required,max=100"` // Max length from DB schema
	Description *string `json:"description" validate:"omitempty"`
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	created, err := h.svc.CreateCategory(r.Context(), &domain.Category{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to create category")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10 // Default limit
	}
	if limit > 100 { // Max limit
		limit = 100
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1 // Default page
	}

	categories, totalCount, err := h.svc.ListCategories(r.Context(), store.ListCategoriesParams{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve categories")
		return
	}

	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	h.respondWithJSON(w, http.StatusOK, struct {
		Data       []domain.Category `json:"data"`
		Pagination PaginationInfo    `json:"pagination"`
	}{
		Data: categories,
		Pagination: PaginationInfo{
			Page:       page,
			Limit:      limit,
			TotalItems: totalCount,
			TotalPages: totalPages,
		},
	})
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.pathID(w, r, "categoryId", "category")
	if !ok {
		return
	}
	category, err := h.svc.GetCategory(r.Context(), categoryID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, category)
}

// CategoryUpdateInput defines the expected input for replacing a category.
type CategoryUpdateInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty"`
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.pathID(w, r, "categoryId", "category")
	if !ok {
		return
	}
	var input CategoryUpdateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	updated, err := h.svc.UpdateCategory(r.Context(), &domain.Category{
		ID:          categoryID,
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// CategoryPatchInput lists the fields a partial update may change.
type CategoryPatchInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
}

func (h *HTTPHandler) PatchCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.pathID(w, r, "categoryId", "category")
	if !ok {
		return
	}
	var input CategoryPatchInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	updated, err := h.svc.PatchCategory(r.Context(), categoryID, catalog.CategoryPatch{
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.pathID(w, r, "categoryId", "category")
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), categoryID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete category")
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.pathID(w, r, "categoryId", "category")
	if !ok {
		return
	}
	products, err := h.svc.ProductsByCategory(r.Context(), categoryID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve category products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, nonNil(products))
}

// --- Product Handlers ---

// ProductCreateInput defines the expected input for creating or replacing a product.
type ProductCreateInput struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description *string          `json:"description" validate:"omitempty"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int64           `json:"stock" validate:"required,gte=0"`
	CategoryID  int64            `json:"category_id" validate:"required,gt=0"`
}

func (in ProductCreateInput) product(id int64) *domain.Product {
	return &domain.Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       *in.Price,
		Stock:       *in.Stock,
		CategoryID:  in.CategoryID,
	}
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), input.product(0))
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to create product")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

// ListProducts filters by search and category without paging.
func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	criteria, err := catalog.ParseListCriteria(r.URL.Query())
	if err != nil {
		h.respondWithServiceError(w, r, err, "Invalid product filters")
		return
	}
	products, err := h.svc.ListProducts(r.Context(), criteria)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, nonNil(products))
}

func (h *HTTPHandler) AdvancedSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria, err := catalog.ParseSearchCriteria(q)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Invalid search filters")
		return
	}
	paging, err := catalog.ParsePaging(q)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Invalid paging")
		return
	}
	page, err := h.svc.AdvancedSearch(r.Context(), criteria, paging)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to search products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := catalog.ParseThreshold(r.URL.Query(), "threshold")
	if err != nil {
		h.respondWithServiceError(w, r, err, "Invalid threshold")
		return
	}
	products, err := h.svc.LowStock(r.Context(), threshold)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve low stock products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, nonNil(products))
}

func (h *HTTPHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Analytics(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err, "Error generating analytics")
		return
	}
	h.respondWithJSON(w, http.StatusOK, snap)
}

// BulkUpdateStock expects [{"id": 1, "stock": 10}, ...] and answers with the
// updated products in request order.
func (h *HTTPHandler) BulkUpdateStock(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var updates []catalog.StockUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	res, err := h.svc.BulkUpdateStock(r.Context(), updates)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update stock")
		return
	}
	w.Header().Set(BatchIDHeader, res.BatchID)
	h.respondWithJSON(w, http.StatusOK, res.Products)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId", "product")
	if !ok {
		return
	}
	product, err := h.svc.GetProduct(r.Context(), productID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId", "product")
	if !ok {
		return
	}
	var input ProductCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	updated, err := h.svc.UpdateProduct(r.Context(), input.product(productID))
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// ProductPatchInput lists the fields a partial update may change.
type ProductPatchInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int64           `json:"stock" validate:"omitempty,gte=0"`
	CategoryID  *int64           `json:"category_id" validate:"omitempty,gt=0"`
}

func (h *HTTPHandler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId", "product")
	if !ok {
		return
	}
	var input ProductPatchInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	updated, err := h.svc.PatchProduct(r.Context(), productID, catalog.ProductPatch{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		CategoryID:  input.CategoryID,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId", "product")
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), productID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete product")
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}

func nonNil(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory)
		r.Get("/", h.ListCategories)
		r.Route("/{categoryId}", func(r chi.Router) {
			r.Get("/", h.GetCategoryByID)
			r.Put("/", h.UpdateCategory)
			r.Patch("/", h.PatchCategory)
			r.Delete("/", h.DeleteCategory)
			r.Get("/products", h.ListCategoryProducts)
		})
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		// static paths must stay ahead of {productId}
		r.Get("/advanced-search", h.AdvancedSearch)
		r.Post("/bulk-update", h.BulkUpdateStock)
		r.Get("/low-stock", h.LowStock)
		r.Get("/analytics", h.Analytics)

		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Patch("/", h.PatchProduct)
			r.Delete("/", h.DeleteProduct)
		})
	})
}
