package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/auth"
	"github.com/saharat-dev/coffee-shop-backend/internal/pagination"
	"github.com/saharat-dev/coffee-shop-backend/internal/product"
)

type ProductHandler struct {
	svc      product.Service
	validate *validator.Validate
}

func NewProductHandler(svc product.Service) *ProductHandler {
	return &ProductHandler{svc: svc, validate: validator.New()}
}

type createProductRequest struct {
	Name      string  `json:"name" validate:"required,max=255"`
	Category  string  `json:"category" validate:"required,max=100"`
	BasePrice float64 `json:"base_price" validate:"gte=0"`
	ImageURL  *string `json:"image_url"`
	Stock     int     `json:"stock" validate:"gte=0"`
}

type updateProductRequest struct {
	Name      *string  `json:"name" validate:"omitempty,max=255"`
	Category  *string  `json:"category" validate:"omitempty,max=100"`
	BasePrice *float64 `json:"base_price" validate:"omitempty,gte=0"`
	ImageURL  *string  `json:"image_url"`
	Stock     *int     `json:"stock" validate:"omitempty,gte=0"`
	IsActive  *bool    `json:"is_active"`
}

// List serves the catalog. Inactive products appear only for admins who ask
// for them.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := product.ListOptions{
		Category: r.URL.Query().Get("category"),
		Page:     pagination.Parse(r.URL.Query()),
	}

	if r.URL.Query().Get("include_inactive") == "true" {
		identity, ok := auth.FromContext(r.Context())
		opts.IncludeInactive = ok && identity.Role == auth.RoleAdmin
	}

	products, meta, err := h.svc.List(r.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to list products")
		respondWithError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	payload := map[string]any{"products": products}
	if meta != nil {
		payload["meta"] = meta
	}
	respondWithJSON(w, http.StatusOK, payload)
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id.")
		return
	}

	p, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		code, message := mapProductError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Int64("product_id", id).Msg("handler: failed to fetch product")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	created, err := h.svc.Create(r.Context(), &product.Product{
		Name:      req.Name,
		Category:  req.Category,
		BasePrice: req.BasePrice,
		ImageURL:  req.ImageURL,
		Stock:     req.Stock,
	})
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to create product")
		respondWithError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{"product": created})
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id.")
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	input := product.UpdateInput{
		Name:      req.Name,
		Category:  req.Category,
		BasePrice: req.BasePrice,
		Stock:     req.Stock,
		IsActive:  req.IsActive,
	}
	// An empty image_url clears the image; omitting the field keeps it.
	if req.ImageURL != nil {
		input.ImageSet = true
		if *req.ImageURL != "" {
			input.ImageURL = req.ImageURL
		}
	}

	updated, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		code, message := mapProductError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Int64("product_id", id).Msg("handler: failed to update product")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"product": updated})
}

// Delete deactivates a product; ?hard=true removes the row outright.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product id.")
		return
	}

	hard := r.URL.Query().Get("hard") == "true"

	if err := h.svc.Delete(r.Context(), id, hard); err != nil {
		code, message := mapProductError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Int64("product_id", id).Msg("handler: failed to delete product")
		}
		respondWithError(w, code, message)
		return
	}

	message := "Product deactivated."
	if hard {
		message = "Product permanently deleted."
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}
