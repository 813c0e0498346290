package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/inventory"
	"github.com/saharat-dev/coffee-shop-backend/internal/order"
	"github.com/saharat-dev/coffee-shop-backend/internal/product"
	"github.com/saharat-dev/coffee-shop-backend/internal/user"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = "failed validation rule '" + fieldErr.Tag() + "'"
	}
	return details
}

// respondValidationError writes either the per-field detail map or a generic
// 500 when the error is not a validator.ValidationErrors.
func respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}

	log.Error().Err(err).Msg("handler: unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

// mapOrderError classifies order-flow failures: business-rule violations keep
// their specific message and a 4xx, everything else degrades to a generic 500.
func mapOrderError(err error) (int, string) {
	var (
		stockErr    *inventory.InsufficientStockError
		notFoundErr *inventory.ProductNotFoundError
		priceErr    *order.PriceMismatchError
	)

	switch {
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusBadRequest, notFoundErr.Error()
	case errors.As(err, &priceErr):
		return http.StatusBadRequest, priceErr.Error()
	case errors.Is(err, order.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, order.ErrUnknownStatus):
		return http.StatusBadRequest, "Invalid status. Must be one of: pending, approved, completed, cancelled."
	case errors.Is(err, order.ErrInvalidStatusTransition):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

func mapProductError(err error) (int, string) {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		return http.StatusNotFound, "Product not found."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

func mapUserError(err error) (int, string) {
	switch {
	case errors.Is(err, user.ErrUsernameExists):
		return http.StatusConflict, "Username already exists."
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password."
	case errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, "User not found."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}
