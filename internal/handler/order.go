package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/auth"
	"github.com/saharat-dev/coffee-shop-backend/internal/order"
	"github.com/saharat-dev/coffee-shop-backend/internal/pagination"
)

type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc, validate: validator.New()}
}

type orderOptionPayload struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
	Group string  `json:"group"`
}

type orderItemPayload struct {
	ID              int64               `json:"id" validate:"required,gt=0"`
	Quantity        int                 `json:"quantity" validate:"required,min=1"`
	SelectedOptions []orderOptionPayload `json:"selectedOptions" validate:"dive"`
	BasePrice       float64             `json:"base_price" validate:"gte=0"`
	TotalPrice      float64             `json:"totalPrice" validate:"gte=0"`
}

type createOrderRequest struct {
	Items        []orderItemPayload `json:"items" validate:"required,min=1,dive"`
	CustomerName string             `json:"customerName" validate:"omitempty,max=255"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrder handles checkout. An authenticated caller owns the order; an
// anonymous caller goes through the guest flow.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lines := make([]order.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		options := make([]order.Option, 0, len(item.SelectedOptions))
		for _, opt := range item.SelectedOptions {
			options = append(options, order.Option{Name: opt.Name, Price: opt.Price, Group: opt.Group})
		}
		lines = append(lines, order.CartLine{
			ProductID:       item.ID,
			Quantity:        item.Quantity,
			SelectedOptions: options,
			BasePrice:       item.BasePrice,
			TotalPrice:      item.TotalPrice,
		})
	}

	var userID *int64
	if identity, ok := auth.FromContext(r.Context()); ok {
		userID = &identity.UserID
	}

	created, err := h.svc.PlaceOrder(r.Context(), userID, req.CustomerName, lines)
	if err != nil {
		code, message := mapOrderError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Msg("handler: order placement failed")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusCreated, order.Receipt{
		ID:         created.ID,
		TotalPrice: created.TotalPrice,
		Status:     created.Status,
	})
}

// GetMyOrders returns the caller's order history, newest first.
func (h *OrderHandler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}

	orders, err := h.svc.GetOrdersByUserID(r.Context(), identity.UserID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", identity.UserID).Msg("handler: failed to fetch user orders")
		respondWithError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// GetAllOrders is the admin listing with resolved display names and optional
// pagination.
func (h *OrderHandler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.Parse(r.URL.Query())

	orders, meta, err := h.svc.GetAllOrders(r.Context(), page)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to fetch orders")
		respondWithError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	payload := map[string]any{"orders": orders}
	if meta != nil {
		payload["meta"] = meta
	}
	respondWithJSON(w, http.StatusOK, payload)
}

// UpdateStatus moves an order through the fulfillment state machine.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id.")
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		code, message := mapOrderError(err)
		respondWithError(w, code, message)
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		code, message := mapOrderError(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Int64("order_id", orderID).Msg("handler: failed to update order status")
		}
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"order": updated})
}
