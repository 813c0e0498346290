package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/pagination"
)

const defaultGuestName = "Walk-in Guest"

var (
	// ErrValidation marks malformed checkout payloads; handlers map it to 400.
	ErrValidation              = errors.New("invalid order payload")
	ErrUnknownStatus           = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// allowedTransitions is the status graph. pending fans out to approved or
// cancelled, approved can complete or still be cancelled by staff, and the two
// terminal states admit nothing.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusCancelled: true,
	},
	StatusApproved: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

type Service interface {
	// PlaceOrder validates the cart, resolves the orderer identity, and runs
	// the checkout transaction. userID == nil means guest checkout; then
	// customerName (or a default) labels the order. For an authenticated
	// caller customerName is ignored.
	PlaceOrder(ctx context.Context, userID *int64, customerName string, lines []CartLine) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]Order, error)
	GetAllOrders(ctx context.Context, page *pagination.Params) ([]Order, *pagination.Meta, error)
	UpdateStatus(ctx context.Context, orderID int64, newStatus Status) (*Order, error)
}

type service struct {
	repo            Repository
	restockOnCancel bool
}

func NewService(repo Repository, restockOnCancel bool) Service {
	return &service{repo: repo, restockOnCancel: restockOnCancel}
}

func (s *service) PlaceOrder(ctx context.Context, userID *int64, customerName string, lines []CartLine) (*Order, error) {
	if len(lines) == 0 {
		log.Warn().Msg("service: attempt to place order with empty cart")
		return nil, fmt.Errorf("%w: cart must contain at least 1 item", ErrValidation)
	}

	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, fmt.Errorf("%w: product id is required on every item", ErrValidation)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %d must be at least 1", ErrValidation, line.ProductID)
		}
		for _, opt := range line.SelectedOptions {
			if opt.Price < 0 {
				return nil, fmt.Errorf("%w: option price for product %d cannot be negative", ErrValidation, line.ProductID)
			}
		}
	}

	input := PlaceOrderInput{UserID: userID, Lines: lines}
	if userID == nil {
		guestName := customerName
		if guestName == "" {
			guestName = defaultGuestName
		}
		input.GuestName = &guestName
	}

	created, err := s.repo.PlaceOrder(ctx, input)
	if err != nil {
		log.Warn().Err(err).Msg("service: order placement failed")
		return nil, err
	}

	logEvent := log.Info().Int64("order_id", created.ID).Float64("total_price", created.TotalPrice)
	if userID != nil {
		logEvent = logEvent.Int64("user_id", *userID)
	}
	logEvent.Msg("service: order placed")

	return created, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) GetAllOrders(ctx context.Context, page *pagination.Params) ([]Order, *pagination.Meta, error) {
	orders, total, err := s.repo.GetAll(ctx, page)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch orders")
		return nil, nil, fmt.Errorf("service: failed to fetch orders: %w", err)
	}

	if page == nil {
		return orders, nil, nil
	}

	meta := pagination.BuildMeta(total, *page)
	return orders, &meta, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID int64, newStatus Status) (*Order, error) {
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Int64("order_id", orderID).Str("new_status", newStatus.String()).Msg("service: order not found for status update")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to get order for status update")
		return nil, fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == newStatus {
		log.Info().Int64("order_id", orderID).Str("status", newStatus.String()).Msg("service: order already in requested status")
		return current, nil
	}

	if !allowedTransitions[current.Status][newStatus] {
		log.Warn().
			Int64("order_id", orderID).
			Str("current_status", current.Status.String()).
			Str("new_status", newStatus.String()).
			Msg("service: rejected status transition")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	restock := s.restockOnCancel && newStatus == StatusCancelled

	updated, err := s.repo.UpdateStatus(ctx, orderID, newStatus, restock)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Str("new_status", newStatus.String()).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Int64("order_id", orderID).
		Str("old_status", current.Status.String()).
		Str("new_status", newStatus.String()).
		Bool("restocked", restock).
		Msg("service: order status updated")

	return updated, nil
}
