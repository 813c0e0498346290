// Package stats serves the admin dashboard aggregates. Read-only rollups over
// orders and line items; cancelled orders never count.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Dashboard struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalOrders  int     `json:"totalOrders"`
	PopularMenu  string  `json:"popularMenu"`
}

type Repository interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{PopularMenu: "-"}

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price), 0)
		FROM orders
		WHERE status IN ('approved', 'completed')
	`).Scan(&d.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to sum revenue: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE status <> 'cancelled'
	`).Scan(&d.TotalOrders)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	var bestSeller string
	err = r.db.QueryRow(ctx, `
		SELECT p.name
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		JOIN orders o ON oi.order_id = o.id
		WHERE o.status <> 'cancelled'
		GROUP BY p.id, p.name
		ORDER BY SUM(oi.quantity) DESC
		LIMIT 1
	`).Scan(&bestSeller)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repository: failed to find best seller: %w", err)
	}
	if bestSeller != "" {
		d.PopularMenu = bestSeller
	}

	return d, nil
}

type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d, err := s.repo.Dashboard(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to build dashboard stats")
		return nil, fmt.Errorf("service: failed to build dashboard stats: %w", err)
	}

	return d, nil
}
