package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/pagination"
)

// UpdateInput carries a partial catalog edit; nil fields keep current values.
type UpdateInput struct {
	Name      *string
	Category  *string
	BasePrice *float64
	ImageURL  *string
	ImageSet  bool
	Stock     *int
	IsActive  *bool
}

type Service interface {
	List(ctx context.Context, opts ListOptions) ([]Product, *pagination.Meta, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) (*Product, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*Product, error)
	Delete(ctx context.Context, id int64, hard bool) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]Product, *pagination.Meta, error) {
	products, total, err := s.repo.List(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, nil, fmt.Errorf("service: failed to list products: %w", err)
	}

	if opts.Page == nil {
		return products, nil, nil
	}

	meta := pagination.BuildMeta(total, *opts.Page)
	return products, &meta, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}

	return p, nil
}

func (s *service) Create(ctx context.Context, p *Product) (*Product, error) {
	if p.Name == "" {
		return nil, errors.New("service: product name is required")
	}
	if p.BasePrice < 0 {
		return nil, errors.New("service: product base price cannot be negative")
	}
	if p.Stock < 0 {
		return nil, errors.New("service: product stock cannot be negative")
	}

	if err := s.repo.Create(ctx, p); err != nil {
		log.Error().Err(err).Str("name", p.Name).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Int64("product_id", p.ID).Str("name", p.Name).Msg("service: product created")
	return p, nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateInput) (*Product, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to fetch product for update")
		return nil, fmt.Errorf("service: failed to fetch product for update: %w", err)
	}

	if input.Name != nil {
		current.Name = *input.Name
	}
	if input.Category != nil {
		current.Category = *input.Category
	}
	if input.BasePrice != nil {
		if *input.BasePrice < 0 {
			return nil, errors.New("service: product base price cannot be negative")
		}
		current.BasePrice = *input.BasePrice
	}
	if input.ImageSet {
		current.ImageURL = input.ImageURL
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, errors.New("service: product stock cannot be negative")
		}
		current.Stock = *input.Stock
	}
	if input.IsActive != nil {
		current.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, current); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}

	return current, nil
}

func (s *service) Delete(ctx context.Context, id int64, hard bool) error {
	var err error
	if hard {
		err = s.repo.Delete(ctx, id)
	} else {
		err = s.repo.Deactivate(ctx, id)
	}
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Bool("hard", hard).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Int64("product_id", id).Bool("hard", hard).Msg("service: product deleted")
	return nil
}
