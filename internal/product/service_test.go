package product_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saharat-dev/coffee-shop-backend/internal/pagination"
	"github.com/saharat-dev/coffee-shop-backend/internal/product"
)

type mockRepository struct {
	listFunc       func(ctx context.Context, opts product.ListOptions) ([]product.Product, int, error)
	getByIDFunc    func(ctx context.Context, id int64) (*product.Product, error)
	createFunc     func(ctx context.Context, p *product.Product) error
	updateFunc     func(ctx context.Context, p *product.Product) error
	deactivateFunc func(ctx context.Context, id int64) error
	deleteFunc     func(ctx context.Context, id int64) error
}

func (m *mockRepository) List(ctx context.Context, opts product.ListOptions) ([]product.Product, int, error) {
	return m.listFunc(ctx, opts)
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) Create(ctx context.Context, p *product.Product) error {
	return m.createFunc(ctx, p)
}

func (m *mockRepository) Update(ctx context.Context, p *product.Product) error {
	return m.updateFunc(ctx, p)
}

func (m *mockRepository) Deactivate(ctx context.Context, id int64) error {
	return m.deactivateFunc(ctx, id)
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

func latte(stock int) *product.Product {
	image := "https://cdn.example.com/latte.png"
	return &product.Product{
		ID:        1,
		Name:      "Latte",
		Category:  "Coffee",
		BasePrice: 50,
		ImageURL:  &image,
		Stock:     stock,
		IsActive:  true,
	}
}

func TestService_List_PaginationMeta(t *testing.T) {
	repo := &mockRepository{
		listFunc: func(ctx context.Context, opts product.ListOptions) ([]product.Product, int, error) {
			return []product.Product{*latte(5)}, 35, nil
		},
	}
	svc := product.NewService(repo)

	t.Run("unpaged list has no meta", func(t *testing.T) {
		products, meta, err := svc.List(context.Background(), product.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, products, 1)
		assert.Nil(t, meta)
	})

	t.Run("paged list carries meta", func(t *testing.T) {
		opts := product.ListOptions{Page: &pagination.Params{Page: 2, Limit: 10, Offset: 10}}
		_, meta, err := svc.List(context.Background(), opts)
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, 35, meta.Total)
		assert.Equal(t, 4, meta.TotalPages)
	})
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		product product.Product
	}{
		{name: "missing name", product: product.Product{BasePrice: 50}},
		{name: "negative price", product: product.Product{Name: "Latte", BasePrice: -1}},
		{name: "negative stock", product: product.Product{Name: "Latte", BasePrice: 50, Stock: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &mockRepository{
				createFunc: func(ctx context.Context, p *product.Product) error {
					called = true
					return nil
				},
			}
			svc := product.NewService(repo)

			_, err := svc.Create(context.Background(), &tt.product)
			assert.Error(t, err)
			assert.False(t, called)
		})
	}
}

func TestService_Update_PartialMerge(t *testing.T) {
	var saved *product.Product
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id int64) (*product.Product, error) {
			return latte(5), nil
		},
		updateFunc: func(ctx context.Context, p *product.Product) error {
			saved = p
			return nil
		},
	}
	svc := product.NewService(repo)

	newPrice := 55.0
	updated, err := svc.Update(context.Background(), 1, product.UpdateInput{BasePrice: &newPrice})
	require.NoError(t, err)

	// Only the price moved; everything else kept its current value.
	assert.InDelta(t, 55.0, updated.BasePrice, 1e-9)
	assert.Equal(t, "Latte", updated.Name)
	assert.Equal(t, 5, updated.Stock)
	require.NotNil(t, updated.ImageURL)
	assert.Equal(t, saved, updated)
}

func TestService_Update_ImageSemantics(t *testing.T) {
	t.Run("omitted image keeps current", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id int64) (*product.Product, error) { return latte(5), nil },
			updateFunc:  func(ctx context.Context, p *product.Product) error { return nil },
		}
		svc := product.NewService(repo)

		updated, err := svc.Update(context.Background(), 1, product.UpdateInput{})
		require.NoError(t, err)
		assert.NotNil(t, updated.ImageURL)
	})

	t.Run("explicit clear removes image", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id int64) (*product.Product, error) { return latte(5), nil },
			updateFunc:  func(ctx context.Context, p *product.Product) error { return nil },
		}
		svc := product.NewService(repo)

		updated, err := svc.Update(context.Background(), 1, product.UpdateInput{ImageSet: true, ImageURL: nil})
		require.NoError(t, err)
		assert.Nil(t, updated.ImageURL)
	})
}

func TestService_Update_NotFound(t *testing.T) {
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id int64) (*product.Product, error) {
			return nil, product.ErrProductNotFound
		},
	}
	svc := product.NewService(repo)

	_, err := svc.Update(context.Background(), 99, product.UpdateInput{})
	assert.True(t, errors.Is(err, product.ErrProductNotFound))
}

func TestService_Delete_Dispatch(t *testing.T) {
	var deactivated, deleted bool
	repo := &mockRepository{
		deactivateFunc: func(ctx context.Context, id int64) error {
			deactivated = true
			return nil
		},
		deleteFunc: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}
	svc := product.NewService(repo)

	require.NoError(t, svc.Delete(context.Background(), 1, false))
	assert.True(t, deactivated)
	assert.False(t, deleted)

	deactivated, deleted = false, false
	require.NoError(t, svc.Delete(context.Background(), 1, true))
	assert.True(t, deleted)
	assert.False(t, deactivated)
}
