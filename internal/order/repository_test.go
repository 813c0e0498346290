package order_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saharat-dev/coffee-shop-backend/internal/inventory"
	"github.com/saharat-dev/coffee-shop-backend/internal/order"
)

var testDB *pgxpool.Pool

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'customer',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(100) NOT NULL DEFAULT '',
		base_price NUMERIC(10,2) NOT NULL CHECK (base_price >= 0),
		image_url TEXT,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT REFERENCES users (id),
		customer_name VARCHAR(255),
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		total_price NUMERIC(10,2) NOT NULL CHECK (total_price >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products (id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price_per_unit NUMERIC(10,2) NOT NULL,
		sub_total NUMERIC(10,2) NOT NULL,
		options_json JSONB NOT NULL DEFAULT '[]'
	)`,
}

func TestMain(m *testing.M) {
	host := envOr("DB_HOST_TEST", "localhost")
	port := envOr("DB_PORT_TEST", "5432")
	dbUser := envOr("DB_USER_TEST", "postgres")
	password := envOr("DB_PASSWORD_TEST", "123456")
	dbName := envOr("DB_NAME_TEST", "coffee_shop_test")
	sslMode := envOr("DB_SSLMODE_TEST", "disable")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, dbUser, password, dbName, sslMode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		log.Printf("skipping repository tests, database not available: %v", err)
	} else {
		testDB = pool
		for _, ddl := range testSchema {
			if _, err := testDB.Exec(ctx, ddl); err != nil {
				log.Fatalf("failed to prepare test schema: %v", err)
			}
		}
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupRepo(t *testing.T) order.Repository {
	if testDB == nil {
		t.Skip("test database not available")
	}

	truncate := func() {
		_, err := testDB.Exec(context.Background(),
			"TRUNCATE TABLE order_items, orders, products, users RESTART IDENTITY CASCADE")
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(truncate)

	return order.NewRepository(testDB, inventory.NewLedger())
}

func seedProduct(t *testing.T, name string, basePrice float64, stock int) int64 {
	var id int64
	err := testDB.QueryRow(context.Background(),
		"INSERT INTO products (name, category, base_price, stock) VALUES ($1, 'Coffee', $2, $3) RETURNING id",
		name, basePrice, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

func productStock(t *testing.T, id int64) int {
	var stock int
	err := testDB.QueryRow(context.Background(), "SELECT stock FROM products WHERE id = $1", id).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func orderCount(t *testing.T) int {
	var count int
	err := testDB.QueryRow(context.Background(), "SELECT COUNT(*) FROM orders").Scan(&count)
	require.NoError(t, err)
	return count
}

func guestInput(lines ...order.CartLine) order.PlaceOrderInput {
	guestName := "Walk-in Guest"
	return order.PlaceOrderInput{GuestName: &guestName, Lines: lines}
}

func TestRepository_PlaceOrder_Success(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	productID := seedProduct(t, "Latte", 50, 5)

	created, err := repo.PlaceOrder(ctx, guestInput(order.CartLine{
		ProductID:       productID,
		Quantity:        2,
		SelectedOptions: []order.Option{{Name: "Extra Shot", Price: 15, Group: "Topping"}},
		BasePrice:       50,
		TotalPrice:      130,
	}))
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, created.Status)
	assert.InDelta(t, 130.0, created.TotalPrice, 1e-9)
	require.Len(t, created.Items, 1)
	assert.InDelta(t, 65.0, created.Items[0].PricePerUnit, 1e-9)
	assert.InDelta(t, 130.0, created.Items[0].SubTotal, 1e-9)

	assert.Equal(t, 3, productStock(t, productID))

	// Round trip through the read path, options included.
	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, "Latte", fetched.Items[0].ProductName)
	require.Len(t, fetched.Items[0].SelectedOptions, 1)
	assert.Equal(t, "Extra Shot", fetched.Items[0].SelectedOptions[0].Name)
	assert.InDelta(t, 15.0, fetched.Items[0].SelectedOptions[0].Price, 1e-9)
	if assert.NotNil(t, fetched.CustomerName) {
		assert.Equal(t, "Walk-in Guest", *fetched.CustomerName)
	}
}

func TestRepository_PlaceOrder_InsufficientStock_NoPartialDecrement(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	okID := seedProduct(t, "Americano", 40, 10)
	lowID := seedProduct(t, "Mocha", 60, 1)

	_, err := repo.PlaceOrder(ctx, guestInput(
		order.CartLine{ProductID: okID, Quantity: 2, TotalPrice: 80},
		order.CartLine{ProductID: lowID, Quantity: 5, TotalPrice: 300},
	))
	require.Error(t, err)

	var stockErr *inventory.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, lowID, stockErr.ProductID)
	assert.Equal(t, "Mocha", stockErr.Name)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)

	// The whole transaction rolled back: both stocks untouched, no rows.
	assert.Equal(t, 10, productStock(t, okID))
	assert.Equal(t, 1, productStock(t, lowID))
	assert.Equal(t, 0, orderCount(t))
}

func TestRepository_PlaceOrder_ProductNotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.PlaceOrder(context.Background(), guestInput(
		order.CartLine{ProductID: 9999, Quantity: 1, TotalPrice: 50},
	))
	require.Error(t, err)

	var notFound *inventory.ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(9999), notFound.ProductID)
	assert.Equal(t, 0, orderCount(t))
}

func TestRepository_PlaceOrder_PriceMismatch(t *testing.T) {
	repo := setupRepo(t)

	productID := seedProduct(t, "Latte", 50, 5)

	// Client claims a stale price; the catalog says 50/unit.
	_, err := repo.PlaceOrder(context.Background(), guestInput(
		order.CartLine{ProductID: productID, Quantity: 2, BasePrice: 45, TotalPrice: 90},
	))
	require.Error(t, err)

	var mismatch *order.PriceMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, productID, mismatch.ProductID)

	assert.Equal(t, 5, productStock(t, productID))
	assert.Equal(t, 0, orderCount(t))
}

func TestRepository_PlaceOrder_ConcurrentOversell(t *testing.T) {
	repo := setupRepo(t)

	productID := seedProduct(t, "Single Origin Drip", 50, 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.PlaceOrder(context.Background(), guestInput(
				order.CartLine{ProductID: productID, Quantity: 1, TotalPrice: 50},
			))
		}(i)
	}
	wg.Wait()

	successes := 0
	stockFailures := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var stockErr *inventory.InsufficientStockError
		if errors.As(err, &stockErr) {
			stockFailures++
		}
	}

	assert.Equal(t, 1, successes, "exactly one checkout may win the last unit")
	assert.Equal(t, 1, stockFailures, "the loser must fail with insufficient stock")
	assert.Equal(t, 0, productStock(t, productID), "stock ends at zero, never negative")
	assert.Equal(t, 1, orderCount(t))
}

func TestRepository_UpdateStatus_NotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.UpdateStatus(context.Background(), 12345, order.StatusCancelled, false)
	assert.True(t, errors.Is(err, order.ErrOrderNotFound))
}

func TestRepository_UpdateStatus_CancelKeepsOrderFactsFrozen(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	productID := seedProduct(t, "Latte", 50, 5)
	created, err := repo.PlaceOrder(ctx, guestInput(
		order.CartLine{ProductID: productID, Quantity: 2, TotalPrice: 100},
	))
	require.NoError(t, err)
	require.Equal(t, 3, productStock(t, productID))

	updated, err := repo.UpdateStatus(ctx, created.ID, order.StatusCancelled, false)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, updated.Status)
	assert.InDelta(t, 100.0, updated.TotalPrice, 1e-9)
	require.Len(t, updated.Items, 1)

	// Without the restock policy, cancellation does not return stock.
	assert.Equal(t, 3, productStock(t, productID))
}

func TestRepository_UpdateStatus_RestockOnCancel(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	productID := seedProduct(t, "Latte", 50, 5)
	created, err := repo.PlaceOrder(ctx, guestInput(
		order.CartLine{ProductID: productID, Quantity: 2, TotalPrice: 100},
	))
	require.NoError(t, err)
	require.Equal(t, 3, productStock(t, productID))

	updated, err := repo.UpdateStatus(ctx, created.ID, order.StatusCancelled, true)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, updated.Status)
	assert.Equal(t, 5, productStock(t, productID))
}

func TestRepository_GetByUserID_NewestFirst(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var userID int64
	err := testDB.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ('somchai', 'x') RETURNING id").Scan(&userID)
	require.NoError(t, err)

	productID := seedProduct(t, "Latte", 50, 10)

	first, err := repo.PlaceOrder(ctx, order.PlaceOrderInput{
		UserID: &userID,
		Lines:  []order.CartLine{{ProductID: productID, Quantity: 1, TotalPrice: 50}},
	})
	require.NoError(t, err)

	// Separate the created_at values so the ordering is deterministic.
	_, err = testDB.Exec(ctx, "UPDATE orders SET created_at = created_at - interval '1 hour' WHERE id = $1", first.ID)
	require.NoError(t, err)

	second, err := repo.PlaceOrder(ctx, order.PlaceOrderInput{
		UserID: &userID,
		Lines:  []order.CartLine{{ProductID: productID, Quantity: 2, TotalPrice: 100}},
	})
	require.NoError(t, err)

	orders, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "Latte", orders[0].Items[0].ProductName)
}

func TestRepository_GetAll_DisplayName(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var userID int64
	err := testDB.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ('somchai', 'x') RETURNING id").Scan(&userID)
	require.NoError(t, err)

	productID := seedProduct(t, "Latte", 50, 10)

	_, err = repo.PlaceOrder(ctx, order.PlaceOrderInput{
		UserID: &userID,
		Lines:  []order.CartLine{{ProductID: productID, Quantity: 1, TotalPrice: 50}},
	})
	require.NoError(t, err)

	guestName := "Nok"
	_, err = repo.PlaceOrder(ctx, order.PlaceOrderInput{
		GuestName: &guestName,
		Lines:     []order.CartLine{{ProductID: productID, Quantity: 1, TotalPrice: 50}},
	})
	require.NoError(t, err)

	// An order with neither owner nor guest name falls back to "Guest".
	_, err = testDB.Exec(ctx,
		"INSERT INTO orders (user_id, customer_name, status, total_price) VALUES (NULL, NULL, 'pending', 0)")
	require.NoError(t, err)

	orders, _, err := repo.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, orders, 3)

	names := make(map[string]bool, 3)
	for _, o := range orders {
		names[o.DisplayName] = true
	}
	assert.True(t, names["somchai"])
	assert.True(t, names["Nok"])
	assert.True(t, names["Guest"])
}
