package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/saharat-dev/coffee-shop-backend/internal/inventory"
	"github.com/saharat-dev/coffee-shop-backend/internal/pagination"
)

var ErrOrderNotFound = errors.New("order not found")

// PlaceOrderInput is a validated checkout: owner identity already resolved by
// the service (user id XOR guest name) and every line with quantity >= 1.
type PlaceOrderInput struct {
	UserID    *int64
	GuestName *string
	Lines     []CartLine
}

type Repository interface {
	// PlaceOrder runs the whole checkout transaction: reserve stock per line,
	// price authoritatively, insert the order header and its line items, and
	// commit. On any failure nothing is persisted and no stock is decremented.
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]Order, error)
	GetAll(ctx context.Context, page *pagination.Params) ([]Order, int, error)
	// UpdateStatus persists a status transition and, when restock is set and
	// the order moves into cancelled, returns the line quantities to stock in
	// the same transaction.
	UpdateStatus(ctx context.Context, id int64, status Status, restock bool) (*Order, error)
}

type postgresRepository struct {
	db     *pgxpool.Pool
	ledger inventory.Ledger
}

func NewRepository(db *pgxpool.Pool, ledger inventory.Ledger) Repository {
	return &postgresRepository{db: db, ledger: ledger}
}

func (r *postgresRepository) PlaceOrder(ctx context.Context, input PlaceOrderInput) (created *Order, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback after panic in PlaceOrder")
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback PlaceOrder transaction")
			}
			created = nil
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Msg("repository: failed to commit PlaceOrder transaction")
			err = fmt.Errorf("repository: failed to commit order: %w", commitErr)
			created = nil
		}
	}()

	// Reserve and price every line first. Reservations hold the product row
	// locks until commit or rollback, so a competing checkout for the same
	// product waits here rather than reading stale stock.
	type pricedLine struct {
		line     CartLine
		subTotal float64
	}

	total := 0.0
	priced := make([]pricedLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		snapshot, reserveErr := r.ledger.Reserve(ctx, tx, line.ProductID, line.Quantity)
		if reserveErr != nil {
			err = reserveErr
			return nil, err
		}

		subTotal := LineTotal(snapshot.BasePrice, line.SelectedOptions, line.Quantity)
		if checkErr := checkSubmittedTotal(line.ProductID, line.TotalPrice, subTotal); checkErr != nil {
			err = checkErr
			return nil, err
		}

		total += subTotal
		priced = append(priced, pricedLine{line: line, subTotal: subTotal})
	}

	ord := &Order{
		UserID:       input.UserID,
		CustomerName: input.GuestName,
		Status:       StatusPending,
		TotalPrice:   total,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, customer_name, status, total_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, input.UserID, input.GuestName, string(StatusPending), total).
		Scan(&ord.ID, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		err = fmt.Errorf("repository: failed to insert order: %w", err)
		return nil, err
	}

	ord.Items = make([]Item, 0, len(priced))
	for _, pl := range priced {
		optionsJSON, marshalErr := json.Marshal(pl.line.SelectedOptions)
		if marshalErr != nil {
			err = fmt.Errorf("repository: failed to serialize options for product %d: %w", pl.line.ProductID, marshalErr)
			return nil, err
		}

		item := Item{
			OrderID:         ord.ID,
			ProductID:       pl.line.ProductID,
			Quantity:        pl.line.Quantity,
			PricePerUnit:    PricePerUnit(pl.subTotal, pl.line.Quantity),
			SubTotal:        pl.subTotal,
			SelectedOptions: pl.line.SelectedOptions,
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_per_unit, sub_total, options_json)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, item.OrderID, item.ProductID, item.Quantity, item.PricePerUnit, item.SubTotal, optionsJSON).
			Scan(&item.ID)
		if err != nil {
			err = fmt.Errorf("repository: failed to insert order item for order %d: %w", ord.ID, err)
			return nil, err
		}

		ord.Items = append(ord.Items, item)
	}

	return ord, nil
}

const orderColumns = "id, user_id, customer_name, status, total_price, created_at, updated_at"

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerName,
		&o.Status,
		&o.TotalPrice,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	var ord Order
	err := scanOrder(r.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id), &ord)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %d: %w", id, err)
	}

	items, err := r.loadItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	ord.Items = items[id]
	if ord.Items == nil {
		ord.Items = make([]Item, 0)
	}

	return &ord, nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	orders, ids, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("repository: failed reading orders for user %d: %w", userID, err)
	}

	if err := r.attachItems(ctx, orders, ids); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *postgresRepository) GetAll(ctx context.Context, page *pagination.Params) ([]Order, int, error) {
	total := 0
	if page != nil {
		if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
		}
	}

	query := `
		SELECT o.id, o.user_id, o.customer_name, o.status, o.total_price, o.created_at, o.updated_at,
		       COALESCE(u.username, o.customer_name, 'Guest') AS display_name
		FROM orders o
		LEFT JOIN users u ON o.user_id = u.id
		ORDER BY o.created_at DESC
	`
	args := []any{}
	if page != nil {
		query += " LIMIT $1 OFFSET $2"
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.CustomerName,
			&o.Status,
			&o.TotalPrice,
			&o.CreatedAt,
			&o.UpdatedAt,
			&o.DisplayName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]Item, 0)
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if err := r.attachItems(ctx, orders, ids); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id int64, status Status, restock bool) (*Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	if err := r.applyStatus(ctx, tx, id, status, restock); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Int64("order_id", id).Msg("repository: failed to rollback status update")
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit status update for order %d: %w", id, err)
	}

	return r.GetByID(ctx, id)
}

func (r *postgresRepository) applyStatus(ctx context.Context, tx pgx.Tx, id int64, status Status, restock bool) error {
	var current Status
	err := tx.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("repository: failed to lock order %d: %w", id, err)
	}

	_, err = tx.Exec(ctx, "UPDATE orders SET status = $1, updated_at = now() WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for order %d: %w", id, err)
	}

	if !restock || status != StatusCancelled || current == StatusCancelled {
		return nil
	}

	rows, err := tx.Query(ctx, "SELECT product_id, quantity FROM order_items WHERE order_id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to query items for restock of order %d: %w", id, err)
	}

	type restockLine struct {
		productID int64
		quantity  int
	}
	lines := make([]restockLine, 0)
	for rows.Next() {
		var l restockLine
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("repository: failed to scan restock line for order %d: %w", id, err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating restock lines for order %d: %w", id, err)
	}

	for _, l := range lines {
		if err := inventory.Restock(ctx, tx, l.productID, l.quantity); err != nil {
			return err
		}
	}

	return nil
}

func collectOrders(rows pgx.Rows) ([]Order, []int64, error) {
	orders := make([]Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, nil, err
		}
		o.Items = make([]Item, 0)
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	return orders, ids, rows.Err()
}

// loadItems fetches the line items for the given orders, joined with the live
// catalog for display name and image. Frozen financial fields come from the
// line item itself.
func (r *postgresRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	if len(orderIDs) == 0 {
		return map[int64][]Item{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_per_unit, oi.sub_total, oi.options_json,
		       p.name AS product_name, p.image_url AS product_image
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]Item)
	for rows.Next() {
		var (
			item        Item
			optionsJSON []byte
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.PricePerUnit,
			&item.SubTotal,
			&optionsJSON,
			&item.ProductName,
			&item.ProductImage,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}

		item.SelectedOptions = make([]Option, 0)
		if len(optionsJSON) > 0 {
			if err := json.Unmarshal(optionsJSON, &item.SelectedOptions); err != nil {
				return nil, fmt.Errorf("repository: failed to decode options for item %d: %w", item.ID, err)
			}
		}

		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return items, nil
}

func (r *postgresRepository) attachItems(ctx context.Context, orders []Order, ids []int64) error {
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return err
	}

	for i := range orders {
		if found, ok := items[orders[i].ID]; ok {
			orders[i].Items = found
		}
	}

	return nil
}
