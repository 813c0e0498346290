package order

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a client-supplied status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusCompleted, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Option is one selected product option (sweetness level, topping, ...).
// Options are serialized onto the line item as submitted, so historical orders
// keep the exact choices and surcharges paid.
type Option struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Group string  `json:"group"`
}

type Item struct {
	ID              int64    `json:"id" db:"id"`
	OrderID         int64    `json:"order_id" db:"order_id"`
	ProductID       int64    `json:"product_id" db:"product_id"`
	Quantity        int      `json:"quantity" db:"quantity"`
	PricePerUnit    float64  `json:"price_per_unit" db:"price_per_unit"`
	SubTotal        float64  `json:"sub_total" db:"sub_total"`
	SelectedOptions []Option `json:"selected_options" db:"options_json"`

	// Display fields live-joined from the catalog at read time. The product's
	// current name and image show in history views even though its price on
	// the line stays frozen.
	ProductName  string  `json:"product_name,omitempty" db:"product_name"`
	ProductImage *string `json:"product_image,omitempty" db:"product_image"`
}

type Order struct {
	ID           int64   `json:"id" db:"id"`
	UserID       *int64  `json:"user_id" db:"user_id"`
	CustomerName *string `json:"customer_name,omitempty" db:"customer_name"`
	// DisplayName resolves to the account username, else the guest name,
	// else "Guest". Populated only by the admin listing.
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Status      Status    `json:"status" db:"status"`
	TotalPrice  float64   `json:"total_price" db:"total_price"`
	Items       []Item    `json:"items" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CartLine is a client-submitted intent to buy. BasePrice and TotalPrice are
// advisory: the authoritative base price is re-read from the catalog inside
// the order transaction and TotalPrice is only cross-checked against it.
type CartLine struct {
	ProductID       int64
	Quantity        int
	SelectedOptions []Option
	BasePrice       float64
	TotalPrice      float64
}

// Receipt is the minimal confirmation returned from checkout.
type Receipt struct {
	ID         int64   `json:"id"`
	TotalPrice float64 `json:"total_price"`
	Status     Status  `json:"status"`
}
