package order

import (
	"fmt"
	"math"
)

// priceTolerance bounds the accepted drift between the client-computed line
// total and the server-side recomputation from the catalog price.
const priceTolerance = 0.01

// PriceMismatchError reports a cart line whose submitted total disagrees with
// the price derived from the catalog inside the transaction.
type PriceMismatchError struct {
	ProductID int64
	Submitted float64
	Computed  float64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("Price for product %d no longer matches the menu (sent %.2f, expected %.2f). Please refresh your cart.",
		e.ProductID, e.Submitted, e.Computed)
}

// OptionsSurcharge sums the per-unit surcharge of the selected options.
func OptionsSurcharge(options []Option) float64 {
	total := 0.0
	for _, opt := range options {
		total += opt.Price
	}
	return total
}

// LineTotal prices one cart line: (base price + option surcharges) * quantity.
func LineTotal(basePrice float64, options []Option, quantity int) float64 {
	return (basePrice + OptionsSurcharge(options)) * float64(quantity)
}

// PricePerUnit derives the frozen per-unit price persisted on a line item.
// Callers enforce quantity >= 1 before pricing.
func PricePerUnit(lineTotal float64, quantity int) float64 {
	return lineTotal / float64(quantity)
}

// checkSubmittedTotal cross-checks the client's advisory line total against
// the server-side computation.
func checkSubmittedTotal(productID int64, submitted, computed float64) error {
	if math.Abs(submitted-computed) > priceTolerance {
		return &PriceMismatchError{ProductID: productID, Submitted: submitted, Computed: computed}
	}
	return nil
}
