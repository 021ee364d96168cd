package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BookLevel is a single price level of an order book side. OrderCount is
// optional metadata: providers that don't report it leave it zero.
type BookLevel struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	OrderCount int64
}

func NewBookLevel(price, quantity decimal.Decimal) BookLevel {
	return BookLevel{Price: price, Quantity: quantity}
}

// PriceKey returns the canonical form of the level's price for map keying.
// decimal.Decimal values that are numerically equal can carry different
// exponents ("100" vs "100.00"), so vendor formatting must not leak into
// key comparison. String() strips redundant trailing zeros.
func (l BookLevel) PriceKey() string {
	return l.Price.String()
}

// ParseRawLevels decodes the [price, quantity, ...] string tuples most
// vendors use on the wire. Elements beyond the first two are vendor-specific
// and left to the caller.
func ParseRawLevels(raw [][]string) ([]BookLevel, error) {
	levels := make([]BookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("malformed price level: %v", entry)
		}

		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, fmt.Errorf("malformed price %q: %w", entry[0], err)
		}
		quantity, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, fmt.Errorf("malformed quantity %q: %w", entry[1], err)
		}

		levels = append(levels, BookLevel{Price: price, Quantity: quantity})
	}

	return levels, nil
}

func sortBids(levels []BookLevel) {
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
}

func sortAsks(levels []BookLevel) {
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.LessThan(levels[j].Price)
	})
}
