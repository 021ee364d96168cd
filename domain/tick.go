package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickData is a single normalized trade. Created once per trade event and
// never mutated; duplicate ids from a vendor pass through unchanged.
type TickData struct {
	ID        string
	Timestamp time.Time
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Symbol    *MarketSymbol
	Provider  string
}

func NewTickData(id string, ts time.Time, price, quantity decimal.Decimal, symbol *MarketSymbol, provider string) *TickData {
	return &TickData{
		ID:        id,
		Timestamp: ts,
		Price:     price,
		Quantity:  quantity,
		Symbol:    symbol,
		Provider:  provider,
	}
}
