// Package exchange
package exchange

// Side of a market order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Constraints are the exchange lot rules for a symbol. Read-only per tick.
type Constraints struct {
	MinNotional float64
	StepSize    float64
}

// Exchanges that do not publish a filter get the defaults the strategy was
// tuned against.
const (
	DefaultMinNotional = 10.0
	DefaultStepSize    = 0.00001
)

// Balance is the free amount of one asset.
type Balance struct {
	Asset     string
	Available float64
	Locked    float64
}

// Fill is the result of a successfully executed market order.
type Fill struct {
	OrderID  string
	Price    float64
	Quantity float64
}
