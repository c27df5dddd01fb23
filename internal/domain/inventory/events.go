package inventory

import "time"

const (
	EventStockDecremented = "StockDecremented"
	EventStockRestored    = "StockRestored"
)

// StockMoved reports counters changed on behalf of one order.
type StockMoved struct {
	Type     string    `json:"eventType"`
	OrderRef string    `json:"orderRef"`
	Lines    []Line    `json:"lines"`
	At       time.Time `json:"at"`
}

func (e StockMoved) EventType() string { return e.Type }
