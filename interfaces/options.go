package interfaces

import (
	"context"
	"time"
)

// OptionSample represents one side (put or call) of the chain at one strike
type OptionSample struct {
	OpenPrice       float64 `json:"open_price"`
	LastTradedPrice float64 `json:"last_traded_price"`
	OpenInterest    int64   `json:"open_interest"`
}

// StrikeLadder is the ordered list of strikes that defines row order
type StrikeLadder []float64

// SideMap maps a strike price to the sample for one side of the chain
type SideMap map[float64]OptionSample

// ChainRow is one derived display row of the option chain
type ChainRow struct {
	// PUT side
	PutOIPercent           float64 `json:"put_oi_percent"`
	PutOpenInterestDisplay string  `json:"put_open_interest"`
	PutChange              float64 `json:"put_change"`
	PutChangePercent       float64 `json:"put_change_percent"`
	PutLastTradedPrice     float64 `json:"put_ltp"`

	Strike float64 `json:"strike"`

	// CALL side
	CallLastTradedPrice     float64 `json:"call_ltp"`
	CallChangePercent       float64 `json:"call_change_percent"`
	CallChange              float64 `json:"call_change"`
	CallOpenInterestDisplay string  `json:"call_open_interest"`
	CallOIPercent           float64 `json:"call_oi_percent"`
}

// ChainSnapshot is one sample of raw chain data taken from a feed
type ChainSnapshot struct {
	Underlying string
	Ladder     StrikeLadder
	Puts       SideMap
	Calls      SideMap
	Timestamp  time.Time
}

// ChainView is the rendered result of one refresh cycle
type ChainView struct {
	Underlying string     `json:"underlying"`
	Timestamp  time.Time  `json:"timestamp"`
	Basis      int64      `json:"basis"`
	Rows       []ChainRow `json:"rows"`
}

// ColumnKind selects how a column is rendered
type ColumnKind string

const (
	ColumnNumeric  ColumnKind = "numeric"
	ColumnProgress ColumnKind = "progress"
	ColumnText     ColumnKind = "text"
)

// ColumnDescriptor describes one column of the chain table
type ColumnDescriptor struct {
	Key    string     `json:"key" yaml:"key"`
	Label  string     `json:"label" yaml:"label"`
	Kind   ColumnKind `json:"kind" yaml:"kind"`
	Format string     `json:"format,omitempty" yaml:"format,omitempty"` // fmt verb, e.g. "%+.2f"
	Min    float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64    `json:"max,omitempty" yaml:"max,omitempty"`
}

// MarketFeed defines interface for option chain sample sources
type MarketFeed interface {
	Sample(ctx context.Context) (*ChainSnapshot, error)
}
