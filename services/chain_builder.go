package services

import (
	"errors"
	"fmt"
	"math"

	"optionchain-board/interfaces"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalidInput is returned for every precondition violation of BuildChainRows
var ErrInvalidInput = errors.New("invalid input")

var (
	hundred    = decimal.NewFromInt(100)
	oiPrinter  = message.NewPrinter(language.English)
	roundPlace = int32(2)
)

// BuildChainRows derives one display row per ladder strike, in ladder order.
// basis is the open interest that maps to 100%, normally MaxOpenInterest of both sides.
func BuildChainRows(ladder interfaces.StrikeLadder, puts, calls interfaces.SideMap, basis int64) ([]interfaces.ChainRow, error) {
	if err := validateChainInput(ladder, puts, calls, basis); err != nil {
		return nil, err
	}

	basisDec := decimal.NewFromInt(basis)
	rows := make([]interfaces.ChainRow, len(ladder))
	for i, strike := range ladder {
		p := puts[strike]
		c := calls[strike]

		putChange, putPercent := priceChange(p)
		callChange, callPercent := priceChange(c)

		rows[i] = interfaces.ChainRow{
			PutOIPercent:           oiPercent(p.OpenInterest, basisDec),
			PutOpenInterestDisplay: FormatOpenInterest(p.OpenInterest),
			PutChange:              putChange,
			PutChangePercent:       putPercent,
			PutLastTradedPrice:     p.LastTradedPrice,

			Strike: strike,

			CallLastTradedPrice:     c.LastTradedPrice,
			CallChangePercent:       callPercent,
			CallChange:              callChange,
			CallOpenInterestDisplay: FormatOpenInterest(c.OpenInterest),
			CallOIPercent:           oiPercent(c.OpenInterest, basisDec),
		}
	}

	return rows, nil
}

// MaxOpenInterest returns the largest open interest across both sides
func MaxOpenInterest(puts, calls interfaces.SideMap) int64 {
	var highest int64
	for _, side := range []interfaces.SideMap{puts, calls} {
		for _, s := range side {
			if s.OpenInterest > highest {
				highest = s.OpenInterest
			}
		}
	}
	return highest
}

// FormatOpenInterest renders open interest with thousands separators (62000 -> "62,000")
func FormatOpenInterest(oi int64) string {
	return oiPrinter.Sprintf("%d", oi)
}

func validateChainInput(ladder interfaces.StrikeLadder, puts, calls interfaces.SideMap, basis int64) error {
	if len(ladder) == 0 {
		return fmt.Errorf("%w: strike ladder is empty", ErrInvalidInput)
	}
	if basis <= 0 {
		return fmt.Errorf("%w: normalization basis must be positive, got %d", ErrInvalidInput, basis)
	}

	seen := make(map[float64]struct{}, len(ladder))
	for _, strike := range ladder {
		if _, dup := seen[strike]; dup {
			return fmt.Errorf("%w: strike %v appears twice in ladder", ErrInvalidInput, strike)
		}
		seen[strike] = struct{}{}

		p, ok := puts[strike]
		if !ok {
			return fmt.Errorf("%w: no put sample for strike %v", ErrInvalidInput, strike)
		}
		if err := validateSample("put", strike, p); err != nil {
			return err
		}

		c, ok := calls[strike]
		if !ok {
			return fmt.Errorf("%w: no call sample for strike %v", ErrInvalidInput, strike)
		}
		if err := validateSample("call", strike, c); err != nil {
			return err
		}
	}
	return nil
}

func validateSample(side string, strike float64, s interfaces.OptionSample) error {
	switch {
	case !isFinite(s.OpenPrice):
		return fmt.Errorf("%w: %s open price %v is not finite at strike %v", ErrInvalidInput, side, s.OpenPrice, strike)
	case !isFinite(s.LastTradedPrice):
		return fmt.Errorf("%w: %s last traded price %v is not finite at strike %v", ErrInvalidInput, side, s.LastTradedPrice, strike)
	case s.OpenPrice == 0:
		return fmt.Errorf("%w: %s open price is zero at strike %v", ErrInvalidInput, side, strike)
	case s.OpenPrice < 0:
		return fmt.Errorf("%w: %s open price %v is negative at strike %v", ErrInvalidInput, side, s.OpenPrice, strike)
	case s.LastTradedPrice < 0:
		return fmt.Errorf("%w: %s last traded price %v is negative at strike %v", ErrInvalidInput, side, s.LastTradedPrice, strike)
	case s.OpenInterest < 0:
		return fmt.Errorf("%w: %s open interest %d is negative at strike %v", ErrInvalidInput, side, s.OpenInterest, strike)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// priceChange returns the absolute and percentage change from open, both rounded
func priceChange(s interfaces.OptionSample) (float64, float64) {
	open := decimal.NewFromFloat(s.OpenPrice)
	change := decimal.NewFromFloat(s.LastTradedPrice).Sub(open)
	percent := change.Div(open).Mul(hundred)

	return toFloat(change), toFloat(percent)
}

func oiPercent(oi int64, basis decimal.Decimal) float64 {
	return toFloat(decimal.NewFromInt(oi).Div(basis).Mul(hundred))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(roundPlace).Float64()
	return f
}
