package services

import (
	"fmt"
	"os"

	"optionchain-board/interfaces"

	"gopkg.in/yaml.v3"
)

// DefaultColumns returns the chain table layout: PUT side, strike, CALL side
func DefaultColumns() []interfaces.ColumnDescriptor {
	return []interfaces.ColumnDescriptor{
		{Key: "put_oi_percent", Label: "PUT OI", Kind: interfaces.ColumnProgress, Format: "%.2f", Min: 0, Max: 100},
		{Key: "put_open_interest", Label: "PUT OI", Kind: interfaces.ColumnText},
		{Key: "put_change", Label: "PUT Chg", Kind: interfaces.ColumnNumeric, Format: "%+.2f"},
		{Key: "put_change_percent", Label: "PUT %", Kind: interfaces.ColumnNumeric, Format: "%+.2f%%"},
		{Key: "put_ltp", Label: "PUT LTP", Kind: interfaces.ColumnNumeric, Format: "%.2f"},
		{Key: "strike", Label: "Strike", Kind: interfaces.ColumnNumeric, Format: "%.0f"},
		{Key: "call_ltp", Label: "CALL LTP", Kind: interfaces.ColumnNumeric, Format: "%.2f"},
		{Key: "call_change_percent", Label: "CALL %", Kind: interfaces.ColumnNumeric, Format: "%+.2f%%"},
		{Key: "call_change", Label: "CALL Chg", Kind: interfaces.ColumnNumeric, Format: "%+.2f"},
		{Key: "call_open_interest", Label: "CALL OI", Kind: interfaces.ColumnText},
		{Key: "call_oi_percent", Label: "CALL OI", Kind: interfaces.ColumnProgress, Format: "%.2f", Min: 0, Max: 100},
	}
}

// LoadColumns reads a YAML column layout. An empty path yields DefaultColumns.
func LoadColumns(path string) ([]interfaces.ColumnDescriptor, error) {
	if path == "" {
		return DefaultColumns(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column layout: %w", err)
	}

	var columns []interfaces.ColumnDescriptor
	if err := yaml.Unmarshal(data, &columns); err != nil {
		return nil, fmt.Errorf("failed to parse column layout: %w", err)
	}
	if err := ValidateColumns(columns); err != nil {
		return nil, err
	}
	return columns, nil
}

// ValidateColumns checks every descriptor against the ChainRow fields
func ValidateColumns(columns []interfaces.ColumnDescriptor) error {
	if len(columns) == 0 {
		return fmt.Errorf("column layout is empty")
	}

	probe := interfaces.ChainRow{}
	for i, col := range columns {
		value, ok := CellValue(probe, col.Key)
		if !ok {
			return fmt.Errorf("column %d: unknown key %q", i, col.Key)
		}

		switch col.Kind {
		case interfaces.ColumnText:
		case interfaces.ColumnNumeric:
			if _, isNum := value.(float64); !isNum {
				return fmt.Errorf("column %d: %q is not numeric", i, col.Key)
			}
		case interfaces.ColumnProgress:
			if _, isNum := value.(float64); !isNum {
				return fmt.Errorf("column %d: %q is not numeric", i, col.Key)
			}
			if col.Max <= col.Min {
				return fmt.Errorf("column %d: progress range [%v, %v] is empty", i, col.Min, col.Max)
			}
		default:
			return fmt.Errorf("column %d: unknown kind %q", i, col.Kind)
		}
	}
	return nil
}

// CellValue returns the row field addressed by a column key
func CellValue(row interfaces.ChainRow, key string) (interface{}, bool) {
	switch key {
	case "put_oi_percent":
		return row.PutOIPercent, true
	case "put_open_interest":
		return row.PutOpenInterestDisplay, true
	case "put_change":
		return row.PutChange, true
	case "put_change_percent":
		return row.PutChangePercent, true
	case "put_ltp":
		return row.PutLastTradedPrice, true
	case "strike":
		return row.Strike, true
	case "call_ltp":
		return row.CallLastTradedPrice, true
	case "call_change_percent":
		return row.CallChangePercent, true
	case "call_change":
		return row.CallChange, true
	case "call_open_interest":
		return row.CallOpenInterestDisplay, true
	case "call_oi_percent":
		return row.CallOIPercent, true
	}
	return nil, false
}

// FormatCell renders one cell of the chain table
func FormatCell(col interfaces.ColumnDescriptor, row interfaces.ChainRow) string {
	value, ok := CellValue(row, col.Key)
	if !ok {
		return ""
	}
	if s, isString := value.(string); isString {
		return s
	}
	if col.Format == "" {
		return fmt.Sprint(value)
	}
	return fmt.Sprintf(col.Format, value)
}

// ProgressWidth maps a progress cell onto 0..100 for rendering a bar
func ProgressWidth(col interfaces.ColumnDescriptor, row interfaces.ChainRow) float64 {
	value, ok := CellValue(row, col.Key)
	if !ok || col.Max <= col.Min {
		return 0
	}
	v, isNum := value.(float64)
	if !isNum {
		return 0
	}

	width := (v - col.Min) / (col.Max - col.Min) * 100
	if width < 0 {
		return 0
	}
	if width > 100 {
		return 100
	}
	return width
}
