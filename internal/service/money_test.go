package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSubunitConversion(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		subunits int64
	}{
		{name: "Whole units", amount: "150", subunits: 15000},
		{name: "With fraction", amount: "150.25", subunits: 15025},
		{name: "Single subunit", amount: "0.01", subunits: 1},
		{name: "Zero", amount: "0", subunits: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)

			if got := AmountToSubunits(amount); got != tt.subunits {
				t.Errorf("AmountToSubunits(%s) = %d, want %d", tt.amount, got, tt.subunits)
			}
			if got := SubunitsToAmount(tt.subunits); !got.Equal(amount) {
				t.Errorf("SubunitsToAmount(%d) = %s, want %s", tt.subunits, got, tt.amount)
			}
		})
	}
}
