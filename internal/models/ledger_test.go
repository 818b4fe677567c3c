package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStateAfterPayment(t *testing.T) {
	tests := []struct {
		name  string
		paid  string
		total string
		want  OrderPaymentState
	}{
		{name: "Fully paid", paid: "100", total: "100", want: OrderPaid},
		{name: "Overpaid", paid: "120", total: "100", want: OrderPaid},
		{name: "Partial", paid: "40", total: "100", want: OrderPartial},
		{name: "Nothing paid", paid: "0", total: "100", want: OrderUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrderStateAfterPayment(decimal.RequireFromString(tt.paid), decimal.RequireFromString(tt.total))
			if got != tt.want {
				t.Errorf("OrderStateAfterPayment(%s, %s) = %s, want %s", tt.paid, tt.total, got, tt.want)
			}
		})
	}
}

func TestSplitDebtCredit(t *testing.T) {
	tests := []struct {
		name       string
		debt       string
		amount     string
		wantDebt   string
		wantCredit string
	}{
		{name: "Payment exceeds debt", debt: "50", amount: "80", wantDebt: "0", wantCredit: "30"},
		{name: "Payment covers debt exactly", debt: "80", amount: "80", wantDebt: "0", wantCredit: "0"},
		{name: "Payment below debt", debt: "100", amount: "30", wantDebt: "70", wantCredit: "0"},
		{name: "No debt", debt: "0", amount: "25", wantDebt: "0", wantCredit: "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newDebt, creditDelta := SplitDebtCredit(decimal.RequireFromString(tt.debt), decimal.RequireFromString(tt.amount))

			if !newDebt.Equal(decimal.RequireFromString(tt.wantDebt)) {
				t.Errorf("newDebt = %s, want %s", newDebt, tt.wantDebt)
			}
			if !creditDelta.Equal(decimal.RequireFromString(tt.wantCredit)) {
				t.Errorf("creditDelta = %s, want %s", creditDelta, tt.wantCredit)
			}
		})
	}
}
