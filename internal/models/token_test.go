package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		status    TokenStatus
		expiresAt time.Time
		want      TokenStatus
	}{
		{
			name:      "Pending before deadline",
			status:    TokenStatusPending,
			expiresAt: now.Add(time.Hour),
			want:      TokenStatusPending,
		},
		{
			name:      "Pending past deadline reads expired",
			status:    TokenStatusPending,
			expiresAt: now.Add(-time.Hour),
			want:      TokenStatusExpired,
		},
		{
			name:      "Paid never reads expired",
			status:    TokenStatusPaid,
			expiresAt: now.Add(-time.Hour),
			want:      TokenStatusPaid,
		},
		{
			name:      "Cancelled past deadline stays cancelled",
			status:    TokenStatusCancelled,
			expiresAt: now.Add(-time.Hour),
			want:      TokenStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &PaymentToken{Status: tt.status, ExpiresAt: tt.expiresAt}
			if got := token.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountMatches(t *testing.T) {
	token := &PaymentToken{Amount: decimal.RequireFromString("150.00")}

	tests := []struct {
		name   string
		amount string
		want   bool
	}{
		{name: "Exact", amount: "150.00", want: true},
		{name: "Off by 0.005", amount: "150.005", want: true},
		{name: "Off by 0.01 boundary", amount: "149.99", want: true},
		{name: "Off by 0.02", amount: "150.02", want: false},
		{name: "Off by whole unit", amount: "151.00", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := token.AmountMatches(decimal.RequireFromString(tt.amount))
			if got != tt.want {
				t.Errorf("AmountMatches(%s) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}
