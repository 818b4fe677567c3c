package service

import "github.com/shopspring/decimal"

// Payme carries amounts as integers in the currency's smallest subunit
// (1 unit = 100 subunits). Conversion happens only at that boundary,
// through these two helpers.
const subunitsPerUnit = 100

func AmountToSubunits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(subunitsPerUnit)).Round(0).IntPart()
}

func SubunitsToAmount(subunits int64) decimal.Decimal {
	return decimal.NewFromInt(subunits).Div(decimal.NewFromInt(subunitsPerUnit))
}
