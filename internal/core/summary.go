package core

import "github.com/shopspring/decimal"

// MonthSummary aggregates a month's bills for the dashboard.
type MonthSummary struct {
	Month     MonthKey
	TotalDue  decimal.Decimal
	TotalPaid decimal.Decimal
	TotalOpen decimal.Decimal
	PaidCount int
	OpenCount int
}

// SummarizeMonth folds a month's bill list into totals. Decimal arithmetic
// keeps the sums exact.
func SummarizeMonth(month MonthKey, bills []Bill) MonthSummary {
	s := MonthSummary{
		Month:     month,
		TotalDue:  decimal.Zero,
		TotalPaid: decimal.Zero,
		TotalOpen: decimal.Zero,
	}
	for _, b := range bills {
		s.TotalDue = s.TotalDue.Add(b.AmountDue)
		if b.IsPaid {
			s.TotalPaid = s.TotalPaid.Add(b.AmountDue)
			s.PaidCount++
		} else {
			s.TotalOpen = s.TotalOpen.Add(b.AmountDue)
			s.OpenCount++
		}
	}
	return s
}
