package core

import "github.com/shopspring/decimal"

// CurrencyTotals aggregates the transactions of one currency.
type CurrencyTotals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
	Count    int             `json:"count"`
}

// FinancialSummary is the per-currency summary of a period.
type FinancialSummary struct {
	ByCurrency map[Currency]CurrencyTotals `json:"byCurrency"`
	Currencies []Currency                  `json:"currencies"`
	Count      int                         `json:"count"`
}

// CategoryTotal is one (type, category) row of a breakdown.
type CategoryTotal struct {
	Type     TxType          `json:"type"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// GoalGroup holds the goals of one category.
type GoalGroup struct {
	Category GoalCategory `json:"category"`
	Goals    []Goal       `json:"goals"`
}

// RecapCount is the number of recaps of one type.
type RecapCount struct {
	Type  RecapType `json:"type"`
	Count int       `json:"count"`
}
