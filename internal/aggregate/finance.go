package aggregate

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"yeardash/internal/core"
)

// TypeFilter selects transactions by type; "all" keeps everything.
type TypeFilter string

const (
	FilterAll     TypeFilter = "all"
	FilterIncome  TypeFilter = TypeFilter(core.Income)
	FilterExpense TypeFilter = TypeFilter(core.Expense)
)

func (f TypeFilter) Valid() bool {
	return f == FilterAll || f == FilterIncome || f == FilterExpense || f == ""
}

// Summarize computes per-currency income, expenses and balance for the
// transactions dated inside p. Unset currencies count as USD.
func Summarize(txs []core.Transaction, p Period) core.FinancialSummary {
	summary := core.FinancialSummary{
		ByCurrency: map[core.Currency]core.CurrencyTotals{},
		Currencies: []core.Currency{},
	}

	for _, tx := range TransactionsInPeriod(txs, p) {
		cur := tx.Currency.OrDefault()
		totals, seen := summary.ByCurrency[cur]
		if !seen {
			totals = core.CurrencyTotals{Income: decimal.Zero, Expenses: decimal.Zero}
			summary.Currencies = append(summary.Currencies, cur)
		}
		switch tx.Type {
		case core.Income:
			totals.Income = totals.Income.Add(tx.Amount)
		case core.Expense:
			totals.Expenses = totals.Expenses.Add(tx.Amount)
		}
		totals.Count++
		summary.ByCurrency[cur] = totals
		summary.Count++
	}

	for cur, totals := range summary.ByCurrency {
		totals.Balance = totals.Income.Sub(totals.Expenses)
		summary.ByCurrency[cur] = totals
	}
	slices.SortFunc(summary.Currencies, compareCurrency)
	return summary
}

// compareCurrency orders known currencies first in their declared order,
// then anything else alphabetically.
func compareCurrency(a, b core.Currency) int {
	ia, ib := slices.Index(core.Currencies, a), slices.Index(core.Currencies, b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

type breakdownKey struct {
	typ      core.TxType
	category string
}

// Breakdown groups the transactions dated inside p by (type, category),
// keeping the order in which each group was first seen.
func Breakdown(txs []core.Transaction, p Period) []core.CategoryTotal {
	index := map[breakdownKey]int{}
	out := []core.CategoryTotal{}

	for _, tx := range TransactionsInPeriod(txs, p) {
		key := breakdownKey{typ: tx.Type, category: tx.Category}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, core.CategoryTotal{Type: tx.Type, Category: tx.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
		out[i].Count++
	}
	return out
}

// FilterByType keeps the transactions matching f.
func FilterByType(txs []core.Transaction, f TypeFilter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f == FilterAll || f == "" || TypeFilter(tx.Type) == f {
			out = append(out, tx)
		}
	}
	return out
}

// MonthTransactions is the month listing: period filter, type filter, newest first.
func MonthTransactions(txs []core.Transaction, p Period, f TypeFilter) []core.Transaction {
	return SortTransactions(FilterByType(TransactionsInPeriod(txs, p), f))
}
