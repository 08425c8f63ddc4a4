package aggregate

import (
	"time"

	"yeardash/internal/core"
)

// RecentLimit is how many transactions and recaps the dashboard shows.
const RecentLimit = 5

// Dashboard is the landing page view model.
type Dashboard struct {
	Period             string                `json:"period"`
	Year               int                   `json:"year"`
	Summary            core.FinancialSummary `json:"summary"`
	Goals              []core.Goal           `json:"goals"`
	GoalProgress       int                   `json:"goalProgress"`
	CompletedGoals     int                   `json:"completedGoals"`
	RecentTransactions []core.Transaction    `json:"recentTransactions"`
	RecentRecaps       []core.Recap          `json:"recentRecaps"`
}

// BuildDashboard derives the dashboard for the month and year containing now.
func BuildDashboard(goals []core.Goal, txs []core.Transaction, recaps []core.Recap, now time.Time) Dashboard {
	period := MonthOf(now)
	yearGoals := SortGoalsByCreated(GoalsForYear(goals, now.Year()))
	return Dashboard{
		Period:             period.String(),
		Year:               now.Year(),
		Summary:            Summarize(txs, period),
		Goals:              yearGoals,
		GoalProgress:       CompletionRatio(yearGoals),
		CompletedGoals:     CountByStatus(yearGoals)[core.Completed],
		RecentTransactions: Recent(SortTransactions(txs), RecentLimit),
		RecentRecaps:       Recent(SortRecaps(recaps), RecentLimit),
	}
}

// FinanceView is the month view of the finance page.
type FinanceView struct {
	Period       string                `json:"period"`
	Filter       TypeFilter            `json:"filter"`
	Summary      core.FinancialSummary `json:"summary"`
	Breakdown    []core.CategoryTotal  `json:"breakdown"`
	Transactions []core.Transaction    `json:"transactions"`
}

func BuildFinanceView(txs []core.Transaction, p Period, f TypeFilter) FinanceView {
	if f == "" {
		f = FilterAll
	}
	return FinanceView{
		Period:       p.String(),
		Filter:       f,
		Summary:      Summarize(txs, p),
		Breakdown:    Breakdown(txs, p),
		Transactions: MonthTransactions(txs, p, f),
	}
}

// GoalsView is the goals page for one year.
type GoalsView struct {
	Year     int                     `json:"year"`
	Progress int                     `json:"progress"`
	ByStatus map[core.GoalStatus]int `json:"byStatus"`
	Groups   []core.GoalGroup        `json:"groups"`
}

func BuildGoalsView(goals []core.Goal, year int) GoalsView {
	yearGoals := SortGoalsByCreated(GoalsForYear(goals, year))
	return GoalsView{
		Year:     year,
		Progress: CompletionRatio(yearGoals),
		ByStatus: CountByStatus(yearGoals),
		Groups:   GroupByCategory(yearGoals),
	}
}

// RecapsView is the recap feed with its type filter.
type RecapsView struct {
	Filter core.RecapType    `json:"filter"`
	Counts []core.RecapCount `json:"counts"`
	Recaps []core.Recap      `json:"recaps"`
}

func BuildRecapsView(recaps []core.Recap, t core.RecapType) RecapsView {
	if t == "" {
		t = AllRecaps
	}
	return RecapsView{
		Filter: t,
		Counts: CountRecapsByType(recaps),
		Recaps: SortRecaps(FilterRecapsByType(recaps, t)),
	}
}
