package aggregate

import (
	"testing"
	"time"

	"yeardash/internal/core"
)

func TestGoalProgressRoundsCompletedShare(t *testing.T) {
	goals := []core.Goal{
		{Year: 2024, Status: core.Completed},
		{Year: 2024, Status: core.InProgress},
		{Year: 2024, Status: core.NotStarted},
		{Year: 2023, Status: core.Completed},
	}
	if got := GoalProgress(goals, 2024); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}

func TestCompletionRatio(t *testing.T) {
	mk := func(completed, total int) []core.Goal {
		goals := make([]core.Goal, total)
		for i := range goals {
			goals[i].Status = core.InProgress
			if i < completed {
				goals[i].Status = core.Completed
			}
		}
		return goals
	}
	cases := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 2, 50},
		{2, 3, 67},
		{1, 8, 13},  // 12.5 rounds up
		{1, 200, 1}, // 0.5 rounds up
		{1, 201, 0},
		{3, 3, 100},
	}
	for _, tc := range cases {
		if got := CompletionRatio(mk(tc.completed, tc.total)); got != tc.want {
			t.Fatalf("%d/%d: expected %d, got %d", tc.completed, tc.total, tc.want, got)
		}
	}
}

func TestGroupByCategoryFirstSeenOrder(t *testing.T) {
	goals := []core.Goal{
		{ID: "1", Category: core.Career},
		{ID: "2", Category: core.Health},
		{ID: "3", Category: core.Career},
		{ID: "4", Category: core.Financial},
	}

	groups := GroupByCategory(goals)

	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	order := []core.GoalCategory{core.Career, core.Health, core.Financial}
	for i, c := range order {
		if groups[i].Category != c {
			t.Fatalf("group %d: expected %s, got %s", i, c, groups[i].Category)
		}
	}
	if ids := groups[0].Goals; ids[0].ID != "1" || ids[1].ID != "3" {
		t.Fatalf("career goals out of order: %+v", ids)
	}
}

func TestBuildGoalsView(t *testing.T) {
	goals := []core.Goal{
		{ID: "old", Year: 2024, Category: core.Health, Status: core.Completed, CreatedAt: core.NativeTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{ID: "new", Year: 2024, Category: core.Health, Status: core.NotStarted, CreatedAt: core.NativeTimestamp(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))},
		{ID: "other", Year: 2025, Category: core.Career, Status: core.Completed},
	}

	view := BuildGoalsView(goals, 2024)

	if view.Progress != 50 {
		t.Fatalf("progress: %d", view.Progress)
	}
	if view.ByStatus[core.Completed] != 1 || view.ByStatus[core.InProgress] != 0 {
		t.Fatalf("status counts: %v", view.ByStatus)
	}
	if len(view.Groups) != 1 || view.Groups[0].Goals[0].ID != "new" {
		t.Fatalf("groups: %+v", view.Groups)
	}
}
