package aggregate

import "yeardash/internal/core"

// GoalsForYear keeps the goals set for year.
func GoalsForYear(goals []core.Goal, year int) []core.Goal {
	out := make([]core.Goal, 0, len(goals))
	for _, g := range goals {
		if g.Year == year {
			out = append(out, g)
		}
	}
	return out
}

// CompletionRatio is the share of completed goals as a percentage rounded
// half up. An empty set is 0.
func CompletionRatio(goals []core.Goal) int {
	total := len(goals)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, g := range goals {
		if g.Status == core.Completed {
			completed++
		}
	}
	return (200*completed + total) / (2 * total)
}

// GoalProgress is CompletionRatio over the goals of one year.
func GoalProgress(goals []core.Goal, year int) int {
	return CompletionRatio(GoalsForYear(goals, year))
}

// CountByStatus counts goals per status.
func CountByStatus(goals []core.Goal) map[core.GoalStatus]int {
	counts := make(map[core.GoalStatus]int, len(core.GoalStatuses))
	for _, s := range core.GoalStatuses {
		counts[s] = 0
	}
	for _, g := range goals {
		counts[g.Status]++
	}
	return counts
}

// GroupByCategory partitions goals by category in first-seen order. Goals
// keep their input order within a group.
func GroupByCategory(goals []core.Goal) []core.GoalGroup {
	index := map[core.GoalCategory]int{}
	groups := []core.GoalGroup{}
	for _, g := range goals {
		i, ok := index[g.Category]
		if !ok {
			i = len(groups)
			index[g.Category] = i
			groups = append(groups, core.GoalGroup{Category: g.Category})
		}
		groups[i].Goals = append(groups[i].Goals, g)
	}
	return groups
}
