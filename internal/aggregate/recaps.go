package aggregate

import "yeardash/internal/core"

// AllRecaps is the recap filter that keeps every type.
const AllRecaps core.RecapType = "All"

// FilterRecapsByType keeps the recaps of type t, or all of them for AllRecaps.
func FilterRecapsByType(recaps []core.Recap, t core.RecapType) []core.Recap {
	out := make([]core.Recap, 0, len(recaps))
	for _, r := range recaps {
		if t == AllRecaps || t == "" || r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// CountRecapsByType counts recaps per type, led by the AllRecaps total.
func CountRecapsByType(recaps []core.Recap) []core.RecapCount {
	counts := make([]core.RecapCount, 0, len(core.RecapTypes)+1)
	counts = append(counts, core.RecapCount{Type: AllRecaps, Count: len(recaps)})
	for _, t := range core.RecapTypes {
		n := 0
		for _, r := range recaps {
			if r.Type == t {
				n++
			}
		}
		counts = append(counts, core.RecapCount{Type: t, Count: n})
	}
	return counts
}
