package store

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"yeardash/internal/core"
)

// Apply evaluates constraints over docs the way a document store does:
// where filters drop non-matching documents, orderBy sorts stably in
// declaration order and drops documents missing the ordered field.
// docs is not modified.
func Apply(docs []core.Document, cs Constraints) []core.Document {
	out := make([]core.Document, 0, len(docs))
	var orders []Constraint
	for _, c := range cs {
		if c.IsOrder() {
			orders = append(orders, c)
		}
	}

	for _, d := range docs {
		if matches(d, cs, orders) {
			out = append(out, d)
		}
	}

	if len(orders) > 0 {
		slices.SortStableFunc(out, func(a, b core.Document) int {
			for _, o := range orders {
				c, _ := compareValues(a.Fields[o.Field], b.Fields[o.Field])
				if o.Direction == Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	return out
}

func matches(d core.Document, cs Constraints, orders []Constraint) bool {
	for _, o := range orders {
		if _, ok := d.Fields[o.Field]; !ok {
			return false
		}
	}
	for _, c := range cs {
		if c.IsOrder() {
			continue
		}
		v, present := d.Fields[c.Field]
		if !present {
			return false
		}
		cmp, ok := compareValues(v, c.Value)
		switch c.Op {
		case OpEq:
			if !ok || cmp != 0 {
				return false
			}
		case OpNe:
			if ok && cmp == 0 {
				return false
			}
		case OpLt:
			if !ok || cmp >= 0 {
				return false
			}
		case OpLte:
			if !ok || cmp > 0 {
				return false
			}
		case OpGt:
			if !ok || cmp <= 0 {
				return false
			}
		case OpGte:
			if !ok || cmp < 0 {
				return false
			}
		}
	}
	return true
}

// compareValues orders two field values of the same kind. ok is false when
// the values are of different kinds.
func compareValues(a, b any) (int, bool) {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if ta, ok := instant(a); ok {
		if tb, ok := instant(b); ok {
			return ta.Compare(tb), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func instant(v any) (time.Time, bool) {
	switch x := v.(type) {
	case core.StoreTime:
		return x.Time, true
	case time.Time:
		return x, true
	}
	return time.Time{}, false
}
