package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Document is a record as the backing store holds it: an id plus loosely
// typed fields. Decode* functions turn it into a typed record.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// EncodeFields serializes document fields for storage.
func EncodeFields(fields map[string]any) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}

// DecodeFields is the inverse of EncodeFields. Numbers stay json.Number and
// stored times come back as StoreTime.
func DecodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	for k, v := range fields {
		if m, ok := v.(map[string]any); ok {
			if st, ok := storeTimeFromMap(m); ok {
				fields[k] = st
			}
		}
	}
	return fields, nil
}

// CloneFields returns a shallow copy.
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return 0
}

func DecodeGoal(d Document) Goal {
	return Goal{
		ID:        d.ID,
		Title:     stringField(d.Fields, "title"),
		Category:  GoalCategory(stringField(d.Fields, "category")),
		Status:    GoalStatus(stringField(d.Fields, "status")),
		Year:      intField(d.Fields, "year"),
		CreatedAt: TimestampOf(d.Fields["createdAt"]),
		UpdatedAt: TimestampOf(d.Fields["updatedAt"]),
	}
}

// DecodeTransaction normalizes a transaction document. A missing currency
// becomes USD and a malformed amount becomes zero.
func DecodeTransaction(d Document) Transaction {
	return Transaction{
		ID:          d.ID,
		Description: stringField(d.Fields, "description"),
		Amount:      CoerceAmount(d.Fields["amount"]),
		Type:        TxType(stringField(d.Fields, "type")),
		Category:    stringField(d.Fields, "category"),
		Currency:    Currency(stringField(d.Fields, "currency")).OrDefault(),
		Date:        TimestampOf(d.Fields["date"]),
		CreatedAt:   TimestampOf(d.Fields["createdAt"]),
		UpdatedAt:   TimestampOf(d.Fields["updatedAt"]),
	}
}

func DecodeRecap(d Document) Recap {
	return Recap{
		ID:        d.ID,
		Title:     stringField(d.Fields, "title"),
		Content:   stringField(d.Fields, "content"),
		Type:      RecapType(stringField(d.Fields, "type")),
		Date:      TimestampOf(d.Fields["date"]),
		CreatedAt: TimestampOf(d.Fields["createdAt"]),
		UpdatedAt: TimestampOf(d.Fields["updatedAt"]),
	}
}

// Fields returns the writable fields of a goal. Timestamps are left to the gateway.
func (g Goal) Fields() map[string]any {
	return map[string]any{
		"title":    strings.TrimSpace(g.Title),
		"category": string(g.Category),
		"status":   string(g.Status),
		"year":     g.Year,
	}
}

func (t Transaction) Fields() map[string]any {
	return map[string]any{
		"description": strings.TrimSpace(t.Description),
		"amount":      AmountField(t.Amount),
		"type":        string(t.Type),
		"category":    t.Category,
		"currency":    string(t.Currency.OrDefault()),
		"date":        t.Date.Raw(),
	}
}

func (r Recap) Fields() map[string]any {
	return map[string]any{
		"title":   strings.TrimSpace(r.Title),
		"content": r.Content,
		"type":    string(r.Type),
		"date":    r.Date.Raw(),
	}
}
