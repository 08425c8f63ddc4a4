// Package store defines the boundary with the backing document store.
//
// Documents live under users/{uid}/{collection}. Adapters implement Store
// and use Hub to push full snapshots to listeners after every write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yeardash/internal/core"
)

// Path addresses one user's collection.
type Path struct {
	UserID     string
	Collection string
}

func (p Path) String() string {
	return "users/" + p.UserID + "/" + p.Collection
}

func (p Path) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("empty user id")
	}
	if strings.TrimSpace(p.Collection) == "" || strings.Contains(p.Collection, "/") {
		return fmt.Errorf("invalid collection %q", p.Collection)
	}
	return nil
}

// Event is one delivery on a listen stream: either a full snapshot or an error.
type Event struct {
	Docs []core.Document
	Err  error
}

// Ports for outbound adapters.
type (
	Store interface {
		// Listen streams snapshots of path until ctx is done, then closes the channel.
		// The first event is the current content. Slow readers only see the newest snapshot.
		Listen(ctx context.Context, path Path, constraints Constraints) (<-chan Event, error)
		List(ctx context.Context, path Path, constraints Constraints) ([]core.Document, error)
		Create(ctx context.Context, path Path, fields map[string]any) (id string, err error)
		// Update merges fields into an existing document.
		Update(ctx context.Context, path Path, id string, fields map[string]any) error
		// Delete removes a document. Deleting a missing document is not an error.
		Delete(ctx context.Context, path Path, id string) error
	}

	// Refresher re-reads a path and pushes the result to its listeners.
	Refresher interface {
		Refresh(ctx context.Context, path Path)
	}
)

type serverTimestamp struct{}

// ServerTimestamp is a field value the store replaces with its own clock.
func ServerTimestamp() any { return serverTimestamp{} }

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveFields returns a copy of fields with every ServerTimestamp replaced by now.
func ResolveFields(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			v = core.StoreTime{Time: now.UTC()}
		}
		out[k] = v
	}
	return out
}

// Normalize round-trips fields through their stored encoding so every
// adapter hands out the same value types.
func Normalize(fields map[string]any) (map[string]any, error) {
	data, err := core.EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	return core.DecodeFields(data)
}

// Direction of an orderBy constraint.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Op is a where comparison.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Constraint is either a where filter or an orderBy directive.
type Constraint struct {
	Field     string    `json:"field"`
	Op        Op        `json:"op,omitempty"`
	Value     any       `json:"value,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

func Where(field string, op Op, value any) Constraint {
	return Constraint{Field: field, Op: op, Value: value}
}

func OrderBy(field string, dir Direction) Constraint {
	if dir != Desc {
		dir = Asc
	}
	return Constraint{Field: field, Direction: dir}
}

func (c Constraint) IsOrder() bool { return c.Op == "" && c.Direction != "" }

// Constraints is an ordered list of constraints.
type Constraints []Constraint

func (cs Constraints) Validate() error {
	for _, c := range cs {
		if c.Field == "" {
			return errors.New("constraint without field")
		}
		if !c.IsOrder() && !c.Op.Valid() {
			return fmt.Errorf("invalid operator %q", c.Op)
		}
	}
	return nil
}

// Key is a structural identity: two lists with the same content have the
// same key regardless of where they were built.
func (cs Constraints) Key() string {
	if len(cs) == 0 {
		return "[]"
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return fmt.Sprintf("%#v", cs)
	}
	return string(data)
}

func (cs Constraints) Equal(other Constraints) bool {
	return cs.Key() == other.Key()
}
