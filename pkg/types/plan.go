package types

import (
	"encoding/json"
	"fmt"
)

// Direction is an ORDER BY sort direction.
type Direction string

// Direction values.
const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// LogicOp combines the children of a filter group.
type LogicOp string

// LogicOp values.
const (
	LogicAnd LogicOp = "AND"
	LogicOr  LogicOp = "OR"
)

// RootPlan is the structured query description produced by the planner:
// an optional list of named CTEs plus the main query.
type RootPlan struct {
	CTEs      []CTE      `json:"ctes,omitempty"`
	MainQuery *QueryPlan `json:"main_query"`
}

// CTE is a named common table expression whose body is itself a QueryPlan.
type CTE struct {
	Name  string    `json:"name"`
	Query QueryPlan `json:"query"`
}

// QueryPlan describes a single SELECT: table, projected columns, filter tree,
// grouping, ordering, and an optional row limit.
type QueryPlan struct {
	Table   string       `json:"table"`
	Columns []string     `json:"columns"`
	Filters []FilterNode `json:"filters,omitempty"`
	GroupBy []string     `json:"groupBy,omitempty"`
	OrderBy []OrderBy    `json:"orderBy,omitempty"`
	Limit   int          `json:"limit,omitempty"`
}

// OrderBy is a single ORDER BY term.
type OrderBy struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction,omitempty"`
}

// FilterNode is a tagged union: exactly one of Leaf or Group is non-nil.
// Unknown shapes are rejected at deserialization time, not at render time.
type FilterNode struct {
	Leaf  *FilterLeaf
	Group *FilterGroup
}

// FilterLeaf is a single column comparison.
type FilterLeaf struct {
	Column string      `json:"column"`
	Op     string      `json:"op"`
	Value  FilterValue `json:"value"`
}

// FilterGroup combines child filters with AND/OR logic. Children is never empty.
type FilterGroup struct {
	Logic    LogicOp      `json:"logic"`
	Children []FilterNode `json:"filters"`
}

// UnmarshalJSON decodes a filter node, distinguishing leaves from groups by
// shape and rejecting anything that is neither.
func (n *FilterNode) UnmarshalJSON(data []byte) error {
	var probe struct {
		Logic  *string         `json:"logic"`
		Column *string         `json:"column"`
		Op     *string         `json:"op"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("filter node: %w", err)
	}

	switch {
	case probe.Logic != nil:
		var g FilterGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("filter group: %w", err)
		}
		if g.Logic != LogicAnd && g.Logic != LogicOr {
			return fmt.Errorf("filter group: unknown logic %q", g.Logic)
		}
		if len(g.Children) == 0 {
			return fmt.Errorf("filter group: empty filters")
		}
		n.Group = &g
		return nil
	case probe.Column != nil && probe.Op != nil:
		var l FilterLeaf
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("filter leaf: %w", err)
		}
		n.Leaf = &l
		return nil
	default:
		return fmt.Errorf("filter node: unrecognized shape (need logic or column+op)")
	}
}

// MarshalJSON encodes whichever side of the union is populated.
func (n FilterNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Group != nil:
		return json.Marshal(n.Group)
	case n.Leaf != nil:
		return json.Marshal(n.Leaf)
	default:
		return nil, fmt.Errorf("filter node: empty union")
	}
}

// ValueKind discriminates the payload of a FilterValue.
type ValueKind int

// ValueKind values.
const (
	ValueLiteral ValueKind = iota
	ValueArray
	ValueVar
)

// FilterValue is the right-hand side of a leaf comparison: a scalar literal,
// an array (for IN and BETWEEN), or a named variable reference substituted
// verbatim into the generated SQL.
type FilterValue struct {
	Kind    ValueKind
	Literal any
	Array   []any
	Var     string
}

// UnmarshalJSON decodes a literal, array, or {"var": name} reference.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter value: %w", err)
	}

	switch t := raw.(type) {
	case []any:
		v.Kind = ValueArray
		v.Array = t
	case map[string]any:
		name, ok := t["var"].(string)
		if !ok || len(t) != 1 {
			return fmt.Errorf("filter value: object must be {\"var\": name}")
		}
		v.Kind = ValueVar
		v.Var = name
	default:
		v.Kind = ValueLiteral
		v.Literal = t
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueArray:
		return json.Marshal(v.Array)
	case ValueVar:
		return json.Marshal(map[string]string{"var": v.Var})
	default:
		return json.Marshal(v.Literal)
	}
}

// PlanResponse is the planner's answer for a prompt: the structured plan, a
// human-readable title, a self-reported fidelity score in [0,1], and an
// explicit abstain flag.
type PlanResponse struct {
	Plan     *RootPlan `json:"plan"`
	Title    string    `json:"title"`
	Fidelity float64   `json:"fidelity"`
	Abstain  bool      `json:"abstain"`
}
