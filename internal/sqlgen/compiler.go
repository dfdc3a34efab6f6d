// Package sqlgen compiles structured query plans into SQL text.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/askql-systems/askql/pkg/types"
)

// Row limits applied to every compiled query.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// CompileError reports a structural problem in a plan that prevents SQL
// generation. It is always local and synchronous.
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string {
	return "compile: " + e.Reason
}

func compileErrorf(format string, args ...any) *CompileError {
	return &CompileError{Reason: fmt.Sprintf(format, args...)}
}

// allowedOps is the operator allow-list for filter leaves.
var allowedOps = map[string]bool{
	"=":        true,
	"!=":       true,
	"<>":       true,
	">":        true,
	">=":       true,
	"<":        true,
	"<=":       true,
	"LIKE":     true,
	"NOT LIKE": true,
	"IN":       true,
	"NOT IN":   true,
	"BETWEEN":  true,
	"IS":       true,
	"IS NOT":   true,
}

// Compile renders a root plan (optional CTEs plus main query) to SQL text.
// Compilation is pure and deterministic: the same plan always yields
// byte-identical SQL. Table and column names are passed through without
// semantic validation; name errors are the executor's to report.
func Compile(root *types.RootPlan) (string, error) {
	if root == nil || root.MainQuery == nil {
		return "", compileErrorf("missing main query")
	}

	var sb strings.Builder

	if len(root.CTEs) > 0 {
		parts := make([]string, 0, len(root.CTEs))
		for _, cte := range root.CTEs {
			sub, err := compileQuery(&cte.Query)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s AS (%s)", cte.Name, sub))
		}
		sb.WriteString("WITH ")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(" ")
	}

	main, err := compileQuery(root.MainQuery)
	if err != nil {
		return "", err
	}
	sb.WriteString(main)

	return sb.String(), nil
}

// compileQuery renders a single SELECT statement.
func compileQuery(p *types.QueryPlan) (string, error) {
	if len(p.Columns) == 0 {
		return "", compileErrorf("columns must not be empty")
	}
	for _, c := range p.Columns {
		if c == "*" {
			return "", compileErrorf("wildcard column is not allowed")
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(p.Columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(p.Table)

	where, err := renderFilters(p.Filters)
	if err != nil {
		return "", err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)

	if len(p.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(p.GroupBy, ", "))
	}

	if len(p.OrderBy) > 0 {
		terms := make([]string, 0, len(p.OrderBy))
		for _, ob := range p.OrderBy {
			term := ob.Column
			if ob.Direction != "" {
				term += " " + string(ob.Direction)
			}
			terms = append(terms, term)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	fmt.Fprintf(&sb, " LIMIT %d", limit)

	return sb.String(), nil
}

// renderFilters renders the filter tree, or the tautology when there are no
// filters so the WHERE clause is always present.
func renderFilters(filters []types.FilterNode) (string, error) {
	if len(filters) == 0 {
		return "1=1", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		s, err := renderNode(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), nil
}

// renderNode renders one node of the filter tree, depth first. Groups are
// always parenthesized so precedence stays explicit at any nesting depth.
func renderNode(node types.FilterNode) (string, error) {
	switch {
	case node.Group != nil:
		g := node.Group
		if len(g.Children) == 0 {
			return "", compileErrorf("filter group has no children")
		}
		parts := make([]string, 0, len(g.Children))
		for _, child := range g.Children {
			s, err := renderNode(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " "+string(g.Logic)+" ") + ")", nil
	case node.Leaf != nil:
		return renderLeaf(node.Leaf)
	default:
		return "", compileErrorf("empty filter node")
	}
}

func renderLeaf(leaf *types.FilterLeaf) (string, error) {
	op := strings.ToUpper(strings.TrimSpace(leaf.Op))
	if !allowedOps[op] {
		return "", compileErrorf("operator %q is not allowed", leaf.Op)
	}

	switch op {
	case "BETWEEN":
		if leaf.Value.Kind != types.ValueArray || len(leaf.Value.Array) != 2 {
			return "", compileErrorf("BETWEEN requires a 2-element array value")
		}
		lo, err := renderScalar(leaf.Value.Array[0])
		if err != nil {
			return "", err
		}
		hi, err := renderScalar(leaf.Value.Array[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", leaf.Column, lo, hi), nil
	case "IN", "NOT IN":
		if leaf.Value.Kind != types.ValueArray {
			return "", compileErrorf("%s requires an array value", op)
		}
	}

	val, err := renderValue(leaf.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", leaf.Column, op, val), nil
}
