// Package safety validates query plans before any job touches the warehouse.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/askql-systems/askql/pkg/types"
)

// DefaultFidelityThreshold is the minimum planner fidelity accepted when no
// threshold is configured.
const DefaultFidelityThreshold = 0.7

// PartitionSuffixColumn is the pseudo-column that constrains which shards of
// a day-sharded wildcard table a query scans.
const PartitionSuffixColumn = "_TABLE_SUFFIX"

// dayShardedTable matches year-prefixed wildcard partitions such as
// "githubarchive.day.2024*".
var dayShardedTable = regexp.MustCompile(`(19|20)\d{2}.*\*$`)

// Metadata carries the planner's self-assessment alongside the plan.
type Metadata struct {
	Fidelity float64
	Abstain  bool
}

// Verdict is the outcome of validation. A rejection stops the pipeline before
// execution and is reported as an abstention, never a job failure.
type Verdict struct {
	OK     bool
	Reason string
}

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Validator applies the plan safety checks.
type Validator struct {
	threshold float64
}

// New creates a Validator. A non-positive threshold selects the default.
func New(threshold float64) *Validator {
	if threshold <= 0 {
		threshold = DefaultFidelityThreshold
	}
	return &Validator{threshold: threshold}
}

// Validate inspects a plan and the planner's metadata and decides whether the
// query is safe to compile and execute.
func (v *Validator) Validate(root *types.RootPlan, meta Metadata) Verdict {
	if meta.Abstain {
		return reject("the planner abstained from answering; try rephrasing the question")
	}
	if meta.Fidelity < v.threshold {
		return reject("plan fidelity %.2f is below the acceptance threshold %.2f", meta.Fidelity, v.threshold)
	}
	if root == nil || root.MainQuery == nil {
		return reject("plan has no main query")
	}

	main := root.MainQuery
	if strings.TrimSpace(main.Table) == "" {
		return reject("plan has no table")
	}
	if len(main.Columns) == 0 {
		return reject("plan selects no columns")
	}
	for _, c := range main.Columns {
		if c == "*" {
			return reject("wildcard column selection is not allowed")
		}
	}

	if dayShardedTable.MatchString(main.Table) && !constrainsPartitionSuffix(main.Filters) {
		return reject("query against day-sharded table %q must constrain %s with =, IN, or BETWEEN",
			main.Table, PartitionSuffixColumn)
	}

	return Verdict{OK: true}
}

// constrainsPartitionSuffix walks the filter tree looking for a leaf that pins
// the partition suffix column with an equality, membership, or range operator.
func constrainsPartitionSuffix(filters []types.FilterNode) bool {
	for _, node := range filters {
		switch {
		case node.Group != nil:
			if constrainsPartitionSuffix(node.Group.Children) {
				return true
			}
		case node.Leaf != nil:
			if !strings.EqualFold(node.Leaf.Column, PartitionSuffixColumn) {
				continue
			}
			switch strings.ToUpper(strings.TrimSpace(node.Leaf.Op)) {
			case "=", "IN", "BETWEEN":
				return true
			}
		}
	}
	return false
}
