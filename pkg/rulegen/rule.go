// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rulegen

import (
	"fmt"
	"strconv"
	"strings"
)

// Match field names of the comparison tables.
const (
	MatchCurrentNodeID = "meta.current_node_id"
	MatchOutcome       = "meta.feature_larger_than_thr"
)

// Action names.
const (
	CompareAction  = "compare_feature"
	ClassifyAction = "classify_flow"
)

// TableID identifies the comparison table of a tree level. Tree is 1-based,
// depth 0 holds the dummy root rule.
type TableID struct {
	Tree  int
	Depth int
}

// Name returns the table name declared by the switch program.
func (t TableID) Name() string {
	return fmt.Sprintf("table_cmp_feature_tree_%d_level_%d", t.Tree, t.Depth)
}

func (t TableID) String() string {
	return t.Name()
}

// Outcome is the result of the previous comparison.
type Outcome int

const (
	// OutcomeNone matches the dummy root rule.
	OutcomeNone Outcome = iota
	// OutcomeLessEqual follows the left branch.
	OutcomeLessEqual
	// OutcomeGreater follows the right branch.
	OutcomeGreater
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLessEqual:
		return "less_equal"
	case OutcomeGreater:
		return "greater"
	default:
		return "none"
	}
}

// Match is the exact key of a rule.
type Match struct {
	CurrentNodeID int
	Outcome       Outcome
}

// Param is a named action parameter.
type Param struct {
	Name  string
	Value int64
}

// Action is executed by a matching rule.
type Action interface {
	Name() string
	Params() []Param
}

// Compare loads the feature with the given id, compares it against the
// threshold and moves to the next node.
type Compare struct {
	FeatureID  uint32
	Threshold  int64
	NextNodeID int
	// PacketsCount is the number of packets after which the flow is
	// classified. Zero omits the parameter.
	PacketsCount int
}

// Name implements Action.
func (Compare) Name() string { return CompareAction }

// Params implements Action.
func (c Compare) Params() []Param {
	params := []Param{
		{Name: "feature_id", Value: int64(c.FeatureID)},
		{Name: "threshold", Value: c.Threshold},
		{Name: "next_node_id", Value: int64(c.NextNodeID)},
	}
	if c.PacketsCount != 0 {
		params = append(params, Param{Name: "packets_count", Value: int64(c.PacketsCount)})
	}
	return params
}

// Classify records the class a tree assigns to the flow.
type Classify struct {
	TreeIndex int
	Class     int
	// Impurity is the leaf impurity scaled by 1000.
	Impurity int64
}

// Name implements Action.
func (Classify) Name() string { return ClassifyAction }

// Params implements Action.
func (c Classify) Params() []Param {
	return []Param{
		{Name: "tree_index", Value: int64(c.TreeIndex)},
		{Name: "class", Value: int64(c.Class)},
		{Name: "gini_value", Value: c.Impurity},
	}
}

// Rule is a single entry of a comparison table.
type Rule struct {
	Table  TableID
	Match  Match
	Action Action
}

// String renders the rule as a record:
// table_name, current_node_id, outcome, action_name, params...
func (r Rule) String() string {
	fields := []string{
		r.Table.Name(),
		strconv.Itoa(r.Match.CurrentNodeID),
		strconv.Itoa(int(r.Match.Outcome)),
		r.Action.Name(),
	}
	for _, p := range r.Action.Params() {
		fields = append(fields, strconv.FormatInt(p.Value, 10))
	}
	return strings.Join(fields, ", ")
}

// CLI renders the rule as a simple_switch_CLI table_add command.
func (r Rule) CLI() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table_add %s %s %d %d =>",
		r.Table.Name(), r.Action.Name(), r.Match.CurrentNodeID, r.Match.Outcome)
	for _, p := range r.Action.Params() {
		fmt.Fprintf(&b, " %d", p.Value)
	}
	return b.String()
}
