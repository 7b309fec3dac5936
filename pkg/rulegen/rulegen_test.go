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

package rulegen_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/pkg/ensemble"
	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/rulegen"
	"github.com/cml-ids/cmlids/pkg/vote"
)

var testIDs = rulegen.FeatureIDs{
	"bidirectional_duration_ms": 4,
	"src2dst_bytes":             5,
	"dst2src_packets":           6,
}

func testForest() *ensemble.Forest {
	return &ensemble.Forest{
		Features: []string{"bidirectional_duration_ms", "src2dst_bytes", "dst2src_packets"},
		Trees: []ensemble.Tree{
			{
				Feature:   []int{0, 1, -2, -2, -2},
				Threshold: []float64{3.14, 1500.5, -2, -2, -2},
				Left:      []int{1, 2, -1, -1, -1},
				Right:     []int{4, 3, -1, -1, -1},
				Value:     [][2]float64{{26, 34}, {25, 5}, {20, 0}, {5, 5}, {1, 29}},
				Impurity:  []float64{0.4911, 0.4567, 0, 0.5, 0.0644},
			},
			{
				Feature:   []int{2, -2, 0, -2, -2},
				Threshold: []float64{10.0, -2, 0.291, -2, -2},
				Left:      []int{1, -1, 3, -1, -1},
				Right:     []int{2, -1, 4, -1, -1},
				Value:     [][2]float64{{32, 30}, {30, 10}, {2, 20}, {2, 8}, {0, 12}},
				Impurity:  []float64{0.4995, 0.375, 0.1653, 0.32, 0},
			},
		},
	}
}

func rule(tree, depth, node int, outcome rulegen.Outcome, a rulegen.Action) rulegen.Rule {
	return rulegen.Rule{
		Table:  rulegen.TableID{Tree: tree, Depth: depth},
		Match:  rulegen.Match{CurrentNodeID: node, Outcome: outcome},
		Action: a,
	}
}

func TestCompile(t *testing.T) {
	const (
		none = rulegen.OutcomeNone
		le   = rulegen.OutcomeLessEqual
		gt   = rulegen.OutcomeGreater
	)
	rules, err := rulegen.Compile(testForest(), testIDs, nil)
	require.NoError(t, err)

	want := []rulegen.Rule{
		rule(1, 0, 0, none, rulegen.Compare{FeatureID: 4, Threshold: 31, NextNodeID: 1}),
		rule(1, 1, 1, le, rulegen.Compare{FeatureID: 5, Threshold: 15005, NextNodeID: 1}),
		rule(1, 1, 1, gt, rulegen.Classify{TreeIndex: 1, Class: 1, Impurity: 64}),
		rule(1, 2, 2, le, rulegen.Classify{TreeIndex: 1, Class: 0, Impurity: 0}),
		rule(1, 2, 2, gt, rulegen.Classify{TreeIndex: 1, Class: 1, Impurity: 500}),
		rule(2, 0, 0, none, rulegen.Compare{FeatureID: 6, Threshold: 100, NextNodeID: 1}),
		rule(2, 1, 1, le, rulegen.Classify{TreeIndex: 2, Class: 0, Impurity: 375}),
		rule(2, 1, 1, gt, rulegen.Compare{FeatureID: 4, Threshold: 2, NextNodeID: 2}),
		rule(2, 2, 3, le, rulegen.Classify{TreeIndex: 2, Class: 1, Impurity: 320}),
		rule(2, 2, 3, gt, rulegen.Classify{TreeIndex: 2, Class: 1, Impurity: 0}),
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileTieBreak(t *testing.T) {
	rules, err := rulegen.Compile(testForest(), testIDs, nil,
		rulegen.WithTieBreak(vote.TieBreakNegative))
	require.NoError(t, err)
	// Leaf 3 of tree 1 holds equal class counts.
	assert.Equal(t, rulegen.Classify{TreeIndex: 1, Class: 0, Impurity: 500}, rules[4].Action)
}

func TestCompilePacketsCount(t *testing.T) {
	rules, err := rulegen.Compile(testForest(), testIDs, nil, rulegen.WithPacketsCount(8))
	require.NoError(t, err)
	for _, r := range rules {
		if c, ok := r.Action.(rulegen.Compare); ok {
			assert.Equal(t, 8, c.PacketsCount)
			params := c.Params()
			assert.Equal(t, rulegen.Param{Name: "packets_count", Value: 8}, params[len(params)-1])
		}
	}
	assert.Equal(t,
		"table_cmp_feature_tree_1_level_0, 0, 0, compare_feature, 4, 31, 1, 8",
		rules[0].String())
}

func TestCompileRuleCount(t *testing.T) {
	forest := testForest()
	rules, err := rulegen.Compile(forest, testIDs, nil)
	require.NoError(t, err)

	internal := 0
	for i := range forest.Trees {
		for n := 0; n < forest.Trees[i].Len(); n++ {
			if !forest.Trees[i].IsLeaf(n) {
				internal++
			}
		}
	}
	assert.Len(t, rules, 2*internal+len(forest.Trees))
}

func TestCompileKeysAndSuccessors(t *testing.T) {
	forest := testForest()
	rules, err := rulegen.Compile(forest, testIDs, nil)
	require.NoError(t, err)

	type key struct {
		table rulegen.TableID
		match rulegen.Match
	}
	seen := make(map[key]bool)
	nodeTables := make(map[int]map[int][]rulegen.TableID)
	for _, r := range rules {
		k := key{r.Table, r.Match}
		assert.False(t, seen[k], "duplicate key %v", k)
		seen[k] = true
		if nodeTables[r.Table.Tree] == nil {
			nodeTables[r.Table.Tree] = make(map[int][]rulegen.TableID)
		}
		tables := nodeTables[r.Table.Tree][r.Match.CurrentNodeID]
		if len(tables) == 0 || tables[len(tables)-1] != r.Table {
			nodeTables[r.Table.Tree][r.Match.CurrentNodeID] = append(tables, r.Table)
		}
	}

	for _, r := range rules {
		c, ok := r.Action.(rulegen.Compare)
		if !ok {
			continue
		}
		next := c.NextNodeID + 1
		if r.Table.Depth == 0 {
			next = c.NextNodeID
		}
		tables := nodeTables[r.Table.Tree][next]
		require.Len(t, tables, 1, "node %d of tree %d", next, r.Table.Tree)
		assert.Equal(t, rulegen.TableID{Tree: r.Table.Tree, Depth: r.Table.Depth + 1}, tables[0])
	}
}

func TestCompileDeterministic(t *testing.T) {
	var outputs [2]bytes.Buffer
	for i := range outputs {
		rules, err := rulegen.Compile(testForest(), testIDs, nil)
		require.NoError(t, err)
		require.NoError(t, rulegen.WriteRecords(&outputs[i], rules))
	}
	assert.Equal(t, outputs[0].Bytes(), outputs[1].Bytes())
}

func TestCompileErrors(t *testing.T) {
	ids := rulegen.FeatureIDs{"bidirectional_duration_ms": 4, "src2dst_bytes": 5}
	rules, err := rulegen.Compile(testForest(), ids, nil)
	assert.ErrorIs(t, err, feature.ErrUnknownFeature)
	assert.Nil(t, rules)

	rules, err = rulegen.Compile(testForest(), testIDs, []string{"bidirectional_duration_ms"})
	assert.Error(t, err)
	assert.Nil(t, rules)
}

func TestCompileLeafRoot(t *testing.T) {
	forest := testForest()
	forest.Trees = append(forest.Trees, ensemble.Tree{
		Feature:   []int{-2},
		Threshold: []float64{-2},
		Left:      []int{-1},
		Right:     []int{-1},
		Value:     [][2]float64{{3, 9}},
		Impurity:  []float64{0.375},
	})
	rules, err := rulegen.Compile(forest, testIDs, nil)
	require.NoError(t, err)
	assert.Len(t, rules, 2*4+3)
	assert.Equal(t,
		rule(3, 0, 0, rulegen.OutcomeNone, rulegen.Classify{TreeIndex: 3, Class: 1, Impurity: 375}),
		rules[len(rules)-1])
}

func TestCompileSubset(t *testing.T) {
	forest := testForest()
	subset := []string{"src2dst_bytes", "dst2src_packets", "bidirectional_duration_ms"}
	rules, err := rulegen.Compile(forest, testIDs, subset)
	require.NoError(t, err)
	// Column 0 now names src2dst_bytes.
	assert.Equal(t, uint32(5), rules[0].Action.(rulegen.Compare).FeatureID)
}

func TestQuantize(t *testing.T) {
	testCases := map[string]struct {
		got  int64
		want int64
	}{
		"threshold 3.14":  {got: rulegen.QuantizeThreshold(3.14), want: 31},
		"threshold 0.291": {got: rulegen.QuantizeThreshold(0.291), want: 2},
		"threshold -1.25": {got: rulegen.QuantizeThreshold(-1.25), want: -12},
		"threshold 0.7":   {got: rulegen.QuantizeThreshold(0.7), want: 7},
		"impurity 0.4567": {got: rulegen.QuantizeImpurity(0.4567), want: 456},
		"impurity 0.291":  {got: rulegen.QuantizeImpurity(0.291), want: 291},
		"impurity 0":      {got: rulegen.QuantizeImpurity(0), want: 0},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestWriteRecords(t *testing.T) {
	rules, err := rulegen.Compile(testForest(), testIDs, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, rulegen.WriteRecords(&buf, rules[:3]))
	assert.Equal(t, strings.Join([]string{
		"table_cmp_feature_tree_1_level_0, 0, 0, compare_feature, 4, 31, 1",
		"table_cmp_feature_tree_1_level_1, 1, 1, compare_feature, 5, 15005, 1",
		"table_cmp_feature_tree_1_level_1, 1, 2, classify_flow, 1, 1, 64",
	}, "\n")+"\n", buf.String())
}

func TestWriteCLI(t *testing.T) {
	rules, err := rulegen.Compile(testForest(), testIDs, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, rulegen.WriteCLI(&buf, rules[:2], rulegen.DefaultForward()))
	assert.Equal(t, strings.Join([]string{
		"table_add table_cmp_feature_tree_1_level_0 compare_feature 0 0 => 4 31 1",
		"table_add table_cmp_feature_tree_1_level_1 compare_feature 1 1 => 5 15005 1",
		"table_add forward_table ipv4_forward 10.0.0.1/32 => 0",
		"table_add forward_table ipv4_forward 10.0.0.3/32 => 1",
	}, "\n")+"\n", buf.String())
}

func TestTables(t *testing.T) {
	tables := rulegen.Tables(testForest())
	require.Len(t, tables, 6)
	assert.Equal(t, "table_cmp_feature_tree_1_level_0", tables[0].Name())
	assert.Equal(t, "table_cmp_feature_tree_2_level_2", tables[5].Name())
}
