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

// Package rulegen compiles the trees of a random forest into the rules of
// the per-level comparison tables of the switch program.
//
// Every tree is walked in pre-order. Node ids in match keys are the native
// node index plus one, id 0 being the dummy root that seeds the comparison
// of the real root. A compare rule names the native index of the child it
// moves to; the switch adds one before using it as the next match key.
// Thresholds are stored with one decimal digit (scaled by 10) and leaf
// impurities with three (scaled by 1000), both truncated.
package rulegen

import (
	"math"

	"github.com/cml-ids/cmlids/pkg/ensemble"
	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/vote"
)

const (
	thresholdScale = 10
	impurityScale  = 1000
	// epsilon absorbs the representation error of products like 0.291*1000.
	epsilon = 1e-9
)

// FeatureIDs maps feature names to the ids the switch program compares on.
type FeatureIDs map[string]uint32

// Option configures Compile.
type Option func(*compiler)

// WithTieBreak sets the class of leaves with equal class counts.
func WithTieBreak(t vote.TieBreak) Option {
	return func(c *compiler) { c.tie = t }
}

// WithPacketsCount adds the packets_count parameter to every compare action.
func WithPacketsCount(n int) Option {
	return func(c *compiler) { c.packetsCount = n }
}

type compiler struct {
	ids          FeatureIDs
	subset       []string
	tie          vote.TieBreak
	packetsCount int
	rules        []Rule
}

// Compile translates every tree of the forest into table rules. subset maps
// the feature columns of the trees to feature names; nil uses the forest's
// own feature list. Compilation is all or nothing: on error no rules are
// returned.
func Compile(forest *ensemble.Forest, ids FeatureIDs, subset []string,
	opts ...Option) ([]Rule, error) {

	if subset == nil {
		subset = forest.Features
	}
	c := &compiler{ids: ids, subset: subset}
	for _, opt := range opts {
		opt(c)
	}
	for i := range forest.Trees {
		if err := c.tree(i+1, &forest.Trees[i]); err != nil {
			return nil, serrors.Wrap("compiling tree", err, "tree", i+1)
		}
	}
	return c.rules, nil
}

func (c *compiler) tree(index int, t *ensemble.Tree) error {
	if t.IsLeaf(0) {
		// A single leaf classifies every flow at the first table.
		c.emit(TableID{Tree: index, Depth: 0}, 0, OutcomeNone, c.classify(index, t, 0))
		return nil
	}
	root, err := c.compare(t, 0, 1)
	if err != nil {
		return err
	}
	c.emit(TableID{Tree: index, Depth: 0}, 0, OutcomeNone, root)
	return c.visit(index, t, 0, 1)
}

func (c *compiler) visit(tree int, t *ensemble.Tree, n, depth int) error {
	if t.IsLeaf(n) {
		return nil
	}
	table := TableID{Tree: tree, Depth: depth}
	children := [2]struct {
		index   int
		outcome Outcome
	}{
		{t.Left[n], OutcomeLessEqual},
		{t.Right[n], OutcomeGreater},
	}
	for _, child := range children {
		var action Action
		if t.IsLeaf(child.index) {
			action = c.classify(tree, t, child.index)
		} else {
			cmp, err := c.compare(t, child.index, child.index)
			if err != nil {
				return err
			}
			action = cmp
		}
		c.emit(table, n+1, child.outcome, action)
	}
	for _, child := range children {
		if err := c.visit(tree, t, child.index, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compare(t *ensemble.Tree, n, next int) (Compare, error) {
	column := t.Feature[n]
	if column < 0 || column >= len(c.subset) {
		return Compare{}, serrors.New("feature column out of range", "node", n,
			"column", column, "features", len(c.subset))
	}
	name := c.subset[column]
	id, ok := c.ids[name]
	if !ok {
		return Compare{}, serrors.Join(feature.ErrUnknownFeature, nil,
			"feature", name, "node", n)
	}
	return Compare{
		FeatureID:    id,
		Threshold:    QuantizeThreshold(t.Threshold[n]),
		NextNodeID:   next,
		PacketsCount: c.packetsCount,
	}, nil
}

func (c *compiler) classify(tree int, t *ensemble.Tree, n int) Classify {
	node := t.Node(n)
	return Classify{
		TreeIndex: tree,
		Class:     vote.Argmax(node.Value, c.tie),
		Impurity:  QuantizeImpurity(node.Impurity),
	}
}

func (c *compiler) emit(table TableID, node int, outcome Outcome, action Action) {
	c.rules = append(c.rules, Rule{
		Table:  table,
		Match:  Match{CurrentNodeID: node, Outcome: outcome},
		Action: action,
	})
}

// QuantizeThreshold scales a split threshold by 10 and truncates it.
func QuantizeThreshold(v float64) int64 {
	return truncate(v * thresholdScale)
}

// QuantizeImpurity scales a leaf impurity by 1000 and truncates it.
func QuantizeImpurity(v float64) int64 {
	return truncate(v * impurityScale)
}

func truncate(v float64) int64 {
	if v < 0 {
		return int64(math.Ceil(v - epsilon))
	}
	return int64(math.Floor(v + epsilon))
}
