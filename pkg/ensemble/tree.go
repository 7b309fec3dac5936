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

// Package ensemble holds the trained classifiers of the intrusion detector:
// the tree ensemble mirrored into the switch tables and the auxiliary models
// the controller runs in software.
package ensemble

import (
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

const (
	// Undefined is the feature index of a leaf.
	Undefined = -2
	// NoChild is the child index of a leaf.
	NoChild = -1
)

// Tree is a binary decision tree stored as parallel slices indexed by node.
// Node 0 is the root. A node is a leaf iff its feature is Undefined.
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	// Value holds the per-class sample counts (or fractions) of each node.
	Value    [][2]float64
	Impurity []float64
	// LeafValue holds the additive leaf scores of boosted trees.
	LeafValue []float64
}

// DecisionNode is a read-only view of a single node.
type DecisionNode struct {
	Index     int
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     [2]float64
	Impurity  float64
}

// IsLeaf reports whether the node is a leaf.
func (n DecisionNode) IsLeaf() bool {
	return n.Feature == Undefined
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Feature)
}

// IsLeaf reports whether node i is a leaf.
func (t *Tree) IsLeaf(i int) bool {
	return t.Feature[i] == Undefined
}

// Node returns the view of node i.
func (t *Tree) Node(i int) DecisionNode {
	n := DecisionNode{
		Index:     i,
		Feature:   t.Feature[i],
		Threshold: t.Threshold[i],
		Left:      t.Left[i],
		Right:     t.Right[i],
	}
	if t.Value != nil {
		n.Value = t.Value[i]
	}
	if t.Impurity != nil {
		n.Impurity = t.Impurity[i]
	}
	return n
}

// Validate checks that the slices describe a tree over nFeatures features:
// consistent lengths, children in range and every node reachable exactly
// once from the root.
func (t *Tree) Validate(nFeatures int) error {
	n := len(t.Feature)
	if n == 0 {
		return serrors.New("empty tree")
	}
	for name, l := range map[string]int{
		"threshold": len(t.Threshold),
		"left":      len(t.Left),
		"right":     len(t.Right),
	} {
		if l != n {
			return serrors.New("slice length mismatch", "slice", name, "expected", n, "actual", l)
		}
	}
	if t.Value != nil && len(t.Value) != n {
		return serrors.New("slice length mismatch", "slice", "value", "expected", n,
			"actual", len(t.Value))
	}
	if t.Impurity != nil && len(t.Impurity) != n {
		return serrors.New("slice length mismatch", "slice", "impurity", "expected", n,
			"actual", len(t.Impurity))
	}
	if t.LeafValue != nil && len(t.LeafValue) != n {
		return serrors.New("slice length mismatch", "slice", "leaf_value", "expected", n,
			"actual", len(t.LeafValue))
	}

	seen := make([]bool, n)
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[i] {
			return serrors.New("node reached twice", "node", i)
		}
		seen[i] = true
		if t.IsLeaf(i) {
			continue
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return serrors.New("feature out of range", "node", i, "feature", f,
				"features", nFeatures)
		}
		for _, c := range []int{t.Right[i], t.Left[i]} {
			if c <= 0 || c >= n {
				return serrors.New("child out of range", "node", i, "child", c)
			}
			stack = append(stack, c)
		}
	}
	for i, ok := range seen {
		if !ok {
			return serrors.New("unreachable node", "node", i)
		}
	}
	return nil
}

// apply returns the leaf reached by x. goLeft decides the branch at each
// split.
func (t *Tree) apply(x []float64, goLeft func(v, thr float64) bool) int {
	i := 0
	for !t.IsLeaf(i) {
		if goLeft(x[t.Feature[i]], t.Threshold[i]) {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return i
}

// Depth returns the depth of the deepest node, the root being at depth 0.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		if t.IsLeaf(i) {
			return d
		}
		return max(walk(t.Left[i], d+1), walk(t.Right[i], d+1))
	}
	return walk(0, 0)
}

// Leaves returns the leaf indices in pre-order.
func (t *Tree) Leaves() []int {
	var leaves []int
	var walk func(i int)
	walk = func(i int) {
		if t.IsLeaf(i) {
			leaves = append(leaves, i)
			return
		}
		walk(t.Left[i])
		walk(t.Right[i])
	}
	walk(0)
	return leaves
}

func lessEqual(v, thr float64) bool { return v <= thr }

func less(v, thr float64) bool { return v < thr }

func checkInput(x []float64, features []string) error {
	if len(x) != len(features) {
		return serrors.New("feature vector length mismatch",
			"expected", len(features), "actual", len(x))
	}
	return nil
}
