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

package ensemble

import (
	"math"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/vote"
)

var (
	_ vote.Classifier = (*Forest)(nil)
	_ vote.Classifier = (*Boosted)(nil)
)

// Forest is a random forest of classification trees. A sample goes left at a
// split iff its value is at most the threshold. The class probabilities are
// the mean of the normalized leaf values of all trees.
type Forest struct {
	Label    string
	Features []string
	Trees    []Tree
}

// Name implements vote.Classifier.
func (f *Forest) Name() string {
	if f.Label == "" {
		return "forest"
	}
	return f.Label
}

// Validate checks every tree of the forest.
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 {
		return serrors.New("forest without trees")
	}
	for i := range f.Trees {
		if f.Trees[i].Value == nil {
			return serrors.New("tree without class values", "tree", i)
		}
		if err := f.Trees[i].Validate(len(f.Features)); err != nil {
			return serrors.Wrap("invalid tree", err, "tree", i)
		}
	}
	return nil
}

// PredictProba implements vote.Classifier. x is ordered as f.Features.
func (f *Forest) PredictProba(x []float64) ([2]float64, error) {
	if err := checkInput(x, f.Features); err != nil {
		return [2]float64{}, err
	}
	var p [2]float64
	for i := range f.Trees {
		t := &f.Trees[i]
		v := t.Value[t.apply(x, lessEqual)]
		sum := v[0] + v[1]
		if sum == 0 {
			return [2]float64{}, serrors.New("leaf without samples", "tree", i)
		}
		p[0] += v[0] / sum
		p[1] += v[1] / sum
	}
	n := float64(len(f.Trees))
	return [2]float64{p[0] / n, p[1] / n}, nil
}

// MaxDepth returns the depth of the deepest tree.
func (f *Forest) MaxDepth() int {
	depth := 0
	for i := range f.Trees {
		depth = max(depth, f.Trees[i].Depth())
	}
	return depth
}

// LeafIndexes returns, per tree, the pre-order leaf indices shifted by one as
// they appear in the node ids of the switch tables.
func (f *Forest) LeafIndexes() [][]int {
	out := make([][]int, 0, len(f.Trees))
	for i := range f.Trees {
		leaves := f.Trees[i].Leaves()
		for j := range leaves {
			leaves[j]++
		}
		out = append(out, leaves)
	}
	return out
}

// Boosted is a gradient boosted binary classifier. A sample goes left at a
// split iff its value is below the threshold. The positive probability is
// the sigmoid of the logit of the base score plus the sum of leaf scores.
type Boosted struct {
	Label     string
	Features  []string
	BaseScore float64
	Trees     []Tree
}

// Name implements vote.Classifier.
func (b *Boosted) Name() string {
	if b.Label == "" {
		return "boosted"
	}
	return b.Label
}

// Validate checks every tree and the base score.
func (b *Boosted) Validate() error {
	if len(b.Trees) == 0 {
		return serrors.New("boosted model without trees")
	}
	if b.BaseScore <= 0 || b.BaseScore >= 1 {
		return serrors.New("base score out of range", "base_score", b.BaseScore)
	}
	for i := range b.Trees {
		if b.Trees[i].LeafValue == nil {
			return serrors.New("tree without leaf values", "tree", i)
		}
		if err := b.Trees[i].Validate(len(b.Features)); err != nil {
			return serrors.Wrap("invalid tree", err, "tree", i)
		}
	}
	return nil
}

// PredictProba implements vote.Classifier. x is ordered as b.Features.
func (b *Boosted) PredictProba(x []float64) ([2]float64, error) {
	if err := checkInput(x, b.Features); err != nil {
		return [2]float64{}, err
	}
	margin := math.Log(b.BaseScore / (1 - b.BaseScore))
	for i := range b.Trees {
		t := &b.Trees[i]
		margin += t.LeafValue[t.apply(x, less)]
	}
	p := sigmoid(margin)
	return [2]float64{1 - p, p}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
