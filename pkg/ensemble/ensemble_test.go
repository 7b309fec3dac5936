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

package ensemble_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/pkg/ensemble"
)

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func TestForest(t *testing.T) {
	f, err := ensemble.LoadForest("testdata/forest.yaml")
	require.NoError(t, err)

	assert.Equal(t, "rf", f.Name())
	assert.Equal(t, 2, f.MaxDepth())
	assert.Equal(t, [][]int{{3, 4, 5}, {2, 4, 5}}, f.LeafIndexes())

	testCases := map[string]struct {
		x    []float64
		want [2]float64
	}{
		"left leaves": {
			x:    []float64{1.0, 100, 5},
			want: [2]float64{(1 + 0.75) / 2, (0 + 0.25) / 2},
		},
		"threshold goes left": {
			x:    []float64{3.14, 1500.5, 10},
			want: [2]float64{(1 + 0.75) / 2, (0 + 0.25) / 2},
		},
		"right leaves": {
			x:    []float64{4, 0, 11},
			want: [2]float64{(1.0/30 + 0) / 2, (29.0/30 + 1) / 2},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			p, err := f.PredictProba(tc.x)
			require.NoError(t, err)
			assert.InDelta(t, tc.want[0], p[0], 1e-9)
			assert.InDelta(t, tc.want[1], p[1], 1e-9)
		})
	}

	_, err = f.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestBoosted(t *testing.T) {
	m, err := ensemble.Load("testdata/boosted.yaml")
	require.NoError(t, err)
	assert.Equal(t, "xgb", m.Name())

	// Boosted trees send values equal to the threshold right.
	p, err := m.PredictProba([]float64{3.0, 0})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(2), p[1], 1e-9)
	assert.InDelta(t, 1-sigmoid(2), p[0], 1e-9)

	p, err = m.PredictProba([]float64{1.0, 0})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(-1), p[1], 1e-9)
}

func TestMLP(t *testing.T) {
	m, err := ensemble.Load("testdata/mlp.yaml")
	require.NoError(t, err)
	assert.Equal(t, "nn", m.Name())

	p, err := m.PredictProba([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(2), p[1], 1e-9)

	p, err = m.PredictProba([]float64{-5, 1})
	require.NoError(t, err)
	assert.InDelta(t, sigmoid(-1), p[1], 1e-9)
	assert.InDelta(t, 1-sigmoid(-1), p[0], 1e-9)

	// The input vector is left untouched.
	x := []float64{-5, 1}
	_, err = m.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{-5, 1}, x)
}

func TestLoadCompressed(t *testing.T) {
	raw, err := os.ReadFile("testdata/forest.yaml")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "forest.yaml"+ensemble.CompressedSuffix)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, enc.EncodeAll(raw, nil), 0o644))
	require.NoError(t, enc.Close())

	f, err := ensemble.LoadForest(path)
	require.NoError(t, err)
	assert.Len(t, f.Trees, 2)
}

func TestDecodeErrors(t *testing.T) {
	testCases := map[string]string{
		"unknown kind": "kind: svm\nfeatures: [a]\n",
		"unknown key":  "kind: forest\nfeatures: [a]\ncolor: red\n",
		"no features":  "kind: forest\ntrees:\n  - feature: [-2]\n    threshold: [-2]\n    left: [-1]\n    right: [-1]\n    value: [[1, 0]]\n",
		"no trees":     "kind: forest\nfeatures: [a]\n",
		"three classes": "kind: forest\nfeatures: [a]\ntrees:\n" +
			"  - feature: [-2]\n    threshold: [-2]\n    left: [-1]\n    right: [-1]\n    value: [[1, 0, 2]]\n",
		"child out of range": "kind: forest\nfeatures: [a]\ntrees:\n" +
			"  - feature: [0]\n    threshold: [1]\n    left: [1]\n    right: [2]\n    value: [[1, 0]]\n",
		"cycle": "kind: forest\nfeatures: [a]\ntrees:\n" +
			"  - feature: [0, 0, -2]\n    threshold: [1, 1, -2]\n    left: [1, 1, -1]\n" +
			"    right: [2, 2, -1]\n    value: [[1, 0], [1, 0], [1, 0]]\n",
		"feature out of range": "kind: forest\nfeatures: [a]\ntrees:\n" +
			"  - feature: [1, -2, -2]\n    threshold: [1, -2, -2]\n    left: [1, -1, -1]\n" +
			"    right: [2, -1, -1]\n    value: [[1, 0], [1, 0], [1, 0]]\n",
		"length mismatch": "kind: forest\nfeatures: [a]\ntrees:\n" +
			"  - feature: [-2]\n    threshold: [-2, 1]\n    left: [-1]\n    right: [-1]\n    value: [[1, 0]]\n",
		"boosted without leaf values": "kind: boosted\nfeatures: [a]\ntrees:\n" +
			"  - feature: [-2]\n    threshold: [-2]\n    left: [-1]\n    right: [-1]\n",
		"mlp without sigmoid": "kind: mlp\nfeatures: [a]\nlayers:\n" +
			"  - kind: dense\n    weights: [[1]]\n    bias: [0]\n",
		"mlp shape": "kind: mlp\nfeatures: [a]\nlayers:\n" +
			"  - kind: dense\n    weights: [[1, 2]]\n    bias: [0]\n  - kind: sigmoid\n",
		"mlp two outputs": "kind: mlp\nfeatures: [a]\nlayers:\n" +
			"  - kind: dense\n    weights: [[1], [2]]\n    bias: [0, 0]\n  - kind: sigmoid\n",
	}
	for name, text := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ensemble.Decode(strings.NewReader(text))
			assert.Error(t, err)
		})
	}
}

func TestDecodeDefaultFeatures(t *testing.T) {
	const noFeatures = "kind: forest\ntrees:\n" +
		"  - feature: [1, -2, -2]\n    threshold: [0.5, -2, -2]\n    left: [1, -1, -1]\n" +
		"    right: [2, -1, -1]\n    value: [[3, 1], [0, 4], [1, 1]]\n"
	const ownFeatures = "kind: forest\nfeatures: [x, y]\ntrees:\n" +
		"  - feature: [1, -2, -2]\n    threshold: [0.5, -2, -2]\n    left: [1, -1, -1]\n" +
		"    right: [2, -1, -1]\n    value: [[3, 1], [0, 4], [1, 1]]\n"
	used := []string{"Total Fwd Packets", "Flow Duration"}

	testCases := map[string]struct {
		input     string
		opts      []ensemble.LoadOption
		features  []string
		assertErr assert.ErrorAssertionFunc
	}{
		"used features fill in": {
			input:     noFeatures,
			opts:      []ensemble.LoadOption{ensemble.WithFeatures(used)},
			features:  used,
			assertErr: assert.NoError,
		},
		"own features win": {
			input:     ownFeatures,
			opts:      []ensemble.LoadOption{ensemble.WithFeatures(used)},
			features:  []string{"x", "y"},
			assertErr: assert.NoError,
		},
		"no features at all": {
			input:     noFeatures,
			assertErr: assert.Error,
		},
		"used features too short": {
			input:     noFeatures,
			opts:      []ensemble.LoadOption{ensemble.WithFeatures(used[:1])},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			m, err := ensemble.Decode(strings.NewReader(tc.input), tc.opts...)
			tc.assertErr(t, err)
			if err != nil {
				return
			}
			f, ok := m.(*ensemble.Forest)
			require.True(t, ok)
			assert.Equal(t, tc.features, f.Features)
		})
	}
}

func TestTreeNode(t *testing.T) {
	f, err := ensemble.LoadForest("testdata/forest.yaml")
	require.NoError(t, err)
	tree := &f.Trees[1]

	root := tree.Node(0)
	assert.False(t, root.IsLeaf())
	assert.Equal(t, 2, root.Feature)
	assert.Equal(t, 2, root.Right)

	leaf := tree.Node(1)
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, [2]float64{30, 10}, leaf.Value)
	assert.Equal(t, 0.375, leaf.Impurity)
	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, 2, tree.Depth())
}
