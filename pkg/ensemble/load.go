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
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v2"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/vote"
)

// Model kinds of a model file.
const (
	KindForest  = "forest"
	KindBoosted = "boosted"
	KindMLP     = "mlp"
)

// CompressedSuffix marks zstd compressed model files.
const CompressedSuffix = ".zst"

type modelFile struct {
	Kind      string     `yaml:"kind"`
	Label     string     `yaml:"label,omitempty"`
	Features  []string   `yaml:"features"`
	BaseScore float64    `yaml:"base_score,omitempty"`
	Trees     []treeFile `yaml:"trees,omitempty"`
	Layers    []Layer    `yaml:"layers,omitempty"`
}

type treeFile struct {
	Feature   []int       `yaml:"feature"`
	Threshold []float64   `yaml:"threshold"`
	Left      []int       `yaml:"left"`
	Right     []int       `yaml:"right"`
	Value     [][]float64 `yaml:"value,omitempty"`
	Impurity  []float64   `yaml:"impurity,omitempty"`
	LeafValue []float64   `yaml:"leaf_value,omitempty"`
}

func (tf treeFile) tree() (Tree, error) {
	t := Tree{
		Feature:   tf.Feature,
		Threshold: tf.Threshold,
		Left:      tf.Left,
		Right:     tf.Right,
		Impurity:  tf.Impurity,
		LeafValue: tf.LeafValue,
	}
	if tf.Value != nil {
		t.Value = make([][2]float64, 0, len(tf.Value))
		for i, v := range tf.Value {
			if len(v) != 2 {
				return Tree{}, serrors.New("value must hold two classes", "node", i,
					"classes", len(v))
			}
			t.Value = append(t.Value, [2]float64{v[0], v[1]})
		}
	}
	return t, nil
}

type loadOptions struct {
	features []string
}

// LoadOption configures Load and Decode.
type LoadOption func(*loadOptions)

// WithFeatures sets the feature names of models whose file does not list
// them.
func WithFeatures(names []string) LoadOption {
	return func(o *loadOptions) { o.features = names }
}

// Load reads the model stored at path. Paths ending in CompressedSuffix are
// decompressed with zstd.
func Load(path string, opts ...LoadOption) (vote.Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.Wrap("opening model", err, "path", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, CompressedSuffix) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, serrors.Wrap("opening zstd stream", err, "path", path)
		}
		defer dec.Close()
		r = dec
	}
	m, err := Decode(r, opts...)
	if err != nil {
		return nil, serrors.Wrap("loading model", err, "path", path)
	}
	return m, nil
}

// LoadForest reads a forest model file.
func LoadForest(path string, opts ...LoadOption) (*Forest, error) {
	m, err := Load(path, opts...)
	if err != nil {
		return nil, err
	}
	f, ok := m.(*Forest)
	if !ok {
		return nil, serrors.New("not a forest model", "path", path, "model", m.Name())
	}
	return f, nil
}

// Decode reads a YAML (or JSON) model description and validates it. A model
// without features takes the names given by WithFeatures.
func Decode(r io.Reader, opts ...LoadOption) (vote.Classifier, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, serrors.Wrap("reading model", err)
	}
	var mf modelFile
	if err := yaml.UnmarshalStrict(raw, &mf); err != nil {
		return nil, serrors.Wrap("decoding model", err)
	}
	if len(mf.Features) == 0 {
		mf.Features = o.features
	}
	if len(mf.Features) == 0 {
		return nil, serrors.New("model without features", "kind", mf.Kind)
	}
	var trees []Tree
	for i, tf := range mf.Trees {
		t, err := tf.tree()
		if err != nil {
			return nil, serrors.Wrap("decoding tree", err, "tree", i)
		}
		trees = append(trees, t)
	}

	var m interface {
		vote.Classifier
		Validate() error
	}
	switch mf.Kind {
	case KindForest:
		m = &Forest{Label: mf.Label, Features: mf.Features, Trees: trees}
	case KindBoosted:
		base := mf.BaseScore
		if base == 0 {
			base = 0.5
		}
		m = &Boosted{Label: mf.Label, Features: mf.Features, BaseScore: base, Trees: trees}
	case KindMLP:
		m = &MLP{Label: mf.Label, Features: mf.Features, Layers: mf.Layers}
	default:
		return nil, serrors.New("unknown model kind", "kind", mf.Kind)
	}
	if err := m.Validate(); err != nil {
		return nil, serrors.Wrap("invalid model", err, "kind", mf.Kind)
	}
	return m, nil
}
