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

var _ vote.Classifier = (*MLP)(nil)

// Layer kinds.
const (
	Dense     = "dense"
	ReLU      = "relu"
	LeakyReLU = "leaky_relu"
	Sigmoid   = "sigmoid"
	BatchNorm = "batch_norm"
)

// Layer is one layer of a feed-forward network.
type Layer struct {
	Kind string `yaml:"kind"`
	// Weights of a dense layer, one row per output unit.
	Weights [][]float64 `yaml:"weights,omitempty"`
	Bias    []float64   `yaml:"bias,omitempty"`
	// Alpha is the negative slope of a leaky ReLU.
	Alpha float64 `yaml:"alpha,omitempty"`
	// Batch normalization parameters.
	Mean     []float64 `yaml:"mean,omitempty"`
	Variance []float64 `yaml:"variance,omitempty"`
	Gamma    []float64 `yaml:"gamma,omitempty"`
	Beta     []float64 `yaml:"beta,omitempty"`
	Epsilon  float64   `yaml:"epsilon,omitempty"`
}

// MLP is a feed-forward network with a single sigmoid output p, read as the
// probability of class 1.
type MLP struct {
	Label    string
	Features []string
	Layers   []Layer
}

// Name implements vote.Classifier.
func (m *MLP) Name() string {
	if m.Label == "" {
		return "mlp"
	}
	return m.Label
}

// Validate checks layer shapes and that the network ends in a single sigmoid
// unit.
func (m *MLP) Validate() error {
	if len(m.Layers) == 0 || m.Layers[len(m.Layers)-1].Kind != Sigmoid {
		return serrors.New("network must end with a sigmoid layer")
	}
	width := len(m.Features)
	for i, l := range m.Layers {
		switch l.Kind {
		case Dense:
			if len(l.Weights) == 0 || len(l.Bias) != len(l.Weights) {
				return serrors.New("invalid dense layer", "layer", i,
					"units", len(l.Weights), "bias", len(l.Bias))
			}
			for _, row := range l.Weights {
				if len(row) != width {
					return serrors.New("dense input mismatch", "layer", i,
						"expected", width, "actual", len(row))
				}
			}
			width = len(l.Weights)
		case BatchNorm:
			for _, s := range [][]float64{l.Mean, l.Variance, l.Gamma, l.Beta} {
				if len(s) != width {
					return serrors.New("batch norm size mismatch", "layer", i,
						"expected", width, "actual", len(s))
				}
			}
		case ReLU, LeakyReLU, Sigmoid:
		default:
			return serrors.New("unknown layer kind", "layer", i, "kind", l.Kind)
		}
	}
	if width != 1 {
		return serrors.New("network must have a single output", "outputs", width)
	}
	return nil
}

// PredictProba implements vote.Classifier. x is ordered as m.Features.
func (m *MLP) PredictProba(x []float64) ([2]float64, error) {
	if err := checkInput(x, m.Features); err != nil {
		return [2]float64{}, err
	}
	v := append([]float64(nil), x...)
	for _, l := range m.Layers {
		v = l.forward(v)
	}
	p := v[0]
	return [2]float64{1 - p, p}, nil
}

func (l Layer) forward(in []float64) []float64 {
	switch l.Kind {
	case Dense:
		out := make([]float64, len(l.Weights))
		for j, row := range l.Weights {
			sum := l.Bias[j]
			for k, w := range row {
				sum += w * in[k]
			}
			out[j] = sum
		}
		return out
	case ReLU:
		for i, v := range in {
			in[i] = math.Max(0, v)
		}
	case LeakyReLU:
		for i, v := range in {
			if v < 0 {
				in[i] = l.Alpha * v
			}
		}
	case Sigmoid:
		for i, v := range in {
			in[i] = sigmoid(v)
		}
	case BatchNorm:
		for i, v := range in {
			in[i] = l.Gamma[i]*(v-l.Mean[i])/math.Sqrt(l.Variance[i]+l.Epsilon) + l.Beta[i]
		}
	}
	return in
}
