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

// Package vote combines the class probabilities of independently trained
// binary classifiers.
package vote

import (
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// Classifier predicts the probabilities of the two classes for a feature
// vector.
type Classifier interface {
	Name() string
	PredictProba(x []float64) ([2]float64, error)
}

// TieBreak selects the class when both classes are equally likely. The same
// policy applies to leaf classes in the compiled rules and to the controller
// vote.
type TieBreak int

const (
	// TieBreakPositive selects class 1.
	TieBreakPositive TieBreak = iota
	// TieBreakNegative selects class 0.
	TieBreakNegative
)

func (t TieBreak) String() string {
	if t == TieBreakNegative {
		return "negative"
	}
	return "positive"
}

// Class returns the class selected on a tie.
func (t TieBreak) Class() int {
	if t == TieBreakNegative {
		return 0
	}
	return 1
}

// MarshalText implements encoding.TextMarshaler.
func (t TieBreak) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TieBreak) UnmarshalText(b []byte) error {
	switch string(b) {
	case "positive", "":
		*t = TieBreakPositive
	case "negative":
		*t = TieBreakNegative
	default:
		return serrors.New("invalid tie break", "value", string(b))
	}
	return nil
}

// Argmax returns the more likely class of p.
func Argmax(p [2]float64, tie TieBreak) int {
	switch {
	case p[0] > p[1]:
		return 0
	case p[1] > p[0]:
		return 1
	default:
		return tie.Class()
	}
}

// WeightedAverage averages the probability vectors with fixed weights.
func WeightedAverage(probas [][2]float64, weights []float64) ([2]float64, error) {
	if len(probas) == 0 {
		return [2]float64{}, serrors.New("no probabilities")
	}
	if len(probas) != len(weights) {
		return [2]float64{}, serrors.New("weight count mismatch",
			"probabilities", len(probas), "weights", len(weights))
	}
	var sum float64
	var avg [2]float64
	for i, p := range probas {
		w := weights[i]
		if w < 0 {
			return [2]float64{}, serrors.New("negative weight", "index", i, "weight", w)
		}
		sum += w
		avg[0] += w * p[0]
		avg[1] += w * p[1]
	}
	if sum == 0 {
		return [2]float64{}, serrors.New("weights sum to zero")
	}
	avg[0] /= sum
	avg[1] /= sum
	return avg, nil
}
