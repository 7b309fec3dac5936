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

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons reported by the dropped requests counter.
const (
	DropDecode           = "decode"
	DropUnexpectedOpcode = "unexpected_opcode"
	DropMissingFeature   = "missing_feature"
	DropModel            = "model"
	DropEncode           = "encode"
)

// Metrics defines the controller metrics.
type Metrics struct {
	RequestsTotal              prometheus.Counter
	ResponsesTotal             prometheus.Counter
	DroppedRequestsTotal       *prometheus.CounterVec
	ModelInferenceSecondsTotal *prometheus.CounterVec
	PredictedClassTotal        *prometheus.CounterVec
	InstalledRulesTotal        prometheus.Counter
	SwitchCounterPackets       *prometheus.GaugeVec
}

// NewMetrics initializes the controller metrics and registers them with the
// default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith initializes the controller metrics and registers them with
// reg. A nil reg leaves them unregistered.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cmlids_controller_requests_total",
				Help: "Total number of classification requests received from the switch.",
			},
		),
		ResponsesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cmlids_controller_responses_total",
				Help: "Total number of classification responses sent to the switch.",
			},
		),
		DroppedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmlids_controller_dropped_requests_total",
				Help: "Total number of requests dropped without a response.",
			},
			[]string{"reason"},
		),
		ModelInferenceSecondsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmlids_controller_model_inference_seconds_total",
				Help: "Total time spent in model inference.",
			},
			[]string{"model"},
		),
		PredictedClassTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmlids_controller_predicted_class_total",
				Help: "Total number of verdicts per class.",
			},
			[]string{"class"},
		),
		InstalledRulesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cmlids_controller_installed_rules_total",
				Help: "Total number of table entries written to the switch.",
			},
		),
		SwitchCounterPackets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cmlids_switch_counter_packets",
				Help: "Last packet count read from a switch counter.",
			},
			[]string{"counter"},
		),
	}
}
