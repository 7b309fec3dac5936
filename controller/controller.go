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

// Package controller classifies the flows the switch could not decide on.
// The switch sends the features of a flow as packet-in metadata; the
// controller runs every configured model, combines their probabilities with
// a weighted vote and answers with a packet-out carrying the class.
package controller

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/protocol"
	"github.com/cml-ids/cmlids/pkg/rulegen"
	"github.com/cml-ids/cmlids/pkg/vote"
	"github.com/cml-ids/cmlids/private/p4rt"
	"github.com/cml-ids/cmlids/private/storage/verdict"
)

// ErrRuleInstall indicates that writing a rule to the switch failed.
var ErrRuleInstall = errors.New("rule installation failed")

// Switch exchanges packets with the switch.
type Switch interface {
	// Recv blocks until the next packet-in and returns its metadata.
	Recv(ctx context.Context) ([]protocol.Metadata, error)
	// Send emits a packet-out with the given metadata.
	Send(ctx context.Context, md []protocol.Metadata) error
}

// Installer writes table entries to the switch.
type Installer interface {
	InsertRule(ctx context.Context, r rulegen.Rule) error
	InsertForward(ctx context.Context, e rulegen.ForwardEntry) error
}

// VerdictStore records verdicts.
type VerdictStore interface {
	InsertVerdict(ctx context.Context, v verdict.Verdict) error
}

// CounterReader reads switch counters.
type CounterReader interface {
	ReadCounter(ctx context.Context, name string, index int64) (p4rt.CounterData, error)
}

// Model is a classifier taking part in the vote.
type Model struct {
	Classifier vote.Classifier
	Weight     float64
	// Features are the request fields fed to the classifier, in order.
	Features []string
}

// Controller answers classification requests. Configure the exported fields
// before calling Handle or Run and do not modify them afterwards.
type Controller struct {
	// Decoder maps packet-in metadata to requests.
	Decoder *protocol.Decoder
	// PacketOut are the packet-out header fields of the descriptor.
	PacketOut []p4info.Field
	// Models vote on every request.
	Models []Model
	// TieBreak selects the class when the vote is even.
	TieBreak vote.TieBreak
	// Metrics is optional.
	Metrics *Metrics
	// Store is optional. Failing to record a verdict does not affect the
	// response.
	Store VerdictStore

	stats Stats
}

// New returns a controller for the switch program described by desc. Every
// model feature must be a packet-in field of desc.
func New(desc *p4info.Descriptor, models []Model) (*Controller, error) {
	names, err := desc.PacketInIDToName()
	if err != nil {
		return nil, err
	}
	out, err := desc.PacketOutFields()
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, serrors.New("no models configured")
	}
	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		known[name] = struct{}{}
	}
	var weights float64
	for _, m := range models {
		if m.Classifier == nil {
			return nil, serrors.New("model without classifier")
		}
		if m.Weight < 0 {
			return nil, serrors.New("negative model weight",
				"model", m.Classifier.Name(), "weight", m.Weight)
		}
		weights += m.Weight
		for _, f := range m.Features {
			if _, ok := known[f]; !ok {
				return nil, serrors.Join(feature.ErrUnknownFeature, nil,
					"model", m.Classifier.Name(), "feature", f)
			}
		}
	}
	if weights == 0 {
		return nil, serrors.New("model weights sum to zero")
	}
	return &Controller{
		Decoder:   protocol.NewDecoder(names),
		PacketOut: out,
		Models:    models,
	}, nil
}

// Stats returns the running totals.
func (c *Controller) Stats() *Stats {
	return &c.stats
}

// Handle classifies the flow of a packet-in. It returns a nil response for
// requests that need no answer.
func (c *Controller) Handle(ctx context.Context, md []protocol.Metadata) (*protocol.Response, error) {
	req, err := c.Decoder.Decode(md)
	if err != nil {
		c.drop(DropDecode)
		return nil, err
	}
	switch {
	case req.Opcode == protocol.NoOp:
		return nil, nil
	case req.Opcode != protocol.ClassifyRequest || req.PacketType != protocol.PacketIn:
		c.drop(DropUnexpectedOpcode)
		return nil, serrors.Join(protocol.ErrMalformedRequest, nil,
			"packet_type", req.PacketType, "opcode", req.Opcode)
	}
	c.stats.addRequest()
	if c.Metrics != nil {
		c.Metrics.RequestsTotal.Inc()
	}

	inputs := make([][]float64, len(c.Models))
	for i, m := range c.Models {
		if inputs[i], err = req.Extract(m.Features); err != nil {
			c.drop(DropMissingFeature)
			return nil, err
		}
	}

	probas := make([][2]float64, len(c.Models))
	weights := make([]float64, len(c.Models))
	predictions := make([]verdict.Prediction, len(c.Models))
	for i, m := range c.Models {
		name := m.Classifier.Name()
		start := time.Now()
		p, err := m.Classifier.PredictProba(inputs[i])
		elapsed := time.Since(start)
		c.stats.addLatency(name, elapsed)
		if c.Metrics != nil {
			c.Metrics.ModelInferenceSecondsTotal.WithLabelValues(name).Add(elapsed.Seconds())
		}
		if err != nil {
			c.drop(DropModel)
			return nil, serrors.Wrap("running model", err, "model", name, "flow_id", req.FlowID)
		}
		probas[i], weights[i] = p, m.Weight
		predictions[i] = verdict.Prediction{Model: name, Proba: p, Latency: elapsed}
	}
	avg, err := vote.WeightedAverage(probas, weights)
	if err != nil {
		c.drop(DropModel)
		return nil, err
	}
	class := vote.Argmax(avg, c.TieBreak)
	if c.Metrics != nil {
		c.Metrics.PredictedClassTotal.WithLabelValues(strconv.Itoa(class)).Inc()
	}
	log.FromCtx(ctx).Debug("Classified flow", "flow_id", req.FlowID, "class", class,
		"proba", avg[1])

	if c.Store != nil {
		v := verdict.Verdict{
			FlowID:      req.FlowID,
			Class:       class,
			Proba:       avg,
			Predictions: predictions,
			Time:        time.Now(),
		}
		if err := c.Store.InsertVerdict(ctx, v); err != nil {
			log.FromCtx(ctx).Error("Failed to record verdict", "flow_id", req.FlowID, "err", err)
		}
	}
	return &protocol.Response{FlowID: req.FlowID, Class: class}, nil
}

// Run answers packet-ins from sw until ctx is done or the switch connection
// fails. Requests that cannot be answered are dropped.
func (c *Controller) Run(ctx context.Context, sw Switch) error {
	logger := log.FromCtx(ctx)
	for {
		md, err := sw.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return serrors.Wrap("receiving packet-in", err)
		}
		resp, err := c.Handle(ctx, md)
		if err != nil {
			logger.Info("Dropping request", "err", err)
			continue
		}
		if resp == nil {
			continue
		}
		out, err := protocol.EncodeFields(resp.Fields(), c.PacketOut)
		if err != nil {
			c.drop(DropEncode)
			logger.Error("Encoding response", "flow_id", resp.FlowID, "err", err)
			continue
		}
		if err := sw.Send(ctx, out); err != nil {
			return serrors.Wrap("sending packet-out", err, "flow_id", resp.FlowID)
		}
		c.stats.addResponse()
		if c.Metrics != nil {
			c.Metrics.ResponsesTotal.Inc()
		}
	}
}

// Install writes the compiled rules and the forwarding routes. The first
// failure aborts the installation.
func (c *Controller) Install(ctx context.Context, inst Installer,
	rules []rulegen.Rule, forward []rulegen.ForwardEntry) error {

	for i, r := range rules {
		if err := inst.InsertRule(ctx, r); err != nil {
			return serrors.Join(ErrRuleInstall, err, "rule", r.String(), "installed", i)
		}
		c.installed()
	}
	for i, e := range forward {
		if err := inst.InsertForward(ctx, e); err != nil {
			return serrors.Join(ErrRuleInstall, err,
				"prefix", e.Prefix, "installed", len(rules)+i)
		}
		c.installed()
	}
	log.FromCtx(ctx).Info("Installed rules", "rules", len(rules), "routes", len(forward))
	return nil
}

// PollCounters exports the packet counts of the named switch counters every
// interval until ctx is done.
func (c *Controller) PollCounters(ctx context.Context, r CounterReader,
	names []string, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.readCounters(ctx, r, names)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) readCounters(ctx context.Context, r CounterReader, names []string) {
	for _, name := range names {
		data, err := r.ReadCounter(ctx, name, 0)
		if err != nil {
			if ctx.Err() == nil {
				log.FromCtx(ctx).Info("Reading counter", "counter", name, "err", err)
			}
			continue
		}
		if c.Metrics != nil {
			c.Metrics.SwitchCounterPackets.WithLabelValues(name).Set(float64(data.PacketCount))
		}
	}
}

func (c *Controller) drop(reason string) {
	c.stats.addDrop(reason)
	if c.Metrics != nil {
		c.Metrics.DroppedRequestsTotal.WithLabelValues(reason).Inc()
	}
}

func (c *Controller) installed() {
	if c.Metrics != nil {
		c.Metrics.InstalledRulesTotal.Inc()
	}
}
