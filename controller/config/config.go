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

// Package config contains the configuration of the controller.
package config

import (
	"io"
	"net/netip"
	"time"

	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/private/util"
	"github.com/cml-ids/cmlids/pkg/rulegen"
	"github.com/cml-ids/cmlids/pkg/vote"
	"github.com/cml-ids/cmlids/private/config"
	"github.com/cml-ids/cmlids/private/env"
	"github.com/cml-ids/cmlids/private/p4rt"
	"github.com/cml-ids/cmlids/private/storage"
)

// Defaults.
const (
	DefaultSwitchAddress   = "127.0.0.1:50051"
	DefaultElectionID      = 1
	DefaultCounterInterval = 10 * time.Second

	DefaultForestWeight  = 1.9
	DefaultBoostedWeight = 2.5
	DefaultMLPWeight     = 1.0
)

var _ config.Config = (*Config)(nil)

type Config struct {
	General        env.General      `toml:"general,omitempty"`
	Logging        log.Config       `toml:"log,omitempty"`
	Metrics        env.Metrics      `toml:"metrics,omitempty"`
	Switch         Switch           `toml:"switch,omitempty"`
	Models         Models           `toml:"models,omitempty"`
	Features       Features         `toml:"features,omitempty"`
	Classification Classification   `toml:"classification,omitempty"`
	Verdicts       storage.DBConfig `toml:"verdicts,omitempty"`
}

func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Switch,
		&cfg.Models,
		&cfg.Features,
		&cfg.Classification,
		&cfg.Verdicts,
	)
}

func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Switch,
		&cfg.Models,
		&cfg.Features,
		&cfg.Classification,
		&cfg.Verdicts,
	)
}

func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, config.CtxMap{config.ID: "controller"},
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Switch,
		&cfg.Models,
		&cfg.Features,
		&cfg.Classification,
		&cfg.Verdicts,
	)
}

// LogConfig returns the log block.
func (cfg *Config) LogConfig() log.Config {
	return cfg.Logging
}

// ServiceID returns the id of the controller instance.
func (cfg *Config) ServiceID() string {
	return cfg.General.ID
}

// Switch holds the connection to the P4Runtime server of the switch.
type Switch struct {
	// Address is the gRPC address of the switch.
	Address string `toml:"address,omitempty"`
	// DeviceID is the P4Runtime device id.
	DeviceID uint64 `toml:"device_id,omitempty"`
	// ElectionID is the election id used during arbitration.
	ElectionID uint64 `toml:"election_id,omitempty"`
	// P4Info is the text format p4info of the switch program.
	P4Info string `toml:"p4info,omitempty"`
	// DeviceConfig is the compiled switch program, e.g. the bmv2 JSON.
	DeviceConfig string `toml:"device_config,omitempty"`
	// PushPipeline installs P4Info and DeviceConfig on the switch before
	// the rules are written.
	PushPipeline bool `toml:"push_pipeline,omitempty"`
	// CounterInterval is the interval at which switch counters are read. A
	// negative value disables polling.
	CounterInterval util.DurWrap `toml:"counter_interval,omitempty"`
}

func (cfg *Switch) InitDefaults() {
	if cfg.Address == "" {
		cfg.Address = DefaultSwitchAddress
	}
	if cfg.ElectionID == 0 {
		cfg.ElectionID = DefaultElectionID
	}
	if cfg.CounterInterval.Duration == 0 {
		cfg.CounterInterval.Duration = DefaultCounterInterval
	}
}

func (cfg *Switch) Validate() error {
	if cfg.P4Info == "" {
		return serrors.New("p4info must be set")
	}
	if cfg.PushPipeline && cfg.DeviceConfig == "" {
		return serrors.New("device_config must be set to push the pipeline")
	}
	return nil
}

func (cfg *Switch) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, switchSample)
}

func (cfg *Switch) ConfigName() string {
	return "switch"
}

// P4RT returns the client configuration.
func (cfg *Switch) P4RT() p4rt.Config {
	return p4rt.Config{
		Address:    cfg.Address,
		DeviceID:   cfg.DeviceID,
		ElectionID: cfg.ElectionID,
	}
}

// Models lists the model files of the ensemble and their vote weights. A
// model without a path does not vote.
type Models struct {
	Forest        string  `toml:"forest,omitempty"`
	ForestWeight  float64 `toml:"forest_weight,omitempty"`
	Boosted       string  `toml:"boosted,omitempty"`
	BoostedWeight float64 `toml:"boosted_weight,omitempty"`
	MLP           string  `toml:"mlp,omitempty"`
	MLPWeight     float64 `toml:"mlp_weight,omitempty"`
	// DataPlaneForest is the forest compiled into switch rules. It defaults
	// to Forest.
	DataPlaneForest string `toml:"data_plane_forest,omitempty"`
}

func (cfg *Models) InitDefaults() {
	if cfg.ForestWeight == 0 {
		cfg.ForestWeight = DefaultForestWeight
	}
	if cfg.BoostedWeight == 0 {
		cfg.BoostedWeight = DefaultBoostedWeight
	}
	if cfg.MLPWeight == 0 {
		cfg.MLPWeight = DefaultMLPWeight
	}
	if cfg.DataPlaneForest == "" {
		cfg.DataPlaneForest = cfg.Forest
	}
}

func (cfg *Models) Validate() error {
	if cfg.Forest == "" && cfg.Boosted == "" && cfg.MLP == "" {
		return serrors.New("no model configured")
	}
	if cfg.DataPlaneForest == "" {
		return serrors.New("data_plane_forest must be set")
	}
	for name, w := range map[string]float64{
		"forest_weight":  cfg.ForestWeight,
		"boosted_weight": cfg.BoostedWeight,
		"mlp_weight":     cfg.MLPWeight,
	} {
		if w < 0 {
			return serrors.New("negative model weight", "key", name, "weight", w)
		}
	}
	return nil
}

func (cfg *Models) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, modelsSample)
}

func (cfg *Models) ConfigName() string {
	return "models"
}

// Features names the feature files.
type Features struct {
	config.NoDefaulter
	// Used is the CSV of the features the models were trained on, in column
	// order.
	Used string `toml:"used_features,omitempty"`
	// IDs is the CSV mapping feature names to the ids the switch compares
	// on. If unset, the packet-in header ids of the p4info are used.
	IDs string `toml:"feature_ids,omitempty"`
}

func (cfg *Features) Validate() error {
	if cfg.Used == "" {
		return serrors.New("used_features must be set")
	}
	return nil
}

func (cfg *Features) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, featuresSample)
}

func (cfg *Features) ConfigName() string {
	return "features"
}

// Route is a forwarding entry of the switch.
type Route struct {
	Prefix string `toml:"prefix"`
	Port   uint32 `toml:"port"`
}

// Classification configures the vote and the compiled rules.
type Classification struct {
	TieBreak vote.TieBreak `toml:"tie_break,omitempty"`
	// PacketsCount is the number of packets after which the switch
	// classifies a flow. Zero leaves the parameter out of the rules.
	PacketsCount int `toml:"packets_count,omitempty"`
	// Forward are the routes installed next to the rules. If unset, the two
	// host test topology routes are used.
	Forward []Route `toml:"forward,omitempty"`
}

func (cfg *Classification) InitDefaults() {
	if cfg.Forward == nil {
		for _, e := range rulegen.DefaultForward() {
			cfg.Forward = append(cfg.Forward, Route{Prefix: e.Prefix.String(), Port: e.Port})
		}
	}
}

func (cfg *Classification) Validate() error {
	if cfg.PacketsCount < 0 {
		return serrors.New("negative packets_count", "value", cfg.PacketsCount)
	}
	_, err := cfg.Routes()
	return err
}

// Routes returns the parsed forwarding entries.
func (cfg *Classification) Routes() ([]rulegen.ForwardEntry, error) {
	entries := make([]rulegen.ForwardEntry, 0, len(cfg.Forward))
	for _, r := range cfg.Forward {
		p, err := netip.ParsePrefix(r.Prefix)
		if err != nil {
			return nil, serrors.Wrap("parsing route prefix", err, "prefix", r.Prefix)
		}
		if !p.Addr().Is4() {
			return nil, serrors.New("route prefix is not IPv4", "prefix", r.Prefix)
		}
		entries = append(entries, rulegen.ForwardEntry{Prefix: p, Port: r.Port})
	}
	return entries, nil
}

func (cfg *Classification) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, classificationSample)
}

func (cfg *Classification) ConfigName() string {
	return "classification"
}
