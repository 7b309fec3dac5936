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

package config

const switchSample = `
# The gRPC address of the P4Runtime server of the switch.
# (default "127.0.0.1:50051")
address = "127.0.0.1:50051"

# The P4Runtime device id. (default 0)
device_id = 0

# The election id used to become the primary controller. (default 1)
election_id = 1

# The text format p4info of the switch program. (required)
p4info = "cmlids.p4info.txt"

# The compiled switch program. Required if push_pipeline is set.
device_config = "cmlids.json"

# Install the switch program before writing the rules. (default false)
push_pipeline = false

# Interval at which the switch counters are exported as metrics. A negative
# value disables polling. (default "10s")
counter_interval = "10s"
`

const modelsSample = `
# Model files, YAML, optionally zstd compressed (.zst). A model without a
# path does not take part in the vote. At least one model must be set.
forest = "models/forest.yaml"
boosted = "models/boosted.yaml"
mlp = "models/mlp.yaml.zst"

# Vote weights. (defaults 1.9, 2.5 and 1)
forest_weight = 1.9
boosted_weight = 2.5
mlp_weight = 1.0

# The forest compiled into the switch rules. (default forest)
data_plane_forest = "models/forest.yaml"
`

const featuresSample = `
# CSV of the features the models were trained on, in column order. (required)
used_features = "used_features.csv"

# CSV mapping feature names to the ids the switch compares on. If not set,
# the packet-in header ids of the p4info are used. (default "")
feature_ids = "feature_ids.csv"
`

const classificationSample = `
# The class chosen on an even vote, "positive" or "negative".
# (default "positive")
tie_break = "positive"

# Number of packets after which the switch classifies a flow. If 0, the
# compare actions carry no packets_count parameter. (default 0)
packets_count = 8

# Routes installed next to the rules. (default the two host test topology)
[[classification.forward]]
prefix = "10.0.0.1/32"
port = 0

[[classification.forward]]
prefix = "10.0.0.3/32"
port = 1
`
