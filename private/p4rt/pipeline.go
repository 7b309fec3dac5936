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

package p4rt

import (
	"os"

	p4configv1 "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// LoadPipeline reads the text format p4info at p4infoPath and the target
// specific device config (the bmv2 JSON) at devicePath.
func LoadPipeline(p4infoPath, devicePath string) (*p4v1.ForwardingPipelineConfig, error) {
	raw, err := os.ReadFile(p4infoPath)
	if err != nil {
		return nil, serrors.Wrap("reading p4info", err, "path", p4infoPath)
	}
	info, err := ParseP4Info(raw)
	if err != nil {
		return nil, serrors.Wrap("parsing p4info", err, "path", p4infoPath)
	}
	device, err := os.ReadFile(devicePath)
	if err != nil {
		return nil, serrors.Wrap("reading device config", err, "path", devicePath)
	}
	return &p4v1.ForwardingPipelineConfig{P4Info: info, P4DeviceConfig: device}, nil
}

// ParseP4Info decodes a text format p4info.
func ParseP4Info(raw []byte) (*p4configv1.P4Info, error) {
	var info p4configv1.P4Info
	if err := prototext.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
