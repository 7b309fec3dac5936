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

package main

import (
	"encoding/json"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

const (
	formatHuman = "human"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return serrors.New("format not supported", "format", format, "allowed", allowed)
}

// writeStructured writes v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		raw, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	default:
		return serrors.New("format not supported", "format", format)
	}
}

// loadFeatures returns the feature set of the switch program described by
// p4infoPath. If idsPath is set, its ids replace the packet-in header ids.
func loadFeatures(p4infoPath, idsPath string) (*feature.Set, error) {
	desc, err := p4info.ParseFile(p4infoPath)
	if err != nil {
		return nil, err
	}
	set, err := feature.FromDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if idsPath == "" {
		return set, nil
	}
	ids, err := loadIDs(idsPath)
	if err != nil {
		return nil, err
	}
	return set.WithIDs(ids)
}

func loadIDs(path string) (map[string]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.Wrap("opening feature ids", err, "path", path)
	}
	defer f.Close()
	return feature.LoadIDs(f)
}

func loadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.Wrap("opening feature names", err, "path", path)
	}
	defer f.Close()
	return feature.LoadNames(f)
}
