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

// Package feature describes the flow features the data plane extracts and
// reports to the controller.
package feature

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

var (
	// ErrUnknownFeature indicates a feature name without an id.
	ErrUnknownFeature = errors.New("unknown feature")
	// ErrUnknownFeatureID indicates an id without a feature.
	ErrUnknownFeatureID = errors.New("unknown feature id")
)

// Category is the value class of a feature. It selects the width class the
// feature occupies in the flow state.
type Category int

const (
	Ordinal Category = iota
	Time
	ByteCount
	PacketCount
	Flag
)

func (c Category) String() string {
	switch c {
	case Time:
		return "time"
	case ByteCount:
		return "byte_count"
	case PacketCount:
		return "packet_count"
	case Flag:
		return "flag"
	default:
		return "ordinal"
	}
}

// CategoryOf infers the category of a feature from its name.
func CategoryOf(name string) Category {
	switch {
	case strings.HasSuffix(name, "_ms"):
		return Time
	case strings.Contains(name, "bytes"), strings.HasSuffix(name, "_ps"):
		return ByteCount
	case strings.Contains(name, "packets"):
		return PacketCount
	case strings.Contains(name, "protocol"), strings.HasSuffix(name, "_flag"):
		return Flag
	default:
		return Ordinal
	}
}

// Descriptor describes a single feature.
type Descriptor struct {
	Name     string
	ID       uint32
	BitWidth int
	Category Category
}

// Set is an ordered, immutable collection of feature descriptors.
type Set struct {
	features []Descriptor
	byName   map[string]int
	byID     map[uint32]int
}

// NewSet builds a set. Names and ids must be unique.
func NewSet(features []Descriptor) (*Set, error) {
	s := &Set{
		features: append([]Descriptor(nil), features...),
		byName:   make(map[string]int, len(features)),
		byID:     make(map[uint32]int, len(features)),
	}
	for i, f := range s.features {
		if _, ok := s.byName[f.Name]; ok {
			return nil, serrors.New("duplicate feature name", "feature", f.Name)
		}
		if _, ok := s.byID[f.ID]; ok {
			return nil, serrors.New("duplicate feature id", "feature", f.Name, "id", f.ID)
		}
		s.byName[f.Name] = i
		s.byID[f.ID] = i
	}
	return s, nil
}

// FromDescriptor builds the set from the packet-in metadata fields that carry
// the feature prefix, in declaration order.
func FromDescriptor(d *p4info.Descriptor) (*Set, error) {
	fields, err := d.PacketInFields()
	if err != nil {
		return nil, err
	}
	var features []Descriptor
	for _, f := range fields {
		if !strings.HasPrefix(f.FullName, p4info.FeaturePrefix) {
			continue
		}
		features = append(features, Descriptor{
			Name:     f.Name,
			ID:       f.ID,
			BitWidth: f.BitWidth,
			Category: CategoryOf(f.Name),
		})
	}
	return NewSet(features)
}

// All returns the descriptors in order.
func (s *Set) All() []Descriptor {
	return append([]Descriptor(nil), s.features...)
}

// Names returns the feature names in order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.features))
	for _, f := range s.features {
		names = append(names, f.Name)
	}
	return names
}

// Len returns the number of features.
func (s *Set) Len() int {
	return len(s.features)
}

// Get returns the descriptor of the named feature.
func (s *Set) Get(name string) (Descriptor, error) {
	i, ok := s.byName[name]
	if !ok {
		return Descriptor{}, serrors.Join(ErrUnknownFeature, nil, "feature", name)
	}
	return s.features[i], nil
}

// ID returns the id of the named feature.
func (s *Set) ID(name string) (uint32, error) {
	f, err := s.Get(name)
	return f.ID, err
}

// Name returns the name of the feature with the given id.
func (s *Set) Name(id uint32) (string, error) {
	i, ok := s.byID[id]
	if !ok {
		return "", serrors.Join(ErrUnknownFeatureID, nil, "id", id)
	}
	return s.features[i].Name, nil
}

// IDs maps every feature name to its id.
func (s *Set) IDs() map[string]uint32 {
	ids := make(map[string]uint32, len(s.features))
	for _, f := range s.features {
		ids[f.Name] = f.ID
	}
	return ids
}

// WithIDs returns a copy of the set whose ids are replaced by ids. Features
// missing from ids keep their id.
func (s *Set) WithIDs(ids map[string]uint32) (*Set, error) {
	features := s.All()
	for i := range features {
		if id, ok := ids[features[i].Name]; ok {
			features[i].ID = id
		}
	}
	return NewSet(features)
}

// LoadIDs reads a `feature,id` CSV. A header row is skipped if its id column
// is not a number.
func LoadIDs(r io.Reader) (map[string]uint32, error) {
	records, err := readCSV(r, 2)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uint32, len(records))
	for i, rec := range records {
		id, err := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 32)
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, serrors.Wrap("parsing feature id", err, "row", i+1, "value", rec[1])
		}
		name := strings.TrimSpace(rec[0])
		if _, ok := ids[name]; ok {
			return nil, serrors.New("duplicate feature", "row", i+1, "feature", name)
		}
		ids[name] = uint32(id)
	}
	return ids, nil
}

// LoadNames reads a single column CSV of feature names. A `feature_name`
// header row is skipped.
func LoadNames(r io.Reader) ([]string, error) {
	records, err := readCSV(r, 1)
	if err != nil {
		return nil, err
	}
	var names []string
	for i, rec := range records {
		name := strings.TrimSpace(rec[0])
		if i == 0 && name == "feature_name" {
			continue
		}
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func readCSV(r io.Reader, columns int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, serrors.Wrap("reading csv", err)
	}
	for i, rec := range records {
		if len(rec) < columns {
			return nil, serrors.New("too few columns", "row", i+1,
				"expected", columns, "actual", len(rec))
		}
	}
	return records, nil
}
