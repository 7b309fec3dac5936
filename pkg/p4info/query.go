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

package p4info

import (
	"strconv"
	"strings"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

const (
	// FeaturePrefix is the header prefix of packet-in metadata fields that
	// carry flow features.
	FeaturePrefix = "features."

	packetInKey  = "controller_packet_metadata_packet_in"
	packetOutKey = "controller_packet_metadata_packet_out"
)

// Field is a controller packet metadata field.
type Field struct {
	ID uint32
	// Name is the field name with the FeaturePrefix stripped.
	Name string
	// FullName is the name as declared in the descriptor.
	FullName string
	BitWidth int
}

// MatchField is a key field of a table.
type MatchField struct {
	ID        uint32
	Name      string
	BitWidth  int
	MatchType string
}

// Table describes a match-action table.
type Table struct {
	ID          uint32
	Name        string
	Alias       string
	MatchFields []MatchField
	ActionIDs   []uint32
	Size        int
}

// MatchField returns the key field with the given name.
func (t Table) MatchField(name string) (MatchField, error) {
	for _, mf := range t.MatchFields {
		if mf.Name == name {
			return mf, nil
		}
	}
	return MatchField{}, serrors.Join(ErrUnknownSection, nil,
		"table", t.Name, "match_field", name)
}

// Param is an action parameter.
type Param struct {
	ID       uint32
	Name     string
	BitWidth int
}

// Action describes an action and its parameters.
type Action struct {
	ID     uint32
	Name   string
	Alias  string
	Params []Param
}

// Param returns the parameter with the given name.
func (a Action) Param(name string) (Param, error) {
	for _, p := range a.Params {
		if p.Name == name {
			return p, nil
		}
	}
	return Param{}, serrors.Join(ErrUnknownSection, nil, "action", a.Name, "param", name)
}

// Counter is an indexed counter array.
type Counter struct {
	ID    uint32
	Name  string
	Alias string
	Size  int
}

// PacketInFields returns the packet-in metadata fields in declaration order.
func (d *Descriptor) PacketInFields() ([]Field, error) {
	return d.packetMetadata(packetInKey)
}

// PacketOutFields returns the packet-out metadata fields in declaration order.
func (d *Descriptor) PacketOutFields() ([]Field, error) {
	return d.packetMetadata(packetOutKey)
}

// PacketOutField returns the packet-out metadata field with the given name.
func (d *Descriptor) PacketOutField(name string) (Field, error) {
	fields, err := d.PacketOutFields()
	if err != nil {
		return Field{}, err
	}
	for _, f := range fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, serrors.Join(ErrUnknownSection, nil, "packet_out_field", name)
}

// PacketInIDToName maps packet-in metadata ids to field names.
func (d *Descriptor) PacketInIDToName() (map[uint32]string, error) {
	fields, err := d.PacketInFields()
	if err != nil {
		return nil, err
	}
	m := make(map[uint32]string, len(fields))
	for _, f := range fields {
		m[f.ID] = f.Name
	}
	return m, nil
}

// PacketInNameToID maps packet-in field names to metadata ids.
func (d *Descriptor) PacketInNameToID() (map[string]uint32, error) {
	fields, err := d.PacketInFields()
	if err != nil {
		return nil, err
	}
	m := make(map[string]uint32, len(fields))
	for _, f := range fields {
		m[f.Name] = f.ID
	}
	return m, nil
}

// CounterNames returns the counter names with the control block prefix
// stripped, e.g. "MyIngress.number_to_switch" yields "number_to_switch".
func (d *Descriptor) CounterNames() ([]string, error) {
	var names []string
	for _, key := range d.root.keys {
		name, ok := strings.CutPrefix(key, "counters_")
		if !ok {
			continue
		}
		if _, local, found := strings.Cut(name, "."); found {
			name = local
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, serrors.Join(ErrUnknownSection, nil, "section", "counters")
	}
	return names, nil
}

// Counter returns the counter with the given full name or alias.
func (d *Descriptor) Counter(name string) (Counter, error) {
	blk, err := d.resource("counters", name)
	if err != nil {
		return Counter{}, err
	}
	var c Counter
	if c.ID, c.Name, c.Alias, err = preamble(blk); err != nil {
		return Counter{}, err
	}
	if _, ok := blk.Leaf("size"); ok {
		if c.Size, err = intLeaf(blk, "size"); err != nil {
			return Counter{}, err
		}
	}
	return c, nil
}

// Table returns the table with the given full name or alias.
func (d *Descriptor) Table(name string) (Table, error) {
	blk, err := d.resource("tables", name)
	if err != nil {
		return Table{}, err
	}
	var t Table
	if t.ID, t.Name, t.Alias, err = preamble(blk); err != nil {
		return Table{}, err
	}
	if size, ok := blk.Leaf("size"); ok {
		if t.Size, err = strconv.Atoi(size); err != nil {
			return Table{}, malformed(err, "table", t.Name, "size", size)
		}
	}
	for _, key := range blk.keys {
		switch {
		case strings.HasPrefix(key, "match_fields_"):
			mb, _ := blk.Block(key)
			var mf MatchField
			if mf.ID, err = uintLeaf(mb, "id"); err != nil {
				return Table{}, err
			}
			mf.Name, _ = mb.Leaf("name")
			if mf.BitWidth, err = intLeaf(mb, "bitwidth"); err != nil {
				return Table{}, err
			}
			mf.MatchType, _ = mb.Leaf("match_type")
			t.MatchFields = append(t.MatchFields, mf)
		case strings.HasPrefix(key, "action_refs_"):
			ab, _ := blk.Block(key)
			id, err := uintLeaf(ab, "id")
			if err != nil {
				return Table{}, err
			}
			t.ActionIDs = append(t.ActionIDs, id)
		}
	}
	return t, nil
}

// Action returns the action with the given full name or alias.
func (d *Descriptor) Action(name string) (Action, error) {
	blk, err := d.resource("actions", name)
	if err != nil {
		return Action{}, err
	}
	var a Action
	if a.ID, a.Name, a.Alias, err = preamble(blk); err != nil {
		return Action{}, err
	}
	for _, key := range blk.keys {
		if !strings.HasPrefix(key, "params_") {
			continue
		}
		pb, _ := blk.Block(key)
		var p Param
		if p.ID, err = uintLeaf(pb, "id"); err != nil {
			return Action{}, err
		}
		p.Name, _ = pb.Leaf("name")
		if p.BitWidth, err = intLeaf(pb, "bitwidth"); err != nil {
			return Action{}, err
		}
		a.Params = append(a.Params, p)
	}
	return a, nil
}

func (d *Descriptor) packetMetadata(key string) ([]Field, error) {
	blk, ok := d.root.Block(key)
	if !ok {
		return nil, serrors.Join(ErrUnknownSection, nil, "section", key)
	}
	var fields []Field
	for _, k := range blk.keys {
		if !strings.HasPrefix(k, "metadata_") {
			continue
		}
		mb, _ := blk.Block(k)
		id, err := uintLeaf(mb, "id")
		if err != nil {
			return nil, err
		}
		width, err := intLeaf(mb, "bitwidth")
		if err != nil {
			return nil, err
		}
		full, _ := mb.Leaf("name")
		fields = append(fields, Field{
			ID:       id,
			Name:     strings.TrimPrefix(full, FeaturePrefix),
			FullName: full,
			BitWidth: width,
		})
	}
	return fields, nil
}

// resource finds the top-level block of the given kind whose preamble name or
// alias equals name.
func (d *Descriptor) resource(kind, name string) (*Block, error) {
	if blk, ok := d.root.Block(kind + "_" + name); ok {
		return blk, nil
	}
	prefix := kind + "_"
	for _, key := range d.root.keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		blk, _ := d.root.Block(key)
		if alias, ok := blk.Lookup("preamble", "alias"); ok && alias == Leaf(name) {
			return blk, nil
		}
	}
	return nil, serrors.Join(ErrUnknownSection, nil, "kind", kind, "name", name)
}

func preamble(blk *Block) (uint32, string, string, error) {
	pb, ok := blk.Block("preamble")
	if !ok {
		return 0, "", "", malformed(nil, "block", blk.Name, "reason", "missing preamble")
	}
	id, err := uintLeaf(pb, "id")
	if err != nil {
		return 0, "", "", err
	}
	name, _ := pb.Leaf("name")
	alias, _ := pb.Leaf("alias")
	return id, name, alias, nil
}

func uintLeaf(blk *Block, key string) (uint32, error) {
	raw, ok := blk.Leaf(key)
	if !ok {
		return 0, malformed(nil, "block", blk.Name, "missing", key)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, malformed(err, "block", blk.Name, key, raw)
	}
	return uint32(v), nil
}

func intLeaf(blk *Block, key string) (int, error) {
	v, err := uintLeaf(blk, key)
	return int(v), err
}

func malformed(cause error, ctx ...any) error {
	return serrors.Join(ErrMalformedDescriptor, cause, ctx...)
}
