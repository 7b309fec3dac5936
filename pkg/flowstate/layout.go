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

// Package flowstate packs the per-flow state kept by the switch into the
// single fixed-width bitstring stored in the flow register.
//
// The layout is fixed at compile time: the flow identity, the time the flow
// became ready for classification, a run of one bit state flags, then every
// feature sized by its category. The first field
// occupies the most significant bits.
package flowstate

import (
	"fmt"
	"strings"

	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// MaxFieldWidth is the widest field a layout can hold.
const MaxFieldWidth = 64

// Identity and state field names.
const (
	FlowID     = "flow_id"
	SrcAddr    = "src_ipv4_addr"
	DstAddr    = "dst_ipv4_addr"
	SrcPort    = "src_port"
	DstPort    = "dst_port"
	Protocol   = "protocol"
	PacketSeen = "packet_8th_seen_ms"
	Stored     = "stored"
	Classified = "classified"
	Class      = "class"
)

// ClassifiedTree returns the name of the per-tree classified flag.
func ClassifiedTree(tree int) string {
	return fmt.Sprintf("classified_tree_%d", tree)
}

// ClassTree returns the name of the per-tree class flag.
func ClassTree(tree int) string {
	return fmt.Sprintf("class_tree_%d", tree)
}

// FeatureField returns the field name of a feature.
func FeatureField(name string) string {
	return "features." + name
}

// Widths are the bit widths of the variable width classes. A zero category
// width makes features of that category use their descriptor bit width. The
// PacketSeen field takes the Time width, or the default one if that is zero.
type Widths struct {
	FlowID  int `toml:"flow_id,omitempty"`
	Time    int `toml:"time,omitempty"`
	Bytes   int `toml:"bytes,omitempty"`
	Count   int `toml:"count,omitempty"`
	Ordinal int `toml:"ordinal,omitempty"`
}

// DefaultWidths returns the widths of the reference switch program.
func DefaultWidths() Widths {
	return Widths{
		FlowID:  32,
		Time:    32,
		Bytes:   32,
		Count:   16,
		Ordinal: 2,
	}
}

func (w Widths) timestamp() int {
	if w.Time == 0 {
		return DefaultWidths().Time
	}
	return w.Time
}

func (w Widths) of(f feature.Descriptor) int {
	var width int
	switch f.Category {
	case feature.Flag:
		return 1
	case feature.Time:
		width = w.Time
	case feature.ByteCount:
		width = w.Bytes
	case feature.PacketCount:
		width = w.Count
	default:
		width = w.Ordinal
	}
	if width == 0 {
		return f.BitWidth
	}
	return width
}

// Field is a named slice of the bitstring.
type Field struct {
	Name  string
	Width int
}

// Layout is the ordered list of fields of the flow state.
type Layout struct {
	fields []Field
	index  map[string]int
	width  int
}

// NewLayout builds the layout for the given features and number of trees.
func NewLayout(features *feature.Set, trees int, widths Widths) (*Layout, error) {
	if trees < 0 {
		return nil, serrors.New("negative tree count", "trees", trees)
	}
	fields := []Field{
		{FlowID, widths.FlowID},
		{SrcAddr, 32},
		{DstAddr, 32},
		{SrcPort, 16},
		{DstPort, 16},
		{Protocol, 8},
		{PacketSeen, widths.timestamp()},
		{Stored, 1},
		{Classified, 1},
	}
	for i := 1; i <= trees; i++ {
		fields = append(fields, Field{ClassifiedTree(i), 1})
	}
	fields = append(fields, Field{Class, 1})
	for i := 1; i <= trees; i++ {
		fields = append(fields, Field{ClassTree(i), 1})
	}
	for _, f := range features.All() {
		fields = append(fields, Field{FeatureField(f.Name), widths.of(f)})
	}
	return newLayout(fields)
}

func newLayout(fields []Field) (*Layout, error) {
	l := &Layout{
		fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Width < 1 || f.Width > MaxFieldWidth {
			return nil, serrors.New("field width out of range",
				"field", f.Name, "width", f.Width, "max", MaxFieldWidth)
		}
		if _, ok := l.index[f.Name]; ok {
			return nil, serrors.New("duplicate field", "field", f.Name)
		}
		l.index[f.Name] = i
		l.width += f.Width
	}
	return l, nil
}

// Fields returns the fields in order.
func (l *Layout) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// Width returns the total width in bits.
func (l *Layout) Width() int {
	return l.width
}

// Offset returns the position of the least significant bit of the named field,
// counted from the least significant bit of the bitstring.
func (l *Layout) Offset(name string) (int, error) {
	i, ok := l.index[name]
	if !ok {
		return 0, serrors.New("unknown field", "field", name)
	}
	offset := l.width
	for _, f := range l.fields[:i+1] {
		offset -= f.Width
	}
	return offset, nil
}

// NewState returns a zeroed state for the layout.
func (l *Layout) NewState() *State {
	return &State{layout: l, values: make([]uint64, len(l.fields))}
}

// P4Concat renders the concatenation expression that builds the bitstring
// from the flow metadata struct in the switch program.
func (l *Layout) P4Concat(bitstring, flow string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s =", bitstring)
	for i, f := range l.fields {
		sep := " ++"
		if i == len(l.fields)-1 {
			sep = ";"
		}
		fmt.Fprintf(&b, "\n    %s.%s%s", flow, f.Name, sep)
	}
	b.WriteString("\n")
	return b.String()
}

// State holds one value per layout field.
type State struct {
	layout *Layout
	values []uint64
}

// Layout returns the layout of the state.
func (s *State) Layout() *Layout {
	return s.layout
}

// Get returns the value of the named field.
func (s *State) Get(name string) (uint64, error) {
	i, ok := s.layout.index[name]
	if !ok {
		return 0, serrors.New("unknown field", "field", name)
	}
	return s.values[i], nil
}

// Set stores v in the named field. Encoding keeps only the low field width
// bits of v.
func (s *State) Set(name string, v uint64) error {
	i, ok := s.layout.index[name]
	if !ok {
		return serrors.New("unknown field", "field", name)
	}
	s.values[i] = v
	return nil
}

// Values returns the field values in layout order.
func (s *State) Values() []uint64 {
	return append([]uint64(nil), s.values...)
}

// SetKey stores the flow identity. The flow id is derived from the key.
func (s *State) SetKey(k Key) {
	width := s.layout.fields[s.layout.index[FlowID]].Width
	s.values[s.layout.index[FlowID]] = k.FlowID(width)
	s.values[s.layout.index[SrcAddr]] = uint64(addrUint32(k.Src))
	s.values[s.layout.index[DstAddr]] = uint64(addrUint32(k.Dst))
	s.values[s.layout.index[SrcPort]] = uint64(k.SrcPort)
	s.values[s.layout.index[DstPort]] = uint64(k.DstPort)
	s.values[s.layout.index[Protocol]] = uint64(k.Protocol)
}
