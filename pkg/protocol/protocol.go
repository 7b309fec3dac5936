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

// Package protocol implements the classification exchange between the switch
// and the controller. Requests arrive as packet-in metadata: a list of
// (tag, big-endian unsigned value) pairs. Responses leave as packet-out
// metadata fields named packet_type, opcode, flow_id, class and reserved.
package protocol

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// PacketType is the direction of a controller packet.
type PacketType uint8

const (
	PacketIn  PacketType = 1
	PacketOut PacketType = 2
)

// Opcode is the message kind.
type Opcode uint8

const (
	NoOp             Opcode = 0
	ClassifyRequest  Opcode = 1
	ClassifyResponse Opcode = 2
)

func (o Opcode) String() string {
	switch o {
	case NoOp:
		return "no_op"
	case ClassifyRequest:
		return "classify_request"
	case ClassifyResponse:
		return "classify_response"
	default:
		return "opcode_" + strconv.Itoa(int(o))
	}
}

// Header field names.
const (
	FieldPacketType = "packet_type"
	FieldOpcode     = "opcode"
	FieldFlowID     = "flow_id"
	FieldClass      = "class"
	FieldReserved   = "reserved"
)

var (
	// ErrMissingFeature indicates that a request lacks a required feature.
	ErrMissingFeature = errors.New("missing feature")
	// ErrMalformedRequest indicates a request that cannot be decoded.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnknownFeatureID is returned for metadata tags absent from the
	// descriptor.
	ErrUnknownFeatureID = feature.ErrUnknownFeatureID
)

// Metadata is a tagged packet metadata value as carried on the wire.
type Metadata struct {
	ID    uint32
	Value []byte
}

// Request is a decoded classification request.
type Request struct {
	PacketType PacketType
	Opcode     Opcode
	FlowID     uint64
	// Values holds every decoded field by name, header fields included.
	Values map[string]uint64
}

// Decoder turns packet-in metadata into requests.
type Decoder struct {
	names map[uint32]string
}

// NewDecoder returns a decoder for the given tag to name table.
func NewDecoder(names map[uint32]string) *Decoder {
	return &Decoder{names: names}
}

// Decode maps every tag to its field name and decodes the values.
func (d *Decoder) Decode(md []Metadata) (*Request, error) {
	r := &Request{Values: make(map[string]uint64, len(md))}
	for _, m := range md {
		name, ok := d.names[m.ID]
		if !ok {
			return nil, serrors.Join(ErrUnknownFeatureID, nil, "id", m.ID)
		}
		if len(m.Value) > 8 {
			return nil, serrors.Join(ErrMalformedRequest, nil,
				"field", name, "bytes", len(m.Value))
		}
		r.Values[name] = beUint(m.Value)
	}
	r.PacketType = PacketType(r.Values[FieldPacketType])
	r.Opcode = Opcode(r.Values[FieldOpcode])
	r.FlowID = r.Values[FieldFlowID]
	return r, nil
}

// Extract returns the values of the named features in order.
func (r *Request) Extract(names []string) ([]float64, error) {
	x := make([]float64, len(names))
	for i, name := range names {
		v, ok := r.Values[name]
		if !ok {
			return nil, serrors.Join(ErrMissingFeature, nil,
				"feature", name, "flow_id", r.FlowID)
		}
		x[i] = float64(v)
	}
	return x, nil
}

// NamedValue is a packet-out field with its decimal string value.
type NamedValue struct {
	Name  string
	Value string
}

// Response is the verdict for a flow.
type Response struct {
	FlowID uint64
	Class  int
}

// Fields returns the packet-out header fields of the response.
func (r Response) Fields() []NamedValue {
	return []NamedValue{
		{FieldPacketType, strconv.Itoa(int(PacketOut))},
		{FieldOpcode, strconv.Itoa(int(ClassifyResponse))},
		{FieldFlowID, strconv.FormatUint(r.FlowID, 10)},
		{FieldClass, strconv.Itoa(r.Class)},
		{FieldReserved, "0"},
	}
}

// EncodeFields converts decimal string fields into packet-out metadata using
// the ids and bit widths of the descriptor fields.
func EncodeFields(fields []NamedValue, out []p4info.Field) ([]Metadata, error) {
	byName := make(map[string]p4info.Field, len(out))
	for _, f := range out {
		byName[f.Name] = f
	}
	md := make([]Metadata, 0, len(fields))
	for _, nv := range fields {
		f, ok := byName[nv.Name]
		if !ok {
			return nil, serrors.New("unknown packet-out field", "field", nv.Name)
		}
		v, err := strconv.ParseUint(nv.Value, 10, 64)
		if err != nil {
			return nil, serrors.Wrap("parsing field value", err,
				"field", nv.Name, "value", nv.Value)
		}
		if f.BitWidth < 64 && v>>uint(f.BitWidth) != 0 {
			return nil, serrors.New("value exceeds field width",
				"field", nv.Name, "value", v, "bitwidth", f.BitWidth)
		}
		md = append(md, Metadata{ID: f.ID, Value: putUint(v, (f.BitWidth+7)/8)})
	}
	return md, nil
}

func beUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:])
}

func putUint(v uint64, n int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append([]byte(nil), buf[8-n:]...)
}
