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

package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/protocol"
)

var names = map[uint32]string{
	1: "packet_type",
	2: "opcode",
	3: "flow_id",
	4: "bidirectional_duration_ms",
	5: "src2dst_bytes",
}

func TestDecode(t *testing.T) {
	d := protocol.NewDecoder(names)
	r, err := d.Decode([]protocol.Metadata{
		{ID: 1, Value: []byte{1}},
		{ID: 2, Value: []byte{1}},
		{ID: 3, Value: []byte{0x00, 0x01, 0x02, 0x03}},
		{ID: 4, Value: []byte{0x01, 0x00}},
		{ID: 5, Value: []byte{}},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.PacketIn, r.PacketType)
	assert.Equal(t, protocol.ClassifyRequest, r.Opcode)
	assert.Equal(t, uint64(0x010203), r.FlowID)
	assert.Equal(t, uint64(256), r.Values["bidirectional_duration_ms"])
	assert.Equal(t, uint64(0), r.Values["src2dst_bytes"])

	x, err := r.Extract([]string{"src2dst_bytes", "bidirectional_duration_ms"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 256}, x)

	_, err = r.Extract([]string{"dst2src_packets"})
	assert.ErrorIs(t, err, protocol.ErrMissingFeature)
}

func TestDecodeErrors(t *testing.T) {
	testCases := map[string]struct {
		md  []protocol.Metadata
		err error
	}{
		"unknown tag": {
			md:  []protocol.Metadata{{ID: 99, Value: []byte{1}}},
			err: protocol.ErrUnknownFeatureID,
		},
		"too wide": {
			md:  []protocol.Metadata{{ID: 3, Value: make([]byte, 9)}},
			err: protocol.ErrMalformedRequest,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := protocol.NewDecoder(names).Decode(tc.md)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestResponseFields(t *testing.T) {
	fields := protocol.Response{FlowID: 4242, Class: 1}.Fields()
	assert.Equal(t, []protocol.NamedValue{
		{Name: "packet_type", Value: "2"},
		{Name: "opcode", Value: "2"},
		{Name: "flow_id", Value: "4242"},
		{Name: "class", Value: "1"},
		{Name: "reserved", Value: "0"},
	}, fields)
}

func TestEncodeFields(t *testing.T) {
	out := []p4info.Field{
		{ID: 1, Name: "packet_type", BitWidth: 8},
		{ID: 2, Name: "opcode", BitWidth: 8},
		{ID: 3, Name: "flow_id", BitWidth: 32},
		{ID: 4, Name: "class", BitWidth: 8},
		{ID: 5, Name: "reserved", BitWidth: 8},
	}
	md, err := protocol.EncodeFields(protocol.Response{FlowID: 0x01020304, Class: 1}.Fields(), out)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Metadata{
		{ID: 1, Value: []byte{2}},
		{ID: 2, Value: []byte{2}},
		{ID: 3, Value: []byte{1, 2, 3, 4}},
		{ID: 4, Value: []byte{1}},
		{ID: 5, Value: []byte{0}},
	}, md)

	_, err = protocol.EncodeFields([]protocol.NamedValue{{Name: "class", Value: "256"}}, out)
	assert.Error(t, err)
	_, err = protocol.EncodeFields([]protocol.NamedValue{{Name: "color", Value: "1"}}, out)
	assert.Error(t, err)
	_, err = protocol.EncodeFields([]protocol.NamedValue{{Name: "class", Value: "x"}}, out)
	assert.Error(t, err)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "classify_request", protocol.ClassifyRequest.String())
	assert.Equal(t, "opcode_7", protocol.Opcode(7).String())
}
