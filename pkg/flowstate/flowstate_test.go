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

package flowstate_test

import (
	"hash/fnv"
	"math/rand/v2"
	"net"
	"net/netip"
	"strings"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/flowstate"
)

func testFeatures(t *testing.T) *feature.Set {
	t.Helper()
	var fs []feature.Descriptor
	for i, name := range []string{
		"bidirectional_duration_ms",
		"src2dst_bytes",
		"dst2src_packets",
		"bidirectional_mean_ps",
		"protocol",
		"splt_direction_1",
	} {
		fs = append(fs, feature.Descriptor{
			Name:     name,
			ID:       uint32(i + 4),
			BitWidth: 8,
			Category: feature.CategoryOf(name),
		})
	}
	s, err := feature.NewSet(fs)
	require.NoError(t, err)
	return s
}

func TestNewLayout(t *testing.T) {
	l, err := flowstate.NewLayout(testFeatures(t), 2, flowstate.DefaultWidths())
	require.NoError(t, err)

	var names []string
	var widths []int
	for _, f := range l.Fields() {
		names = append(names, f.Name)
		widths = append(widths, f.Width)
	}
	assert.Equal(t, []string{
		"flow_id", "src_ipv4_addr", "dst_ipv4_addr", "src_port", "dst_port", "protocol",
		"packet_8th_seen_ms", "stored", "classified", "classified_tree_1", "classified_tree_2",
		"class", "class_tree_1", "class_tree_2",
		"features.bidirectional_duration_ms", "features.src2dst_bytes",
		"features.dst2src_packets", "features.bidirectional_mean_ps",
		"features.protocol", "features.splt_direction_1",
	}, names)
	assert.Equal(t, []int{
		32, 32, 32, 16, 16, 8, 32,
		1, 1, 1, 1, 1, 1, 1,
		32, 32, 16, 32, 1, 2,
	}, widths)
	assert.Equal(t, 168+7+115, l.Width())

	offset, err := l.Offset("flow_id")
	require.NoError(t, err)
	assert.Equal(t, l.Width()-32, offset)
	offset, err = l.Offset("features.splt_direction_1")
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
}

func TestNewLayoutWidths(t *testing.T) {
	testCases := map[string]struct {
		widths    flowstate.Widths
		assertErr assert.ErrorAssertionFunc
		total     int
	}{
		"descriptor fallback": {
			widths:    flowstate.Widths{FlowID: 16},
			assertErr: assert.NoError,
			// identity 120, default time 32, flags 5, features 8+8+8+8+1+8.
			total: 120 + 32 + 5 + 41,
		},
		"zero flow id": {
			widths:    flowstate.Widths{},
			assertErr: assert.Error,
		},
		"too wide": {
			widths:    flowstate.Widths{FlowID: 32, Time: 65},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			l, err := flowstate.NewLayout(testFeatures(t), 1, tc.widths)
			tc.assertErr(t, err)
			if err == nil {
				assert.Equal(t, tc.total, l.Width())
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	l, err := flowstate.NewLayout(testFeatures(t), 3, flowstate.DefaultWidths())
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		s := l.NewState()
		for _, f := range l.Fields() {
			v := r.Uint64()
			if f.Width < 64 {
				v &= 1<<uint(f.Width) - 1
			}
			require.NoError(t, s.Set(f.Name, v))
		}
		b, err := l.Encode(s)
		require.NoError(t, err)
		assert.Equal(t, l.Width(), b.Width())
		assert.Len(t, b.Bytes(), (l.Width()+7)/8)

		raw, err := flowstate.FromBytes(b.Bytes(), l.Width())
		require.NoError(t, err)
		decoded, err := l.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, s.Values(), decoded.Values())
	}
}

func TestEncodeMostSignificantFirst(t *testing.T) {
	empty, err := feature.NewSet(nil)
	require.NoError(t, err)
	l, err := flowstate.NewLayout(empty, 0, flowstate.Widths{FlowID: 8})
	require.NoError(t, err)
	// flow_id 8, addresses 64, ports 32, protocol 8, time 32, stored,
	// classified, class.
	require.Equal(t, 147, l.Width())

	s := l.NewState()
	require.NoError(t, s.Set(flowstate.FlowID, 0xab))
	require.NoError(t, s.Set(flowstate.Class, 1))
	b, err := l.Encode(s)
	require.NoError(t, err)

	// 147 bits in 19 bytes leave 5 padding bits in front.
	raw := b.Bytes()
	require.Len(t, raw, 19)
	assert.Equal(t, byte(0x05), raw[0])
	assert.Equal(t, byte(0x58), raw[1])
	assert.Equal(t, byte(1), raw[18])
}

func TestEncodeTruncates(t *testing.T) {
	l, err := flowstate.NewLayout(testFeatures(t), 1, flowstate.DefaultWidths())
	require.NoError(t, err)

	s := l.NewState()
	require.NoError(t, s.Set(flowstate.SrcPort, 0x1_2345))
	require.NoError(t, s.Set(flowstate.Stored, 3))
	b, err := l.Encode(s)
	require.NoError(t, err)
	decoded, err := l.Decode(b)
	require.NoError(t, err)

	port, err := decoded.Get(flowstate.SrcPort)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2345), port)
	stored, err := decoded.Get(flowstate.Stored)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored)
	dst, err := decoded.Get(flowstate.DstPort)
	require.NoError(t, err)
	assert.Zero(t, dst)
}

func TestDecodeErrors(t *testing.T) {
	l, err := flowstate.NewLayout(testFeatures(t), 1, flowstate.DefaultWidths())
	require.NoError(t, err)
	other, err := flowstate.NewLayout(testFeatures(t), 2, flowstate.DefaultWidths())
	require.NoError(t, err)

	b, err := other.Encode(other.NewState())
	require.NoError(t, err)
	_, err = l.Decode(b)
	assert.Error(t, err)

	_, err = l.Encode(other.NewState())
	assert.Error(t, err)

	_, err = flowstate.FromBytes([]byte{0xff}, 4)
	assert.Error(t, err)

	s := l.NewState()
	assert.Error(t, s.Set("missing", 1))
	_, err = s.Get("missing")
	assert.Error(t, err)
}

func TestKeyFromPacket(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 3),
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, SYN: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, tcp))
	pkt := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeIPv4, gopacket.Default)

	k, err := flowstate.KeyFromPacket(pkt)
	require.NoError(t, err)
	want := flowstate.Key{
		Src:      netip.MustParseAddr("10.0.0.1"),
		Dst:      netip.MustParseAddr("10.0.0.3"),
		SrcPort:  40000,
		DstPort:  443,
		Protocol: 6,
	}
	assert.Equal(t, want, k)

	h := fnv.New32a()
	h.Write([]byte{10, 0, 0, 1, 10, 0, 0, 3, 0x9c, 0x40, 0x01, 0xbb, 6})
	assert.Equal(t, uint64(h.Sum32()), k.FlowID(32))
	assert.Equal(t, uint64(h.Sum32())&0xffff, k.FlowID(16))

	l, err := flowstate.NewLayout(testFeatures(t), 1, flowstate.DefaultWidths())
	require.NoError(t, err)
	s := l.NewState()
	s.SetKey(k)
	id, err := s.Get(flowstate.FlowID)
	require.NoError(t, err)
	assert.Equal(t, k.FlowID(32), id)
	src, err := s.Get(flowstate.SrcAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0a000001), src)
}

func TestKeyFromPacketNotIPv4(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   eth.SrcMAC,
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    []byte{10, 0, 0, 3},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, arp))
	pkt := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)

	_, err := flowstate.KeyFromPacket(pkt)
	assert.Error(t, err)
}

func TestP4Concat(t *testing.T) {
	l, err := flowstate.NewLayout(testFeatures(t), 1, flowstate.DefaultWidths())
	require.NoError(t, err)
	out := l.P4Concat("meta.bitstring", "meta.flow")
	assert.True(t, strings.HasPrefix(out, "meta.bitstring =\n    meta.flow.flow_id ++\n"))
	assert.True(t, strings.HasSuffix(out, "    meta.flow.features.splt_direction_1;\n"))
	assert.Equal(t, len(l.Fields()), strings.Count(out, "meta.flow."))
	assert.Contains(t, out, "    meta.flow.protocol ++\n    meta.flow.packet_8th_seen_ms ++\n")
}
