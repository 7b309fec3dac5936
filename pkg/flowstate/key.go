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

package flowstate

import (
	"encoding/binary"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// Key is the IPv4 5-tuple identifying a flow.
type Key struct {
	Src      netip.Addr
	Dst      netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// KeyFromPacket extracts the flow key of an IPv4 packet. Ports are zero for
// transports other than TCP and UDP.
func KeyFromPacket(p gopacket.Packet) (Key, error) {
	ipLayer, ok := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return Key{}, serrors.New("not an IPv4 packet")
	}
	src, ok := netip.AddrFromSlice(ipLayer.SrcIP.To4())
	if !ok {
		return Key{}, serrors.New("invalid source address", "addr", ipLayer.SrcIP)
	}
	dst, ok := netip.AddrFromSlice(ipLayer.DstIP.To4())
	if !ok {
		return Key{}, serrors.New("invalid destination address", "addr", ipLayer.DstIP)
	}
	k := Key{Src: src, Dst: dst, Protocol: uint8(ipLayer.Protocol)}
	switch l := p.TransportLayer().(type) {
	case *layers.TCP:
		k.SrcPort, k.DstPort = uint16(l.SrcPort), uint16(l.DstPort)
	case *layers.UDP:
		k.SrcPort, k.DstPort = uint16(l.SrcPort), uint16(l.DstPort)
	}
	return k, nil
}

// FlowID hashes the key with FNV-1a and keeps the low bits of the hash.
func (k Key) FlowID(bits int) uint64 {
	var buf [13]byte
	binary.BigEndian.PutUint32(buf[0:4], addrUint32(k.Src))
	binary.BigEndian.PutUint32(buf[4:8], addrUint32(k.Dst))
	binary.BigEndian.PutUint16(buf[8:10], k.SrcPort)
	binary.BigEndian.PutUint16(buf[10:12], k.DstPort)
	buf[12] = k.Protocol

	s := fnv1aOffset32
	for _, c := range buf {
		s = hashFNV1a(s, c)
	}
	return uint64(s) & mask(bits)
}

func addrUint32(a netip.Addr) uint32 {
	if !a.Is4() {
		return 0
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}
