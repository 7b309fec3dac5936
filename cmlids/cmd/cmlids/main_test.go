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
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/pkg/flowstate"
	"github.com/cml-ids/cmlids/private/storage/verdict"
	"github.com/cml-ids/cmlids/private/storage/verdict/sqlite"
)

const (
	p4infoFixture = "../../../pkg/p4info/testdata/cmlids.p4info.txt"
	forestFixture = "../../../pkg/ensemble/testdata/forest.yaml"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRoot("cmlids")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompile(t *testing.T) {
	out, err := run(t, "compile", "--p4info", p4infoFixture, forestFixture)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "table_cmp_feature_tree_1_level_0, 0, 0, compare_feature, 4, 31, 1", lines[0])
	assert.Equal(t, "table_cmp_feature_tree_2_level_2, 3, 2, classify_flow, 2, 1, 0", lines[9])
}

func TestCompileCLI(t *testing.T) {
	out, err := run(t, "compile", "--p4info", p4infoFixture, "--format", "cli",
		"--packets-count", "8", "--forward", forestFixture)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 12)
	assert.Equal(t,
		"table_add table_cmp_feature_tree_1_level_0 compare_feature 0 0 => 4 31 1 8", lines[0])
	assert.Equal(t, "table_add forward_table ipv4_forward 10.0.0.3/32 => 1", lines[11])
}

func TestCompileFeatureIDs(t *testing.T) {
	ids := filepath.Join(t.TempDir(), "ids.csv")
	require.NoError(t, os.WriteFile(ids, []byte(
		"feature_name,id\nbidirectional_duration_ms,40\nsrc2dst_bytes,50\ndst2src_packets,60\n",
	), 0o644))
	rules := filepath.Join(t.TempDir(), "rules.txt")

	out, err := run(t, "compile", "--feature-ids", ids, "-o", rules, forestFixture)
	require.NoError(t, err)
	assert.Empty(t, out)
	raw, err := os.ReadFile(rules)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw),
		"table_cmp_feature_tree_1_level_0, 0, 0, compare_feature, 40, 31, 1\n"))
}

func TestCompileUsedFeatures(t *testing.T) {
	dir := t.TempDir()
	raw, err := os.ReadFile(forestFixture)
	require.NoError(t, err)
	var kept []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "features:" || (strings.HasPrefix(line, "  - ") && !strings.Contains(line, ":")) {
			continue
		}
		kept = append(kept, line)
	}
	forest := filepath.Join(dir, "forest.yaml")
	require.NoError(t, os.WriteFile(forest, []byte(strings.Join(kept, "\n")), 0o644))
	used := filepath.Join(dir, "used.csv")
	require.NoError(t, os.WriteFile(used, []byte(
		"feature_name\nbidirectional_duration_ms\nsrc2dst_bytes\ndst2src_packets\n",
	), 0o644))
	ids := filepath.Join(dir, "ids.csv")
	require.NoError(t, os.WriteFile(ids, []byte(
		"feature_name,id\nbidirectional_duration_ms,40\nsrc2dst_bytes,50\ndst2src_packets,60\n",
	), 0o644))

	_, err = run(t, "compile", "--feature-ids", ids, forest)
	assert.Error(t, err)

	out, err := run(t, "compile", "--feature-ids", ids, "--used-features", used, forest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "table_cmp_feature_tree_1_level_0, 0, 0, compare_feature, 40, 31, 1", lines[0])
}

func TestCompileErrors(t *testing.T) {
	testCases := map[string][]string{
		"no ids":         {"compile", forestFixture},
		"bad format":     {"compile", "--p4info", p4infoFixture, "--format", "xml", forestFixture},
		"bad tie break":  {"compile", "--p4info", p4infoFixture, "--tie-break", "coin", forestFixture},
		"missing forest": {"compile", "--p4info", p4infoFixture, "does/not/exist.yaml"},
		"no args":        {"compile", "--p4info", p4infoFixture},
	}
	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestLayout(t *testing.T) {
	out, err := run(t, "layout", "--p4info", p4infoFixture, "--forest", forestFixture,
		"--format", "json")
	require.NoError(t, err)
	var info layoutInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))

	// Key, time and flags, two per tree flags, the class and five features.
	require.Len(t, info.Fields, 9+2+1+2+5)
	first := info.Fields[0]
	assert.Equal(t, flowstate.FlowID, first.Name)
	assert.Equal(t, info.Width-32, first.Offset)
	last := info.Fields[len(info.Fields)-1]
	assert.Equal(t, 0, last.Offset)
	sum := 0
	for _, f := range info.Fields {
		sum += f.Width
	}
	assert.Equal(t, info.Width, sum)
}

func TestLayoutP4(t *testing.T) {
	out, err := run(t, "layout", "--p4info", p4infoFixture, "--trees", "1", "--p4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "meta.bitstring =\n    meta.flow.flow_id ++\n"))
	assert.True(t, strings.HasSuffix(out, ";\n"))

	_, err = run(t, "layout", "--p4info", p4infoFixture, "--trees", "1",
		"--forest", forestFixture)
	assert.Error(t, err)
}

func TestFields(t *testing.T) {
	out, err := run(t, "fields", "--format", "json", p4infoFixture)
	require.NoError(t, err)
	var info programInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Len(t, info.PacketIn, 8)
	assert.Equal(t, "bidirectional_duration_ms", info.PacketIn[3].Name)
	assert.Equal(t, []counterInfo{
		{ID: 302003092, Name: "number_to_switch", Size: 1},
		{ID: 302012345, Name: "number_classified", Size: 1},
	}, info.Counters)

	out, err = run(t, "fields", p4infoFixture)
	require.NoError(t, err)
	assert.Contains(t, out, "Packet-out header:")
}

func TestFlows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, port := range []layers.UDPPort{5000, 5000, 6000} {
		data := udpFrame(t, port)
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     time.Unix(1, 0),
			CaptureLength: len(data),
			Length:        len(data),
		}, data))
	}
	require.NoError(t, f.Close())

	out, err := run(t, "flows", "--format", "json", path)
	require.NoError(t, err)
	var flows []flowInfo
	require.NoError(t, json.Unmarshal([]byte(out), &flows))
	require.Len(t, flows, 2)

	key := flowstate.Key{
		Src:      netip.MustParseAddr("10.0.0.1"),
		Dst:      netip.MustParseAddr("10.0.0.3"),
		SrcPort:  5000,
		DstPort:  53,
		Protocol: 17,
	}
	assert.Equal(t, flowInfo{
		FlowID:   key.FlowID(32),
		Src:      "10.0.0.1",
		Dst:      "10.0.0.3",
		SrcPort:  5000,
		DstPort:  53,
		Protocol: 17,
		Packets:  2,
	}, flows[0])
	assert.Equal(t, 1, flows[1].Packets)

	_, err = run(t, "flows", "--bits", "0", path)
	assert.Error(t, err)
}

func udpFrame(t *testing.T, srcPort layers.UDPPort) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 3),
	}
	udp := &layers.UDP{SrcPort: srcPort, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp,
		gopacket.Payload([]byte("query"))))
	return buf.Bytes()
}

func TestVerdicts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.db")
	db, err := sqlite.New(path)
	require.NoError(t, err)
	ctx := context.Background()
	for _, v := range []verdict.Verdict{
		{FlowID: 4242, Class: 1, Proba: [2]float64{0.2, 0.8}, Time: time.Unix(10, 0).UTC(),
			Predictions: []verdict.Prediction{
				{Model: "rf", Proba: [2]float64{0.2, 0.8}, Latency: 1500 * time.Microsecond},
			}},
		{FlowID: 7, Class: 0, Proba: [2]float64{0.9, 0.1}, Time: time.Unix(11, 0).UTC()},
	} {
		require.NoError(t, db.InsertVerdict(ctx, v))
	}
	require.NoError(t, db.Close())

	out, err := run(t, "verdicts", "--db", path, "--format", "json")
	require.NoError(t, err)
	var counts map[int]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, map[int]int{0: 1, 1: 1}, counts)

	out, err = run(t, "verdicts", "--db", path, "--flow", "4242", "--format", "json")
	require.NoError(t, err)
	var infos []verdictInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Class)
	assert.Equal(t, []predictionInfo{
		{Model: "rf", Proba: [2]float64{0.2, 0.8}, LatencyUs: 1500},
	}, infos[0].Predictions)

	out, err = run(t, "verdicts", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "class 0: 1\nclass 1: 1\n", out)

	_, err = run(t, "verdicts", "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
