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

package p4info_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-ids/cmlids/pkg/p4info"
)

func loadFixture(t *testing.T) *p4info.Descriptor {
	t.Helper()
	d, err := p4info.ParseFile("testdata/cmlids.p4info.txt")
	require.NoError(t, err)
	return d
}

func TestParseMalformed(t *testing.T) {
	testCases := map[string]string{
		"two braces on a line": "tables { preamble {\n}\n}\n",
		"open and close on a line": "tables {}\n",
		"unbalanced close":         "}\n",
		"unterminated block":       "tables {\n  preamble {\n    id: 1\n  }\n",
		"missing separator":        "pkg_info {\n  arch v1model\n}\n",
		"brace after text":         "tables {\n  preamble { x\n  }\n}\n",
		"too deep": "a {\nb {\nc {\nd {\ne {\nf: 1\n}\n}\n}\n}\n}\n",
		"table without name": "tables {\n  preamble {\n    id: 1\n  }\n}\n",
		"metadata without id": "controller_packet_metadata {\n" +
			"  preamble {\n    id: 1\n    name: \"packet_in\"\n  }\n" +
			"  metadata {\n    name: \"flow_id\"\n  }\n}\n",
	}
	for name, text := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := p4info.Parse(strings.NewReader(text))
			assert.ErrorIs(t, err, p4info.ErrMalformedDescriptor)
		})
	}
}

func TestParseTree(t *testing.T) {
	text := `
# comment
pkg_info {
  arch: "v1model"
}
actions {
  preamble {
    id: 7
    name: "MyIngress.note"
    annotations: "@brief(\"a { b\")"
  }
  params {
    id: 2
    name: "value: with colon"
    bitwidth: 8
  }
}
`
	d, err := p4info.Parse(strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg_info", "actions_MyIngress.note"}, d.Root().Keys())
	n, ok := d.Root().Lookup("actions_MyIngress.note", "preamble", "annotations")
	require.True(t, ok)
	assert.Equal(t, p4info.Leaf(`@brief("a { b")`), n)
	n, ok = d.Root().Lookup("actions_MyIngress.note", "params_2", "name")
	require.True(t, ok)
	assert.Equal(t, p4info.Leaf("value: with colon"), n)

	_, ok = d.Root().Lookup("pkg_info", "arch", "deeper")
	assert.False(t, ok)
}

func TestPacketIn(t *testing.T) {
	d := loadFixture(t)

	idToName, err := d.PacketInIDToName()
	require.NoError(t, err)
	nameToID, err := d.PacketInNameToID()
	require.NoError(t, err)
	require.Len(t, idToName, 8)
	for id, name := range idToName {
		assert.Equal(t, id, nameToID[name], name)
	}
	assert.Equal(t, "flow_id", idToName[3])
	assert.Equal(t, uint32(4), nameToID["bidirectional_duration_ms"])

	fields, err := d.PacketInFields()
	require.NoError(t, err)
	assert.Equal(t, p4info.Field{
		ID:       5,
		Name:     "src2dst_bytes",
		FullName: "features.src2dst_bytes",
		BitWidth: 32,
	}, fields[4])
}

func TestPacketOut(t *testing.T) {
	d := loadFixture(t)

	fields, err := d.PacketOutFields()
	require.NoError(t, err)
	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"packet_type", "opcode", "flow_id", "class", "reserved"}, names)

	class, err := d.PacketOutField("class")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), class.ID)
	_, err = d.PacketOutField("missing")
	assert.ErrorIs(t, err, p4info.ErrUnknownSection)
}

func TestCounterNames(t *testing.T) {
	d := loadFixture(t)
	names, err := d.CounterNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"number_to_switch", "number_classified"}, names)

	c, err := d.Counter("number_to_switch")
	require.NoError(t, err)
	assert.Equal(t, p4info.Counter{ID: 302003092, Name: "MyIngress.number_to_switch",
		Alias: "number_to_switch", Size: 1}, c)
	_, err = d.Counter("number_dropped")
	assert.ErrorIs(t, err, p4info.ErrUnknownSection)
}

func TestUnknownSection(t *testing.T) {
	d, err := p4info.Parse(strings.NewReader("pkg_info {\n  arch: \"v1model\"\n}\n"))
	require.NoError(t, err)

	testCases := map[string]func() error{
		"packet in id to name": func() error { _, err := d.PacketInIDToName(); return err },
		"packet in name to id": func() error { _, err := d.PacketInNameToID(); return err },
		"packet out fields":    func() error { _, err := d.PacketOutFields(); return err },
		"counter names":        func() error { _, err := d.CounterNames(); return err },
		"table":                func() error { _, err := d.Table("forward_table"); return err },
		"action":               func() error { _, err := d.Action("compare_feature"); return err },
	}
	for name, query := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, query(), p4info.ErrUnknownSection)
		})
	}
}

func TestTableAndAction(t *testing.T) {
	d := loadFixture(t)

	byAlias, err := d.Table("table_cmp_feature_tree_2_level_1")
	require.NoError(t, err)
	byName, err := d.Table("MyIngress.table_cmp_feature_tree_2_level_1")
	require.NoError(t, err)
	assert.Equal(t, byName, byAlias)
	assert.Equal(t, 1024, byName.Size)
	assert.Equal(t, []uint32{16800567, 16830386, 16819938}, byName.ActionIDs)
	mf, err := byName.MatchField("meta.feature_larger_than_thr")
	require.NoError(t, err)
	assert.Equal(t, p4info.MatchField{
		ID: 2, Name: "meta.feature_larger_than_thr", BitWidth: 2, MatchType: "EXACT",
	}, mf)

	fwd, err := d.Table("forward_table")
	require.NoError(t, err)
	assert.Equal(t, "LPM", fwd.MatchFields[0].MatchType)

	cmp, err := d.Action("compare_feature")
	require.NoError(t, err)
	assert.Equal(t, uint32(16830386), cmp.ID)
	require.Len(t, cmp.Params, 4)
	p, err := cmp.Param("next_node_id")
	require.NoError(t, err)
	assert.Equal(t, p4info.Param{ID: 3, Name: "next_node_id", BitWidth: 16}, p)
	_, err = cmp.Param("gini_value")
	assert.ErrorIs(t, err, p4info.ErrUnknownSection)
}
