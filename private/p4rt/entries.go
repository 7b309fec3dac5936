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

package p4rt

import (
	"encoding/binary"
	"errors"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/rulegen"
)

// ErrValueRange indicates a match or parameter value that does not fit the
// bit width declared in the descriptor.
var ErrValueRange = errors.New("value out of range")

// Translator converts compiled rules into P4Runtime table entries, resolving
// names to the ids of the descriptor.
type Translator struct {
	desc    *p4info.Descriptor
	tables  map[string]p4info.Table
	actions map[string]p4info.Action
}

// NewTranslator returns a translator for desc.
func NewTranslator(desc *p4info.Descriptor) *Translator {
	return &Translator{
		desc:    desc,
		tables:  make(map[string]p4info.Table),
		actions: make(map[string]p4info.Action),
	}
}

// RuleEntry returns the table entry of a comparison table rule.
func (t *Translator) RuleEntry(r rulegen.Rule) (*p4v1.TableEntry, error) {
	table, err := t.table(r.Table.Name())
	if err != nil {
		return nil, err
	}
	nodeField, err := table.MatchField(rulegen.MatchCurrentNodeID)
	if err != nil {
		return nil, err
	}
	outcomeField, err := table.MatchField(rulegen.MatchOutcome)
	if err != nil {
		return nil, err
	}
	node, err := encodeValue(int64(r.Match.CurrentNodeID), nodeField.BitWidth)
	if err != nil {
		return nil, serrors.Wrap("encoding match", err,
			"table", table.Name, "field", nodeField.Name)
	}
	outcome, err := encodeValue(int64(r.Match.Outcome), outcomeField.BitWidth)
	if err != nil {
		return nil, serrors.Wrap("encoding match", err,
			"table", table.Name, "field", outcomeField.Name)
	}
	action, err := t.action(r.Action.Name(), r.Action.Params())
	if err != nil {
		return nil, err
	}
	return &p4v1.TableEntry{
		TableId: table.ID,
		Match: []*p4v1.FieldMatch{
			exactMatch(nodeField.ID, node),
			exactMatch(outcomeField.ID, outcome),
		},
		Action: &p4v1.TableAction{Type: &p4v1.TableAction_Action{Action: action}},
	}, nil
}

// ForwardEntry returns the LPM entry of an IPv4 forwarding route.
func (t *Translator) ForwardEntry(e rulegen.ForwardEntry) (*p4v1.TableEntry, error) {
	table, err := t.table(rulegen.ForwardTable)
	if err != nil {
		return nil, err
	}
	field, err := table.MatchField(rulegen.ForwardMatch)
	if err != nil {
		return nil, err
	}
	if !e.Prefix.Addr().Is4() || field.BitWidth != 32 {
		return nil, serrors.New("forward prefix must be IPv4",
			"prefix", e.Prefix, "bitwidth", field.BitWidth)
	}
	addr := e.Prefix.Masked().Addr().As4()
	action, err := t.action(rulegen.ForwardAction, []rulegen.Param{
		{Name: rulegen.ForwardPortArg, Value: int64(e.Port)},
	})
	if err != nil {
		return nil, err
	}
	return &p4v1.TableEntry{
		TableId: table.ID,
		Match: []*p4v1.FieldMatch{{
			FieldId: field.ID,
			FieldMatchType: &p4v1.FieldMatch_Lpm{Lpm: &p4v1.FieldMatch_LPM{
				Value:     addr[:],
				PrefixLen: int32(e.Prefix.Bits()),
			}},
		}},
		Action: &p4v1.TableAction{Type: &p4v1.TableAction_Action{Action: action}},
	}, nil
}

func (t *Translator) table(name string) (p4info.Table, error) {
	if table, ok := t.tables[name]; ok {
		return table, nil
	}
	table, err := t.desc.Table(name)
	if err != nil {
		return p4info.Table{}, err
	}
	t.tables[name] = table
	return table, nil
}

func (t *Translator) action(name string, params []rulegen.Param) (*p4v1.Action, error) {
	a, ok := t.actions[name]
	if !ok {
		var err error
		if a, err = t.desc.Action(name); err != nil {
			return nil, err
		}
		t.actions[name] = a
	}
	out := &p4v1.Action{ActionId: a.ID}
	for _, p := range params {
		decl, err := a.Param(p.Name)
		if err != nil {
			return nil, err
		}
		v, err := encodeValue(p.Value, decl.BitWidth)
		if err != nil {
			return nil, serrors.Wrap("encoding action parameter", err,
				"action", a.Name, "param", p.Name)
		}
		out.Params = append(out.Params, &p4v1.Action_Param{ParamId: decl.ID, Value: v})
	}
	return out, nil
}

func exactMatch(id uint32, v []byte) *p4v1.FieldMatch {
	return &p4v1.FieldMatch{
		FieldId:        id,
		FieldMatchType: &p4v1.FieldMatch_Exact_{Exact: &p4v1.FieldMatch_Exact{Value: v}},
	}
}

// encodeValue returns v as a big-endian byte string of ceil(bits/8) bytes.
func encodeValue(v int64, bits int) ([]byte, error) {
	if bits < 1 || bits > 64 {
		return nil, serrors.New("unsupported bit width", "bitwidth", bits)
	}
	if v < 0 || (bits < 64 && uint64(v)>>uint(bits) != 0) {
		return nil, serrors.Join(ErrValueRange, nil, "value", v, "bitwidth", bits)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	n := (bits + 7) / 8
	return append([]byte(nil), buf[8-n:]...), nil
}
