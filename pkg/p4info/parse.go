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

// Package p4info parses the P4Runtime p4info text descriptor of the switch
// program and answers the symbolic to numeric lookups the rule installer and
// the controller need: packet-in/packet-out metadata ids, counter names, table,
// match-field, action and parameter ids.
//
// The descriptor is a line oriented block language:
//
//	tables {
//	  preamble {
//	    id: 33574068
//	    name: "MyIngress.table_cmp_feature_tree_1_level_0"
//	  }
//	  match_fields {
//	    id: 1
//	    name: "meta.current_node_id"
//	    bitwidth: 16
//	  }
//	}
//
// Blocks open with a trailing '{' and close with a lone '}'. At most four
// levels nest below the top level. Repeated top-level resources are keyed as
// <kind>_<preamble.name>, repeated inner entries as <kind>_<id>.
package p4info

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

var (
	// ErrMalformedDescriptor indicates that the descriptor text cannot be
	// parsed.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	// ErrUnknownSection indicates that a queried block is absent.
	ErrUnknownSection = errors.New("unknown section")
)

// MaxDepth is the number of block levels allowed below the top level.
const MaxDepth = 4

// Top-level resource kinds that repeat and are keyed by their preamble name.
var namedKinds = map[string]bool{
	"counters":                   true,
	"direct_counters":            true,
	"meters":                     true,
	"registers":                  true,
	"tables":                     true,
	"actions":                    true,
	"controller_packet_metadata": true,
}

// Inner entry kinds that repeat and are keyed by their id.
var indexedKinds = map[string]bool{
	"match_fields": true,
	"action_refs":  true,
	"params":       true,
	"metadata":     true,
}

// Descriptor is a parsed p4info descriptor.
type Descriptor struct {
	root *Block
}

// Root returns the top-level block.
func (d *Descriptor) Root() *Block {
	return d.root
}

// ParseFile parses the descriptor stored at path.
func ParseFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.Wrap("opening descriptor", err, "path", path)
	}
	defer f.Close()
	d, err := Parse(f)
	if err != nil {
		return nil, serrors.Wrap("parsing descriptor", err, "path", path)
	}
	return d, nil
}

// Parse parses the descriptor text read from r.
func Parse(r io.Reader) (*Descriptor, error) {
	root := newBlock("")
	stack := []*Block{root}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		opens, closes := countBraces(line)
		switch {
		case opens+closes > 1:
			return nil, serrors.Join(ErrMalformedDescriptor, nil,
				"line", lineNo, "reason", "more than one brace on a line")
		case opens == 1:
			if !strings.HasSuffix(line, "{") {
				return nil, serrors.Join(ErrMalformedDescriptor, nil,
					"line", lineNo, "reason", "opening brace must end the line")
			}
			if len(stack) > MaxDepth {
				return nil, serrors.Join(ErrMalformedDescriptor, nil,
					"line", lineNo, "reason", "nesting too deep", "max_depth", MaxDepth)
			}
			name := strings.TrimSpace(strings.TrimSuffix(line, "{"))
			if name == "" {
				return nil, serrors.Join(ErrMalformedDescriptor, nil,
					"line", lineNo, "reason", "unnamed block")
			}
			stack = append(stack, newBlock(name))
		case closes == 1:
			if line != "}" {
				return nil, serrors.Join(ErrMalformedDescriptor, nil,
					"line", lineNo, "reason", "closing brace must stand alone")
			}
			if len(stack) == 1 {
				return nil, serrors.Join(ErrMalformedDescriptor, nil,
					"line", lineNo, "reason", "unbalanced closing brace")
			}
			blk := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			key, err := blockKey(blk, len(stack)-1)
			if err != nil {
				return nil, serrors.Join(ErrMalformedDescriptor, err, "line", lineNo)
			}
			parent.set(key, blk)
		default:
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				return nil, serrors.Join(ErrMalformedDescriptor, nil,
					"line", lineNo, "reason", "expected key: value")
			}
			stack[len(stack)-1].set(key, Leaf(unquote(value)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, serrors.Wrap("reading descriptor", err)
	}
	if len(stack) != 1 {
		return nil, serrors.Join(ErrMalformedDescriptor, nil,
			"reason", "unterminated block", "block", stack[len(stack)-1].Name)
	}
	return &Descriptor{root: root}, nil
}

// blockKey returns the key under which blk is stored in a parent at the given
// depth (0 for top level).
func blockKey(blk *Block, parentDepth int) (string, error) {
	switch {
	case parentDepth == 0 && namedKinds[blk.Name]:
		name, ok := blk.Lookup("preamble", "name")
		leaf, isLeaf := name.(Leaf)
		if !ok || !isLeaf {
			return "", serrors.New("resource without preamble name", "kind", blk.Name)
		}
		return blk.Name + "_" + string(leaf), nil
	case parentDepth == 1 && indexedKinds[blk.Name]:
		id, ok := blk.Leaf("id")
		if !ok {
			return "", serrors.New("entry without id", "kind", blk.Name)
		}
		return blk.Name + "_" + id, nil
	default:
		return blk.Name, nil
	}
}

// countBraces counts the braces outside of double-quoted strings.
func countBraces(line string) (opens, closes int) {
	inQuote, escaped := false, false
	for _, c := range line {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == '{' && !inQuote:
			opens++
		case c == '}' && !inQuote:
			closes++
		}
	}
	return opens, closes
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
		return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(v)
	}
	return v
}
