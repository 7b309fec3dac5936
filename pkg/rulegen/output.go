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

package rulegen

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"

	"github.com/cml-ids/cmlids/pkg/ensemble"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

// Forwarding table names of the switch program.
const (
	ForwardTable   = "forward_table"
	ForwardAction  = "ipv4_forward"
	ForwardMatch   = "hdr.ipv4.dstAddr"
	ForwardPortArg = "port"
)

// ForwardEntry routes a destination prefix to an egress port.
type ForwardEntry struct {
	Prefix netip.Prefix
	Port   uint32
}

// CLI renders the entry as a simple_switch_CLI table_add command.
func (e ForwardEntry) CLI() string {
	return fmt.Sprintf("table_add %s %s %s => %d", ForwardTable, ForwardAction, e.Prefix, e.Port)
}

// DefaultForward returns the routes of the two host test topology.
func DefaultForward() []ForwardEntry {
	return []ForwardEntry{
		{Prefix: netip.MustParsePrefix("10.0.0.1/32"), Port: 0},
		{Prefix: netip.MustParsePrefix("10.0.0.3/32"), Port: 1},
	}
}

// Tables lists the comparison tables the switch program must declare: one
// per tree and level up to the depth of the deepest tree.
func Tables(forest *ensemble.Forest) []TableID {
	depth := forest.MaxDepth()
	tables := make([]TableID, 0, len(forest.Trees)*(depth+1))
	for i := range forest.Trees {
		for d := 0; d <= depth; d++ {
			tables = append(tables, TableID{Tree: i + 1, Depth: d})
		}
	}
	return tables
}

// WriteRecords writes one record per rule.
func WriteRecords(w io.Writer, rules []Rule) error {
	bw := bufio.NewWriter(w)
	for _, r := range rules {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return serrors.Wrap("writing rule", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return serrors.Wrap("writing rules", err)
	}
	return nil
}

// WriteCLI writes the rules followed by the forwarding entries as
// simple_switch_CLI commands.
func WriteCLI(w io.Writer, rules []Rule, forward []ForwardEntry) error {
	bw := bufio.NewWriter(w)
	for _, r := range rules {
		if _, err := fmt.Fprintln(bw, r.CLI()); err != nil {
			return serrors.Wrap("writing rule", err)
		}
	}
	for _, e := range forward {
		if _, err := fmt.Fprintln(bw, e.CLI()); err != nil {
			return serrors.Wrap("writing forward entry", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return serrors.Wrap("writing rules", err)
	}
	return nil
}
