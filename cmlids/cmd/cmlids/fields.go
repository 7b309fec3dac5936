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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/pkg/p4info"
)

type headerField struct {
	ID       uint32 `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	BitWidth int    `json:"bitwidth" yaml:"bitwidth"`
}

type counterInfo struct {
	ID   uint32 `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

type programInfo struct {
	PacketIn  []headerField `json:"packet_in" yaml:"packet_in"`
	PacketOut []headerField `json:"packet_out" yaml:"packet_out"`
	Counters  []counterInfo `json:"counters" yaml:"counters"`
}

func newFields(pather CommandPather) *cobra.Command {
	var flags struct {
		format string
	}

	var cmd = &cobra.Command{
		Use:     "fields <p4info>",
		Short:   "Show the controller headers and counters of a switch program",
		Example: fmt.Sprintf(`  %[1]s fields --format yaml cmlids.p4info.txt`, pather.CommandPath()),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format, formatHuman, formatJSON, formatYAML); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			desc, err := p4info.ParseFile(args[0])
			if err != nil {
				return err
			}
			info, err := describeProgram(desc)
			if err != nil {
				return err
			}
			if flags.format != formatHuman {
				return writeStructured(cmd.OutOrStdout(), flags.format, info)
			}
			writeProgram(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.format, "format", formatHuman,
		"Output format (human|json|yaml)")
	return cmd
}

func describeProgram(desc *p4info.Descriptor) (programInfo, error) {
	var info programInfo
	in, err := desc.PacketInFields()
	if err != nil {
		return info, err
	}
	out, err := desc.PacketOutFields()
	if err != nil {
		return info, err
	}
	info.PacketIn = headerFields(in)
	info.PacketOut = headerFields(out)

	names, err := desc.CounterNames()
	if err != nil {
		return info, err
	}
	for _, name := range names {
		c, err := desc.Counter(name)
		if err != nil {
			return info, err
		}
		info.Counters = append(info.Counters, counterInfo{ID: c.ID, Name: c.Alias, Size: c.Size})
	}
	return info, nil
}

func headerFields(fields []p4info.Field) []headerField {
	r := make([]headerField, 0, len(fields))
	for _, f := range fields {
		r = append(r, headerField{ID: f.ID, Name: f.Name, BitWidth: f.BitWidth})
	}
	return r
}

func writeProgram(w io.Writer, info programInfo) {
	fmt.Fprintln(w, "Packet-in header:")
	for _, f := range info.PacketIn {
		fmt.Fprintf(w, "  %3d %-32s %3d bits\n", f.ID, f.Name, f.BitWidth)
	}
	fmt.Fprintln(w, "Packet-out header:")
	for _, f := range info.PacketOut {
		fmt.Fprintf(w, "  %3d %-32s %3d bits\n", f.ID, f.Name, f.BitWidth)
	}
	fmt.Fprintln(w, "Counters:")
	for _, c := range info.Counters {
		fmt.Fprintf(w, "  %d %s (size %d)\n", c.ID, c.Name, c.Size)
	}
}
