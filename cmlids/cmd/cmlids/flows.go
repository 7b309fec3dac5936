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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/pkg/flowstate"
	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

type flowInfo struct {
	FlowID   uint64 `json:"flow_id" yaml:"flow_id"`
	Src      string `json:"src" yaml:"src"`
	Dst      string `json:"dst" yaml:"dst"`
	SrcPort  uint16 `json:"src_port" yaml:"src_port"`
	DstPort  uint16 `json:"dst_port" yaml:"dst_port"`
	Protocol uint8  `json:"protocol" yaml:"protocol"`
	Packets  int    `json:"packets" yaml:"packets"`
}

func newFlows(pather CommandPather) *cobra.Command {
	var flags struct {
		bits   int
		format string
	}

	var cmd = &cobra.Command{
		Use:     "flows <pcap>",
		Short:   "List the flows of a capture with the ids the switch assigns them",
		Example: fmt.Sprintf(`  %[1]s flows --bits 16 capture.pcap`, pather.CommandPath()),
		Long: `'flows' reads a pcap capture and lists its IPv4 flows in order of first
appearance, together with the flow id computed from the 5-tuple the same way
the switch program does. Non-IPv4 packets are skipped.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format, formatHuman, formatJSON, formatYAML); err != nil {
				return err
			}
			if flags.bits < 1 || flags.bits > 32 {
				return serrors.New("bits out of range", "bits", flags.bits)
			}
			cmd.SilenceUsage = true

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			flows, err := readFlows(f, flags.bits)
			if err != nil {
				return serrors.Wrap("reading capture", err, "file", args[0])
			}
			if flags.format != formatHuman {
				return writeStructured(cmd.OutOrStdout(), flags.format, flows)
			}
			w := cmd.OutOrStdout()
			for _, fl := range flows {
				fmt.Fprintf(w, "%10d %s:%d -> %s:%d proto %d packets %d\n", fl.FlowID,
					fl.Src, fl.SrcPort, fl.Dst, fl.DstPort, fl.Protocol, fl.Packets)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.bits, "bits", flowstate.DefaultWidths().FlowID,
		"Width of the flow id")
	cmd.Flags().StringVar(&flags.format, "format", formatHuman,
		"Output format (human|json|yaml)")
	return cmd
}

func readFlows(r io.Reader, bits int) ([]flowInfo, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	src := gopacket.NewPacketSource(pr, pr.LinkType())
	index := make(map[flowstate.Key]int)
	var flows []flowInfo
	for {
		p, err := src.NextPacket()
		if errors.Is(err, io.EOF) {
			return flows, nil
		}
		if err != nil {
			return nil, err
		}
		k, err := flowstate.KeyFromPacket(p)
		if err != nil {
			log.Debug("Skipping packet", "err", err)
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(flows)
			index[k] = i
			flows = append(flows, flowInfo{
				FlowID:   k.FlowID(bits),
				Src:      k.Src.String(),
				Dst:      k.Dst.String(),
				SrcPort:  k.SrcPort,
				DstPort:  k.DstPort,
				Protocol: k.Protocol,
			})
		}
		flows[i].Packets++
	}
}
