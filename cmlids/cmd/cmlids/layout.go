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

	"github.com/cml-ids/cmlids/pkg/ensemble"
	"github.com/cml-ids/cmlids/pkg/flowstate"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
)

type layoutField struct {
	Name   string `json:"name" yaml:"name"`
	Offset int    `json:"offset" yaml:"offset"`
	Width  int    `json:"width" yaml:"width"`
}

type layoutInfo struct {
	Width  int           `json:"width" yaml:"width"`
	Fields []layoutField `json:"fields" yaml:"fields"`
}

func newLayout(pather CommandPather) *cobra.Command {
	var flags struct {
		p4info     string
		featureIDs string
		forest     string
		trees      int
		format     string
		p4         bool
		widths     flowstate.Widths
	}

	example := fmt.Sprintf(`  %[1]s layout --p4info cmlids.p4info.txt --forest forest.yaml
  %[1]s layout --p4info cmlids.p4info.txt --trees 3 --p4`, pather.CommandPath())
	var cmd = &cobra.Command{
		Use:     "layout",
		Short:   "Show the bit layout of the flow state",
		Example: example,
		Long: `'layout' shows how the flow state of the switch program is packed into a
single bitstring: the flow key, the per tree classification flags and the
features of the packet-in header, most significant field first.

With --p4 the P4 concatenation expression that builds the bitstring is
printed instead.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format, formatHuman, formatJSON, formatYAML); err != nil {
				return err
			}
			if flags.forest != "" && cmd.Flags().Changed("trees") {
				return serrors.New("--forest and --trees are mutually exclusive")
			}
			cmd.SilenceUsage = true

			trees := flags.trees
			if flags.forest != "" {
				forest, err := ensemble.LoadForest(flags.forest)
				if err != nil {
					return err
				}
				trees = len(forest.Trees)
			}
			features, err := loadFeatures(flags.p4info, flags.featureIDs)
			if err != nil {
				return err
			}
			layout, err := flowstate.NewLayout(features, trees, flags.widths)
			if err != nil {
				return err
			}
			if flags.p4 {
				_, err := fmt.Fprint(cmd.OutOrStdout(), layout.P4Concat("meta.bitstring", "meta.flow"))
				return err
			}
			return writeLayout(cmd.OutOrStdout(), flags.format, layout)
		},
	}
	defaults := flowstate.DefaultWidths()
	cmd.Flags().StringVar(&flags.p4info, "p4info", "",
		"Text format p4info of the switch program (required)")
	cmd.Flags().StringVar(&flags.featureIDs, "feature-ids", "",
		"CSV mapping feature names to switch feature ids")
	cmd.Flags().StringVar(&flags.forest, "forest", "", "Forest whose trees are tracked")
	cmd.Flags().IntVar(&flags.trees, "trees", 0, "Number of tracked trees")
	cmd.Flags().StringVar(&flags.format, "format", formatHuman,
		"Output format (human|json|yaml)")
	cmd.Flags().BoolVar(&flags.p4, "p4", false, "Print the P4 concatenation expression")
	cmd.Flags().IntVar(&flags.widths.FlowID, "width.flow-id", defaults.FlowID,
		"Width of the flow id")
	cmd.Flags().IntVar(&flags.widths.Time, "width.time", defaults.Time,
		"Width of time features, 0 uses the header width")
	cmd.Flags().IntVar(&flags.widths.Bytes, "width.bytes", defaults.Bytes,
		"Width of byte count features, 0 uses the header width")
	cmd.Flags().IntVar(&flags.widths.Count, "width.count", defaults.Count,
		"Width of packet count features, 0 uses the header width")
	cmd.Flags().IntVar(&flags.widths.Ordinal, "width.ordinal", defaults.Ordinal,
		"Width of the remaining features, 0 uses the header width")
	if err := cmd.MarkFlagRequired("p4info"); err != nil {
		panic(err)
	}
	return cmd
}

func writeLayout(w io.Writer, format string, layout *flowstate.Layout) error {
	info := layoutInfo{Width: layout.Width()}
	for _, f := range layout.Fields() {
		offset, err := layout.Offset(f.Name)
		if err != nil {
			return err
		}
		info.Fields = append(info.Fields, layoutField{Name: f.Name, Offset: offset, Width: f.Width})
	}
	if format != formatHuman {
		return writeStructured(w, format, info)
	}
	fmt.Fprintf(w, "Total width: %d bits\n", info.Width)
	for _, f := range info.Fields {
		fmt.Fprintf(w, "  [%3d:%3d] %s\n", f.Offset+f.Width-1, f.Offset, f.Name)
	}
	return nil
}
