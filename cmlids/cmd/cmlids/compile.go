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
	"os"

	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/pkg/ensemble"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/rulegen"
	"github.com/cml-ids/cmlids/pkg/vote"
)

const (
	formatRecords = "records"
	formatCLI     = "cli"
)

func newCompile(pather CommandPather) *cobra.Command {
	var flags struct {
		p4info       string
		featureIDs   string
		usedFeatures string
		format       string
		out          string
		packetsCount int
		tieBreak     string
		forward      bool
	}

	var cmd = &cobra.Command{
		Use:   "compile <forest>",
		Short: "Compile a random forest into switch table rules",
		Example: fmt.Sprintf(`  %[1]s compile --p4info cmlids.p4info.txt forest.yaml
  %[1]s compile --feature-ids ids.csv --format cli --forward forest.yaml.zst`,
			pather.CommandPath()),
		Long: `'compile' translates every tree of a random forest into the rules of the
per tree and level comparison tables of the switch program.

The feature ids the switch compares on are read from the packet-in header of
the p4info, from a feature,id CSV, or from both, in which case the CSV ids
take precedence.

The records format prints one rule per line as
  table_name, current_node_id, outcome, action, params...
The cli format prints simple_switch_CLI table_add commands.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format, formatRecords, formatCLI); err != nil {
				return err
			}
			var tie vote.TieBreak
			if err := tie.UnmarshalText([]byte(flags.tieBreak)); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			var subset []string
			if flags.usedFeatures != "" {
				var err error
				if subset, err = loadNames(flags.usedFeatures); err != nil {
					return err
				}
			}
			forest, err := ensemble.LoadForest(args[0], ensemble.WithFeatures(subset))
			if err != nil {
				return err
			}
			ids, err := compileIDs(flags.p4info, flags.featureIDs)
			if err != nil {
				return err
			}
			opts := []rulegen.Option{rulegen.WithTieBreak(tie)}
			if flags.packetsCount > 0 {
				opts = append(opts, rulegen.WithPacketsCount(flags.packetsCount))
			}
			rules, err := rulegen.Compile(forest, ids, nil, opts...)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if flags.out != "" {
				f, err := os.Create(flags.out)
				if err != nil {
					return serrors.Wrap("creating output file", err, "file", flags.out)
				}
				defer f.Close()
				w = f
			}
			var forward []rulegen.ForwardEntry
			if flags.forward {
				forward = rulegen.DefaultForward()
			}
			return writeRules(w, flags.format, rules, forward)
		},
	}
	cmd.Flags().StringVar(&flags.p4info, "p4info", "",
		"Text format p4info of the switch program")
	cmd.Flags().StringVar(&flags.featureIDs, "feature-ids", "",
		"CSV mapping feature names to switch feature ids")
	cmd.Flags().StringVar(&flags.usedFeatures, "used-features", "",
		"CSV naming the feature columns of the forest, if the model does not")
	cmd.Flags().StringVar(&flags.format, "format", formatRecords,
		"Output format (records|cli)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Write the rules to this file")
	cmd.Flags().IntVar(&flags.packetsCount, "packets-count", 0,
		"Add the packets_count parameter to compare actions")
	cmd.Flags().StringVar(&flags.tieBreak, "tie-break", "positive",
		"Class of leaves with equal class counts (positive|negative)")
	cmd.Flags().BoolVar(&flags.forward, "forward", false,
		"Append the forwarding entries of the two host test topology (cli format)")
	return cmd
}

func compileIDs(p4infoPath, idsPath string) (rulegen.FeatureIDs, error) {
	switch {
	case p4infoPath != "":
		set, err := loadFeatures(p4infoPath, idsPath)
		if err != nil {
			return nil, err
		}
		return set.IDs(), nil
	case idsPath != "":
		return loadIDs(idsPath)
	default:
		return nil, serrors.New("one of --p4info or --feature-ids must be set")
	}
}

func writeRules(w io.Writer, format string, rules []rulegen.Rule,
	forward []rulegen.ForwardEntry) error {

	if format == formatCLI {
		return rulegen.WriteCLI(w, rules, forward)
	}
	return rulegen.WriteRecords(w, rules)
}
