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
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/private/storage"
	"github.com/cml-ids/cmlids/private/storage/verdict"
)

type predictionInfo struct {
	Model     string     `json:"model" yaml:"model"`
	Proba     [2]float64 `json:"proba" yaml:"proba"`
	LatencyUs int64      `json:"latency_us" yaml:"latency_us"`
}

type verdictInfo struct {
	FlowID      uint64           `json:"flow_id" yaml:"flow_id"`
	Class       int              `json:"class" yaml:"class"`
	Proba       [2]float64       `json:"proba" yaml:"proba"`
	Time        string           `json:"time" yaml:"time"`
	Predictions []predictionInfo `json:"predictions" yaml:"predictions"`
}

func newVerdicts(pather CommandPather) *cobra.Command {
	var flags struct {
		db     string
		flow   uint64
		format string
	}

	var cmd = &cobra.Command{
		Use:     "verdicts",
		Short:   "Show the verdicts recorded by the controller",
		Example: fmt.Sprintf(`  %[1]s verdicts --db verdicts.db --flow 4242`, pather.CommandPath()),
		Long: `'verdicts' reads the verdict database of the controller. Without --flow it
prints the number of verdicts per class, with --flow it prints every verdict of
that flow together with the predictions of the individual models.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format, formatHuman, formatJSON, formatYAML); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			if _, err := os.Stat(flags.db); err != nil {
				return serrors.Wrap("opening verdict database", err)
			}
			db, err := storage.NewVerdictStorage(storage.DBConfig{Connection: flags.db}, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			if !cmd.Flags().Changed("flow") {
				counts, err := db.ClassCounts(cmd.Context())
				if err != nil {
					return err
				}
				if flags.format != formatHuman {
					return writeStructured(w, flags.format, counts)
				}
				writeCounts(w, counts)
				return nil
			}
			vs, err := db.Verdicts(cmd.Context(), flags.flow)
			if err != nil {
				return err
			}
			infos := verdictInfos(vs)
			if flags.format != formatHuman {
				return writeStructured(w, flags.format, infos)
			}
			writeVerdicts(w, infos)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.db, "db", storage.DefaultVerdictDBPath,
		"Path of the verdict database")
	cmd.Flags().Uint64Var(&flags.flow, "flow", 0, "Flow id to show the verdicts of")
	cmd.Flags().StringVar(&flags.format, "format", formatHuman,
		"Output format (human|json|yaml)")
	return cmd
}

func verdictInfos(vs []verdict.Verdict) []verdictInfo {
	infos := make([]verdictInfo, 0, len(vs))
	for _, v := range vs {
		info := verdictInfo{
			FlowID: v.FlowID,
			Class:  v.Class,
			Proba:  v.Proba,
			Time:   v.Time.Format(time.RFC3339Nano),
		}
		for _, p := range v.Predictions {
			info.Predictions = append(info.Predictions, predictionInfo{
				Model:     p.Model,
				Proba:     p.Proba,
				LatencyUs: p.Latency.Microseconds(),
			})
		}
		infos = append(infos, info)
	}
	return infos
}

func writeCounts(w io.Writer, counts map[int]int) {
	classes := make([]int, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	for _, c := range classes {
		fmt.Fprintf(w, "class %d: %d\n", c, counts[c])
	}
}

func writeVerdicts(w io.Writer, infos []verdictInfo) {
	for _, v := range infos {
		fmt.Fprintf(w, "%s flow %d class %d proba [%.4f %.4f]\n",
			v.Time, v.FlowID, v.Class, v.Proba[0], v.Proba[1])
		for _, p := range v.Predictions {
			fmt.Fprintf(w, "  %-8s [%.4f %.4f] %dus\n",
				p.Model, p.Proba[0], p.Proba[1], p.LatencyUs)
		}
	}
}
