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

// cmlids is the offline tool of the flow classifier. It compiles forests into
// switch rules and inspects switch programs, captures and verdict databases.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/private/app/command"
)

// CommandPather returns the path to a command.
type CommandPather interface {
	CommandPath() string
}

func main() {
	executable := filepath.Base(os.Args[0])
	cmd := newRoot(executable)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRoot(executable string) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:           executable,
		Short:         "cmlids offline tool",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Setup(log.Config{Console: log.ConsoleConfig{Level: logLevel}})
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log.level", "error",
		"Console logging level (debug|info|error)")
	cmd.AddCommand(
		newCompile(cmd),
		newLayout(cmd),
		newFields(cmd),
		newFlows(cmd),
		newVerdicts(cmd),
		command.NewVersion(cmd),
	)
	return cmd
}
