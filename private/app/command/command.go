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

// Package command contains the subcommands shared by the cmlids binaries.
package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/private/config"
)

// Pather returns the command path of the parent command.
type Pather interface {
	CommandPath() string
}

// Version is the version of the binaries. It is set at link time.
var Version = "dev"

// NewSample returns a command that prints the commented sample configuration
// of cfg.
func NewSample(pather Pather, cfg config.Sampler, ctx config.CtxMap) *cobra.Command {
	example := fmt.Sprintf("  %[1]s sample > %[2]s.toml\n  %[1]s --config %[2]s.toml",
		pather.CommandPath(), cmdName(pather))
	return &cobra.Command{
		Use:     "sample",
		Short:   "Display a sample configuration file",
		Example: example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Sample(cmd.OutOrStdout(), nil, ctx)
			return nil
		},
	}
}

// NewVersion returns a command that prints the version and build
// information.
func NewVersion(pather Pather) *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show the version information",
		Example: fmt.Sprintf("  %[1]s version", pather.CommandPath()),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return WriteVersion(cmd.OutOrStdout())
		},
	}
}

// WriteVersion writes the version followed by the module build information.
func WriteVersion(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Version: %s\n", Version); err != nil {
		return err
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	_, err := fmt.Fprintf(w, "Go version: %s\nModule: %s\n", info.GoVersion, info.Main.Path)
	return err
}

func cmdName(pather Pather) string {
	if p, ok := pather.(interface{ Name() string }); ok {
		return p.Name()
	}
	return filepath.Base(os.Args[0])
}
