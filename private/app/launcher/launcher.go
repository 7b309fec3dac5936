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

// Package launcher runs the cmlids services: it parses the command line,
// loads and validates the TOML configuration, sets up logging and then hands
// control to the service.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/private/app/command"
	libconfig "github.com/cml-ids/cmlids/private/config"
)

const cfgConfigFile = "config"

// LoggingConfig is implemented by configurations that carry a log block.
type LoggingConfig interface {
	LogConfig() log.Config
}

// IDConfig is implemented by configurations that carry a service id.
type IDConfig interface {
	ServiceID() string
}

// Application models a cmlids service.
type Application struct {
	// TOMLConfig holds the Go data structure for the application-specific
	// TOML configuration. If it implements LoggingConfig, logging is set up
	// from it.
	TOMLConfig libconfig.Config

	// ShortName is the short name of the application. If empty, the
	// executable name is used.
	ShortName string

	// Main is the custom logic of the application. If Main returns an error,
	// Run exits with a non-zero code.
	Main func(ctx context.Context) error

	// ErrorWriter specifies where error output should be printed. If nil,
	// os.Stderr is used.
	ErrorWriter io.Writer
}

// Run executes the application with os.Args. It stops the application on
// SIGINT or SIGTERM and exits the process on a fatal error.
func (a *Application) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := a.run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(a.errorWriter(), "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func (a *Application) run(ctx context.Context, args []string) error {
	executable := filepath.Base(os.Args[0])
	cmd := a.newCommand(executable)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (a *Application) newCommand(executable string) *cobra.Command {
	shortName := a.ShortName
	if shortName == "" {
		shortName = executable
	}
	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString(cfgConfigFile)
			if err != nil {
				return err
			}
			return a.execute(cmd.Context(), shortName, file)
		},
	}
	cmd.Flags().String(cfgConfigFile, "", "Configuration file (required)")
	if err := cmd.MarkFlagRequired(cfgConfigFile); err != nil {
		panic(err)
	}
	cmd.AddCommand(
		command.NewSample(cmd, a.TOMLConfig, nil),
		command.NewVersion(cmd),
	)
	return cmd
}

func (a *Application) execute(ctx context.Context, shortName, file string) error {
	if err := libconfig.LoadFile(file, a.TOMLConfig); err != nil {
		return serrors.Wrap("loading config from file", err, "file", file)
	}
	a.TOMLConfig.InitDefaults()

	if lc, ok := a.TOMLConfig.(LoggingConfig); ok {
		if err := log.Setup(lc.LogConfig()); err != nil {
			return serrors.Wrap("initialize logging", err)
		}
	}
	defer log.Flush()
	defer log.HandlePanic()

	var id string
	if ic, ok := a.TOMLConfig.(IDConfig); ok {
		id = ic.ServiceID()
	}
	log.Info(fmt.Sprintf("=====================> Service started %s", shortName),
		"id", id, "version", command.Version)
	defer log.Info(fmt.Sprintf("=====================> Service stopped %s", shortName), "id", id)

	if err := a.TOMLConfig.Validate(); err != nil {
		return serrors.Wrap("validate config", err)
	}
	if a.Main == nil {
		return nil
	}
	return a.Main(ctx)
}

func (a *Application) errorWriter() io.Writer {
	if a.ErrorWriter != nil {
		return a.ErrorWriter
	}
	return os.Stderr
}
