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

// Package env contains common configuration and initialization code for the
// cmlids services. If something is specific to one app, it should go into
// that app's code and not here.
package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/private/config"
)

const (
	// ShutdownGraceInterval is the time applications wait after issuing a
	// clean shutdown signal, before forcefully tearing down the application.
	ShutdownGraceInterval = 5 * time.Second

	// HandlerTimeout is the time after which the http handler gives up on a
	// request and returns an error instead.
	HandlerTimeout = time.Minute
)

var _ config.Config = (*General)(nil)

type General struct {
	// ID is the name of the service instance. It labels log output.
	ID string `toml:"id,omitempty"`
	// ConfigDir is the directory relative paths of the other sections are
	// resolved against.
	ConfigDir string `toml:"config_dir,omitempty"`
}

// InitDefaults sets the default config directory.
func (cfg *General) InitDefaults() {
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = "."
	}
}

func (cfg *General) Validate() error {
	if cfg.ID == "" {
		return serrors.New("no service id specified")
	}
	return cfg.checkDir()
}

// checkDir checks that the config dir is a directory.
func (cfg *General) checkDir() error {
	if cfg.ConfigDir != "" {
		info, err := os.Stat(cfg.ConfigDir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return serrors.New("config_dir is not a directory", "dir", cfg.ConfigDir)
		}
	}
	return nil
}

func (cfg *General) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, fmt.Sprintf(generalSample, ctx[config.ID]))
}

func (cfg *General) ConfigName() string {
	return "general"
}

// Path resolves p against the config directory. Absolute paths and empty
// paths are returned unchanged.
func (cfg *General) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.ConfigDir, p)
}

var _ config.Config = (*Metrics)(nil)

type Metrics struct {
	config.NoDefaulter
	config.NoValidator
	// Prometheus contains the address to export prometheus metrics on. If
	// not set, metrics are not exported.
	Prometheus string `toml:"prometheus,omitempty"`
}

func (cfg *Metrics) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteString(dst, metricsSample)
}

func (cfg *Metrics) ConfigName() string {
	return "metrics"
}

// ServePrometheus serves the default registry on /metrics until ctx is done.
func (cfg *Metrics) ServePrometheus(ctx context.Context) error {
	if cfg.Prometheus == "" {
		return nil
	}
	handler := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{Timeout: HandlerTimeout},
		),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	log.Info("Exporting prometheus metrics", "addr", cfg.Prometheus)

	server := &http.Server{Addr: cfg.Prometheus, Handler: mux}
	go func() {
		defer log.HandlePanic()
		<-ctx.Done()
		server.Close()
	}()
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return serrors.Wrap("serving prometheus metrics", err)
	}
	return nil
}
