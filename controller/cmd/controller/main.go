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
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/cml-ids/cmlids/controller"
	"github.com/cml-ids/cmlids/controller/config"
	"github.com/cml-ids/cmlids/pkg/ensemble"
	"github.com/cml-ids/cmlids/pkg/feature"
	"github.com/cml-ids/cmlids/pkg/log"
	"github.com/cml-ids/cmlids/pkg/p4info"
	"github.com/cml-ids/cmlids/pkg/private/serrors"
	"github.com/cml-ids/cmlids/pkg/rulegen"
	"github.com/cml-ids/cmlids/pkg/vote"
	"github.com/cml-ids/cmlids/private/app/launcher"
	"github.com/cml-ids/cmlids/private/p4rt"
	"github.com/cml-ids/cmlids/private/storage"
	"github.com/cml-ids/cmlids/private/storage/cleaner"
	"github.com/cml-ids/cmlids/private/storage/verdict"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "cmlids controller",
		Main:       realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	general := &globalCfg.General
	desc, err := p4info.ParseFile(general.Path(globalCfg.Switch.P4Info))
	if err != nil {
		return serrors.Wrap("loading p4info", err)
	}
	used, err := loadNames(general.Path(globalCfg.Features.Used))
	if err != nil {
		return err
	}
	models, err := loadModels(used)
	if err != nil {
		return err
	}
	rules, err := compileRules(desc, used)
	if err != nil {
		return err
	}
	routes, err := globalCfg.Classification.Routes()
	if err != nil {
		return err
	}

	ctrl, err := controller.New(desc, models)
	if err != nil {
		return serrors.Wrap("creating controller", err)
	}
	ctrl.TieBreak = globalCfg.Classification.TieBreak
	ctrl.Metrics = controller.NewMetrics()

	var verdictCleaner *cleaner.Cleaner
	if !globalCfg.Verdicts.Disable {
		db, err := storage.NewVerdictStorage(globalCfg.Verdicts, prometheus.DefaultRegisterer)
		if err != nil {
			return serrors.Wrap("opening verdict database", err)
		}
		defer db.Close()
		ctrl.Store = db
		verdictCleaner = newVerdictCleaner(db)
	}

	client, err := p4rt.Dial(globalCfg.Switch.P4RT(), desc)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Arbitrate(ctx); err != nil {
		return serrors.Wrap("arbitrating with switch", err)
	}
	if globalCfg.Switch.PushPipeline {
		pipeline, err := p4rt.LoadPipeline(
			general.Path(globalCfg.Switch.P4Info),
			general.Path(globalCfg.Switch.DeviceConfig),
		)
		if err != nil {
			return err
		}
		if err := client.SetPipeline(ctx, pipeline); err != nil {
			return serrors.Wrap("pushing pipeline", err)
		}
	}
	if err := ctrl.Install(ctx, client, rules, routes); err != nil {
		return err
	}

	g, errCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx)
	})
	if interval := globalCfg.Switch.CounterInterval.Duration; interval > 0 {
		counters, err := desc.CounterNames()
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer log.HandlePanic()
			ctrl.PollCounters(errCtx, client, counters, interval)
			return nil
		})
	}
	if verdictCleaner != nil {
		g.Go(func() error {
			defer log.HandlePanic()
			interval := max(globalCfg.Verdicts.Retention.Duration/10, time.Minute)
			verdictCleaner.Loop(errCtx, interval)
			return nil
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		if err := ctrl.Run(errCtx, client); err != nil {
			return serrors.Wrap("running controller", err)
		}
		return nil
	})
	return g.Wait()
}

func loadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.Wrap("opening used features", err, "path", path)
	}
	defer f.Close()
	names, err := feature.LoadNames(f)
	if err != nil {
		return nil, serrors.Wrap("loading used features", err, "path", path)
	}
	return names, nil
}

// loadModels loads the configured ensemble. Models that do not name their
// input columns read the used features.
func loadModels(used []string) ([]controller.Model, error) {
	cfg := &globalCfg.Models
	var models []controller.Model
	for _, m := range []struct {
		path   string
		weight float64
	}{
		{path: cfg.Forest, weight: cfg.ForestWeight},
		{path: cfg.Boosted, weight: cfg.BoostedWeight},
		{path: cfg.MLP, weight: cfg.MLPWeight},
	} {
		if m.path == "" {
			continue
		}
		c, err := ensemble.Load(globalCfg.General.Path(m.path), ensemble.WithFeatures(used))
		if err != nil {
			return nil, err
		}
		features := modelFeatures(c)
		log.Info("Loaded model", "model", c.Name(), "weight", m.weight,
			"features", len(features))
		models = append(models, controller.Model{
			Classifier: c,
			Weight:     m.weight,
			Features:   features,
		})
	}
	return models, nil
}

func modelFeatures(c vote.Classifier) []string {
	switch m := c.(type) {
	case *ensemble.Forest:
		return m.Features
	case *ensemble.Boosted:
		return m.Features
	case *ensemble.MLP:
		return m.Features
	default:
		return nil
	}
}

func compileRules(desc *p4info.Descriptor, used []string) ([]rulegen.Rule, error) {
	forest, err := ensemble.LoadForest(globalCfg.General.Path(globalCfg.Models.DataPlaneForest),
		ensemble.WithFeatures(used))
	if err != nil {
		return nil, err
	}
	ids, err := featureIDs(desc)
	if err != nil {
		return nil, err
	}
	opts := []rulegen.Option{rulegen.WithTieBreak(globalCfg.Classification.TieBreak)}
	if n := globalCfg.Classification.PacketsCount; n > 0 {
		opts = append(opts, rulegen.WithPacketsCount(n))
	}
	rules, err := rulegen.Compile(forest, ids, nil, opts...)
	if err != nil {
		return nil, serrors.Wrap("compiling rules", err)
	}
	log.Info("Compiled rules", "trees", len(forest.Trees), "rules", len(rules))
	return rules, nil
}

// featureIDs returns the configured feature ids, or the packet-in header ids
// of the switch program if none are configured.
func featureIDs(desc *p4info.Descriptor) (rulegen.FeatureIDs, error) {
	if globalCfg.Features.IDs == "" {
		set, err := feature.FromDescriptor(desc)
		if err != nil {
			return nil, err
		}
		return set.IDs(), nil
	}
	path := globalCfg.General.Path(globalCfg.Features.IDs)
	f, err := os.Open(path)
	if err != nil {
		return nil, serrors.Wrap("opening feature ids", err, "path", path)
	}
	defer f.Close()
	ids, err := feature.LoadIDs(f)
	if err != nil {
		return nil, serrors.Wrap("loading feature ids", err, "path", path)
	}
	return ids, nil
}

// newVerdictCleaner returns a cleaner that prunes verdicts older than the
// retention period.
func newVerdictCleaner(db verdict.DB) *cleaner.Cleaner {
	retention := globalCfg.Verdicts.Retention.Duration
	return cleaner.New(func(ctx context.Context) (int, error) {
		return db.DeleteBefore(ctx, time.Now().Add(-retention))
	}, "verdicts", cleaner.Metrics{
		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cmlids_verdictdb_cleaner_errors_total",
			Help: "Total number of failed verdict cleaner runs.",
		}),
		RunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cmlids_verdictdb_cleaner_runs_total",
			Help: "Total number of successful verdict cleaner runs.",
		}),
		DeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cmlids_verdictdb_cleaner_deleted_total",
			Help: "Total number of verdicts deleted by the cleaner.",
		}),
	})
}
