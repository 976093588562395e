// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// afdo-bisect finds the function profiles responsible for a good AFDO profile turning bad.
// It bisects the functions of the two profiles, classifying candidate profiles with an external decider:
//
//	$ afdo-bisect -good_prof good.afdo -bad_prof bad.afdo.xz \
//		-external_decider ./decider.sh -analysis_output_file report.json
//
// The decider is invoked with a path to a candidate profile and must exit with
// 0 (good), 1 (bad), 125 (skip) or 127 (fatal, aborts the analysis).
// The analysis state is saved after every decider run; rerunning the same command
// after an interruption resumes the analysis.
// All parameters can also be given in a JSON or YAML file with -config, flags override it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/afdo-bisect/pkg/bisect"
	"github.com/google/afdo-bisect/pkg/config"
	"github.com/google/afdo-bisect/pkg/log"
	"github.com/google/afdo-bisect/pkg/tool"
)

const defaultStateFile = "afdo_analysis_state.json"

var (
	flagConfig      = flag.String("config", "", "JSON or YAML file with analysis parameters")
	flagGood        = flag.String("good_prof", "", "text-based profile known to be good")
	flagBad         = flag.String("bad_prof", "", "text-based profile known to be bad")
	flagDecider     = flag.String("external_decider", "", "program that classifies a profile by its exit status")
	flagOutput      = flag.String("analysis_output_file", "", "file to write the analysis report to")
	flagState       = flag.String("state_file", defaultStateFile, "file to persist the analysis state to")
	flagNoResume    = flag.Bool("no_resume", false, "don't resume from the state file, start a fresh analysis")
	flagRemoveState = flag.Bool("remove_state_on_completion", false,
		"remove the state file on completion instead of archiving it")
	flagSeed         = flag.Int64("seed", 0, "random seed for a fresh analysis (requires -no_resume)")
	flagTimeout      = flag.Duration("timeout", 0, "timeout for a single decider run (0 means no timeout)")
	flagRangeTrials  = flag.Int("range_trials", 0, "number of randomized trials when narrowing interacting ranges")
	flagSkipBaseline = flag.Bool("skip_baseline_check", false, "don't check that the profiles are classified as expected")
	flagFatalDir     = flag.String("fatal_dir", "", "dir for profiles the decider reported as fatal")
	flagMetrics      = flag.String("metrics_file", "", "file to write Prometheus metrics to")
)

func main() {
	flag.Parse()
	log.EnableLogCaching(1000, 1<<20)
	cfg, err := loadConfig()
	if err != nil {
		tool.Fail(err)
	}
	cfg.Trace = os.Stdout
	report, err := bisect.Run(cfg)
	if err != nil {
		tool.Failf("analysis failed: %v", err)
	}
	res := report.BisectResults
	fmt.Printf("seed: %v\nindividual functions: %v\ninteracting ranges: %v\n"+
		"good-only functions suffice: %v\nbad-only functions suffice: %v\nreport: %v\n",
		report.Seed, len(res.Individuals), len(res.Ranges),
		report.GoodOnlyFunctions, report.BadOnlyFunctions, cfg.Output)
}

// loadConfig merges the config file (if any) with the explicitly set flags.
func loadConfig() (*bisect.Config, error) {
	cfg := new(bisect.Config)
	if *flagConfig != "" {
		if err := config.LoadFile(*flagConfig, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.StateFile == "" {
		cfg.StateFile = *flagState
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "good_prof":
			cfg.GoodProf = *flagGood
		case "bad_prof":
			cfg.BadProf = *flagBad
		case "external_decider":
			cfg.Decider = *flagDecider
		case "analysis_output_file":
			cfg.Output = *flagOutput
		case "state_file":
			cfg.StateFile = *flagState
		case "no_resume":
			cfg.NoResume = *flagNoResume
		case "remove_state_on_completion":
			cfg.RemoveState = *flagRemoveState
		case "seed":
			cfg.Seed = flagSeed
		case "timeout":
			cfg.Timeout = *flagTimeout
		case "range_trials":
			cfg.RangeTrials = *flagRangeTrials
		case "skip_baseline_check":
			cfg.SkipBaselineCheck = *flagSkipBaseline
		case "fatal_dir":
			cfg.FatalDir = *flagFatalDir
		case "metrics_file":
			cfg.MetricsFile = *flagMetrics
		}
	})
	return cfg, nil
}
