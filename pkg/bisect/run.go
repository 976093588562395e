// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package bisect

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os/exec"
	"time"

	"github.com/google/afdo-bisect/pkg/config"
	"github.com/google/afdo-bisect/pkg/log"
	"github.com/google/afdo-bisect/pkg/oracle"
	"github.com/google/afdo-bisect/pkg/osutil"
	"github.com/google/afdo-bisect/pkg/profile"
	"github.com/google/afdo-bisect/pkg/stat"
)

type Config struct {
	GoodProf string `json:"good_prof"`
	BadProf  string `json:"bad_prof"`
	// Decider is the external classifier, see package oracle for the protocol.
	Decider string `json:"external_decider"`
	Output  string `json:"analysis_output_file"`
	// StateFile persists oracle verdicts so that an interrupted analysis can be resumed.
	StateFile   string `json:"state_file"`
	NoResume    bool   `json:"no_resume"`
	RemoveState bool   `json:"remove_state_on_completion"`
	// Seed can only be set for a fresh analysis, a resumed one uses the recorded seed.
	Seed              *int64        `json:"seed,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"`
	RangeTrials       int           `json:"range_trials,omitempty"`
	SkipBaselineCheck bool          `json:"skip_baseline_check,omitempty"`
	FatalDir          string        `json:"fatal_dir,omitempty"`
	MetricsFile       string        `json:"metrics_file,omitempty"`
	Trace             io.Writer     `json:"-"`
}

type Report struct {
	Seed              int64   `json:"seed"`
	BisectResults     *Result `json:"bisect_results"`
	GoodOnlyFunctions bool    `json:"good_only_functions"`
	BadOnlyFunctions  bool    `json:"bad_only_functions"`
}

var ErrConflictingFlags = errors.New("conflicting flags")

func (cfg *Config) Validate() error {
	for _, f := range []struct{ name, val string }{
		{"good profile", cfg.GoodProf},
		{"bad profile", cfg.BadProf},
		{"external decider", cfg.Decider},
		{"analysis output file", cfg.Output},
		{"state file", cfg.StateFile},
	} {
		if f.val == "" {
			return fmt.Errorf("no %v specified", f.name)
		}
	}
	for _, file := range []string{cfg.GoodProf, cfg.BadProf} {
		if err := osutil.IsAccessible(file); err != nil {
			return err
		}
	}
	// The decider may also be a program name resolved via PATH.
	if _, err := exec.LookPath(cfg.Decider); err != nil {
		return fmt.Errorf("bad external decider: %w", err)
	}
	if !cfg.NoResume && cfg.Seed != nil {
		return fmt.Errorf("%w: seed is not used when resuming, specify no_resume", ErrConflictingFlags)
	}
	if cfg.Timeout < 0 || cfg.RangeTrials < 0 {
		return fmt.Errorf("negative timeout or range trials")
	}
	return nil
}

// Run performs the whole analysis: bisection of the common functions
// and checks of the functions present in only one of the profiles.
// On success the report is written to cfg.Output and the state file is archived or removed.
func Run(cfg *Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Trace == nil {
		cfg.Trace = io.Discard
	}
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	client := oracle.NewClient(oracle.Config{
		Decider:   cfg.Decider,
		StateFile: cfg.StateFile,
		Timeout:   cfg.Timeout,
		FatalDir:  cfg.FatalDir,
		Seed:      seed,
	})
	if !cfg.NoResume {
		if _, err := client.LoadState(); err != nil {
			return nil, err
		}
	}
	logf := func(msg string, args ...interface{}) {
		fmt.Fprintf(cfg.Trace, msg+"\n", args...)
		log.Logf(1, msg, args...)
	}
	logf("seed: %v", client.Seed())
	good, err := profile.ParseFile(cfg.GoodProf)
	if err != nil {
		return nil, err
	}
	bad, err := profile.ParseFile(cfg.BadProf)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := Analyze(client, good, bad, Options{
		Rand:              rand.New(rand.NewSource(client.Seed())),
		RangeTrials:       cfg.RangeTrials,
		SkipBaselineCheck: cfg.SkipBaselineCheck,
		Logf:              logf,
	})
	if err != nil {
		return nil, err
	}
	report := &Report{
		Seed:          client.Seed(),
		BisectResults: res,
	}
	if report.GoodOnlyFunctions, err = GoodCoversBad(client, good, bad); err != nil {
		return nil, err
	}
	if report.BadOnlyFunctions, err = BadCoversGood(client, good, bad); err != nil {
		return nil, err
	}
	logf("analysis finished in %v, %v verdicts recorded", time.Since(start), client.Recorded())
	if log.V(1) {
		for _, name := range res.Individuals {
			log.Logf(1, "%v (%v):\n%v", name, profile.Demangle(name), profile.Diff(good, bad, name))
		}
	}
	if err := config.SaveFile(cfg.Output, report); err != nil {
		return nil, fmt.Errorf("failed to write the report: %w", err)
	}
	for _, st := range stat.Collect() {
		log.Logf(0, "%-24v: %v", st.Name, st.Value)
	}
	if cfg.MetricsFile != "" {
		if err := stat.WriteTextfile(cfg.MetricsFile); err != nil {
			return nil, fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	if _, err := client.Finish(cfg.RemoveState); err != nil {
		return nil, err
	}
	return report, nil
}
