// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package oracle runs the external decider program on candidate profiles
// and maintains a resumable log of its verdicts.
//
// The decider is invoked as "decider /path/to/candidate.afdo" and communicates
// the verdict with its exit status (see Verdict).
// Every recordable verdict is appended to the state file, so an interrupted
// session can be resumed: verdicts of the previous session are replayed
// in the original call order without invoking the decider.
package oracle

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/afdo-bisect/pkg/hash"
	"github.com/google/afdo-bisect/pkg/log"
	"github.com/google/afdo-bisect/pkg/osutil"
	"github.com/google/afdo-bisect/pkg/profile"
	"github.com/google/afdo-bisect/pkg/stat"
	"github.com/google/uuid"
)

type Config struct {
	// Decider is the path to the external classifier program.
	Decider string
	// StateFile is where the session state is persisted.
	StateFile string
	// Timeout limits a single decider run, 0 means no limit.
	Timeout time.Duration
	// FatalDir receives copies of profiles classified as FATAL (current dir if empty).
	FatalDir string
	// Seed is used unless a previous session is loaded.
	Seed int64
}

type Client struct {
	cfg     Config
	seed    int64
	results []Verdict
	digests []string
	replay  []replayEntry
	calls   int
}

var (
	statRuns = stat.New("decider runs", "Number of external decider invocations",
		stat.Prometheus("afdo_bisect_decider_runs"))
	statReplayed = stat.New("replayed verdicts", "Verdicts replayed from a previous session",
		stat.Prometheus("afdo_bisect_replayed_verdicts"))
	statLatency = stat.New("decider latency", "Decider run time (ms)",
		stat.Distribution{}, stat.Prometheus("afdo_bisect_decider_latency_ms"))
	statVerdicts = map[Verdict]*stat.Val{
		Good: stat.New("good verdicts", "Candidates classified GOOD", stat.Prometheus("afdo_bisect_good_verdicts")),
		Bad:  stat.New("bad verdicts", "Candidates classified BAD", stat.Prometheus("afdo_bisect_bad_verdicts")),
		Skip: stat.New("skip verdicts", "Candidates classified SKIP", stat.Prometheus("afdo_bisect_skip_verdicts")),
	}
)

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		seed: cfg.Seed,
	}
}

func (c *Client) Seed() int64 {
	return c.seed
}

// Recorded returns the number of verdicts recorded in this session (including replayed ones).
func (c *Client) Recorded() int {
	return len(c.results)
}

// Classify returns the verdict for the candidate profile p.
// Recordable calls are persisted to the state file and are replayed on resume,
// so callers must issue them in the same order in a resumed session.
// Non-recordable calls always run the decider.
func (c *Client) Classify(p *profile.Profile, recordable bool) (Verdict, error) {
	data := p.Serialize()
	digest := hash.String(data)
	c.calls++
	if recordable && len(c.replay) != 0 {
		ent := c.replay[0]
		c.replay = c.replay[1:]
		if ent.digest != "" && ent.digest != digest {
			return 0, fmt.Errorf("%w: call #%v recorded for profile %v, now requested for %v",
				ErrReplayMismatch, len(c.results), ent.digest, digest)
		}
		statReplayed.Add(1)
		log.Logf(1, "call #%v: replayed %v", c.calls, ent.verdict)
		return ent.verdict, c.record(ent.verdict, digest)
	}
	verdict, err := c.run(data)
	if err != nil {
		return 0, err
	}
	log.Logf(1, "call #%v: %v (%v)", c.calls, verdict, p)
	if recordable {
		if err := c.record(verdict, digest); err != nil {
			return 0, err
		}
	}
	return verdict, nil
}

func (c *Client) record(v Verdict, digest string) error {
	// Verdicts replayed from state files without digests get the digest of the current candidate,
	// which migrates such files to the checked format.
	c.results = append(c.results, v)
	c.digests = append(c.digests, digest)
	statVerdicts[v].Add(1)
	return c.SaveState()
}

func (c *Client) run(data []byte) (Verdict, error) {
	file, err := osutil.TempFile("afdo-candidate-")
	if err != nil {
		return 0, err
	}
	defer os.Remove(file)
	if err := osutil.WriteFile(file, data); err != nil {
		return 0, fmt.Errorf("failed to write candidate profile: %w", err)
	}
	start := time.Now()
	output, err := osutil.Run(c.cfg.Timeout, osutil.Command(c.cfg.Decider, file))
	statRuns.Add(1)
	statLatency.Add(int(time.Since(start).Milliseconds()))
	status, ok := osutil.ExitStatus(err)
	if !ok {
		return 0, osutil.PrependContext("decider failed", err)
	}
	verdict, ok := FromStatus(status)
	if !ok {
		return 0, &StatusError{Status: status, Output: output}
	}
	if verdict == Fatal {
		saved, err := c.saveFatal(data)
		if err != nil {
			return 0, fmt.Errorf("%w (failed to save the profile: %w)", ErrFatalVerdict, err)
		}
		return 0, &FatalError{File: saved, Output: output}
	}
	return verdict, nil
}

// saveFatal writes a diagnostic copy of the profile that made the decider fail,
// along with the recent log output.
func (c *Client) saveFatal(data []byte) (string, error) {
	dir := c.cfg.FatalDir
	if dir == "" {
		dir = "."
	}
	if err := osutil.MkdirAll(dir); err != nil {
		return "", err
	}
	file := filepath.Join(dir, fmt.Sprintf("fatal-%v.afdo", uuid.New()))
	if err := osutil.WriteFile(file, data); err != nil {
		return "", err
	}
	if logs := log.CachedLogOutput(); logs != "" {
		osutil.WriteFile(file+".log", []byte(logs))
	}
	log.Logf(0, "decider reported FATAL, profile saved to %v", file)
	return file, nil
}
