// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/google/afdo-bisect/pkg/hash"
	"github.com/google/afdo-bisect/pkg/log"
	"github.com/google/afdo-bisect/pkg/osutil"
)

// stateFile is the on-disk session state.
// Digests is parallel to Results; state written by older versions does not have it.
type stateFile struct {
	Seed    json.Number `json:"seed"`
	Results *[]int      `json:"accumulated_results"`
	Digests []string    `json:"accumulated_digests,omitempty"`
}

type replayEntry struct {
	verdict Verdict
	digest  string
}

// LoadState loads the seed and the verdicts of a previous interrupted session.
// A missing state file is not an error, the session starts from scratch.
func (c *Client) LoadState() (bool, error) {
	data, err := os.ReadFile(c.cfg.StateFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Logf(0, "no state file %v, starting a new session", c.cfg.StateFile)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read state file: %w", err)
	}
	seed, replay, err := parseState(data)
	if err != nil {
		return false, fmt.Errorf("%w %v: %w", ErrMalformedState, c.cfg.StateFile, err)
	}
	c.seed = seed
	c.replay = replay
	log.Logf(0, "resuming session from %v: seed=%v, %v recorded verdicts", c.cfg.StateFile, seed, len(replay))
	return true, nil
}

func parseState(data []byte) (int64, []replayEntry, error) {
	st := new(stateFile)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(st); err != nil {
		return 0, nil, err
	}
	if st.Seed == "" {
		return 0, nil, fmt.Errorf("no seed")
	}
	if st.Results == nil {
		return 0, nil, fmt.Errorf("no accumulated_results")
	}
	seed, err := parseSeed(st.Seed)
	if err != nil {
		return 0, nil, err
	}
	results := *st.Results
	if len(st.Digests) != 0 && len(st.Digests) != len(results) {
		return 0, nil, fmt.Errorf("%v digests for %v results", len(st.Digests), len(results))
	}
	var replay []replayEntry
	for i, res := range results {
		v, ok := FromStatus(res)
		if !ok || !v.recordable() {
			return 0, nil, fmt.Errorf("bad result #%v: %v", i, res)
		}
		ent := replayEntry{verdict: v}
		if len(st.Digests) != 0 {
			if err := hash.Valid(st.Digests[i]); err != nil {
				return 0, nil, err
			}
			ent.digest = st.Digests[i]
		}
		replay = append(replay, ent)
	}
	return seed, replay, nil
}

// parseSeed accepts integer seeds and, for state files written by other tools, fractional ones.
func parseSeed(num json.Number) (int64, error) {
	if seed, err := num.Int64(); err == nil {
		return seed, nil
	}
	f, err := num.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("bad seed %q", num)
	}
	return int64(f), nil
}

// SaveState atomically persists the seed and all verdicts recorded so far.
func (c *Client) SaveState() error {
	results := make([]int, 0, len(c.results))
	for _, v := range c.results {
		results = append(results, int(v))
	}
	st := &stateFile{
		Seed:    json.Number(strconv.FormatInt(c.seed, 10)),
		Results: &results,
		Digests: c.digests,
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := osutil.WriteFileAtomic(c.cfg.StateFile, data); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Finish archives the state file of a completed session under a date-stamped name,
// or deletes it if remove is set. Returns the archive name.
func (c *Client) Finish(remove bool) (string, error) {
	if !osutil.IsExist(c.cfg.StateFile) {
		return "", nil
	}
	if remove {
		return "", os.Remove(c.cfg.StateFile)
	}
	archive := ArchiveName(c.cfg.StateFile, time.Now())
	if err := os.Rename(c.cfg.StateFile, archive); err != nil {
		return "", fmt.Errorf("failed to archive state: %w", err)
	}
	log.Logf(0, "state archived to %v", archive)
	return archive, nil
}

func ArchiveName(stateFile string, now time.Time) string {
	return fmt.Sprintf("%v.completed.%v", stateFile, now.Format("2006-01-02"))
}
