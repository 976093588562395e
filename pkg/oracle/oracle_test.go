// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/afdo-bisect/pkg/osutil"
	"github.com/google/afdo-bisect/pkg/profile"
)

type testEnv struct {
	t       *testing.T
	dir     string
	decider string
	calls   string
	status  string
}

// newTestEnv creates a decider script that logs candidate paths to a file
// and exits with the status stored in another file.
func newTestEnv(t *testing.T) *testEnv {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported")
	}
	dir := t.TempDir()
	env := &testEnv{
		t:       t,
		dir:     dir,
		decider: filepath.Join(dir, "decider.sh"),
		calls:   filepath.Join(dir, "calls"),
		status:  filepath.Join(dir, "status"),
	}
	script := fmt.Sprintf("#!/bin/sh\necho \"$1\" >> %v\necho decider output\nexit $(cat %v)\n", env.calls, env.status)
	require.NoError(t, osutil.WriteExecFile(env.decider, []byte(script)))
	env.setStatus(0)
	return env
}

func (env *testEnv) setStatus(status int) {
	require.NoError(env.t, osutil.WriteFile(env.status, []byte(strconv.Itoa(status))))
}

func (env *testEnv) invocations() []string {
	data, err := os.ReadFile(env.calls)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(env.t, err)
	return strings.Fields(string(data))
}

func (env *testEnv) client(seed int64) *Client {
	return NewClient(Config{
		Decider:   env.decider,
		StateFile: filepath.Join(env.dir, "state.json"),
		FatalDir:  filepath.Join(env.dir, "fatal"),
		Seed:      seed,
	})
}

func (env *testEnv) readState() map[string]interface{} {
	data, err := os.ReadFile(filepath.Join(env.dir, "state.json"))
	require.NoError(env.t, err)
	res := make(map[string]interface{})
	require.NoError(env.t, json.Unmarshal(data, &res))
	return res
}

func testProfile(name, body string) *profile.Profile {
	p := profile.New()
	p.Set(name, body)
	return p
}

func TestClassifyVerdicts(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(1)
	for _, v := range []Verdict{Good, Bad, Skip} {
		env.setStatus(int(v))
		got, err := c.Classify(testProfile("f", ":1\n"), true)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	calls := env.invocations()
	require.Len(t, calls, 3)
	for _, file := range calls {
		assert.False(t, osutil.IsExist(file), "candidate %v was not removed", file)
	}
	st := env.readState()
	assert.Equal(t, float64(1), st["seed"])
	assert.Equal(t, []interface{}{float64(0), float64(1), float64(125)}, st["accumulated_results"])
	assert.Len(t, st["accumulated_digests"], 3)
	assert.Equal(t, 3, c.Recorded())
}

func TestClassifyNotRecordable(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(1)
	env.setStatus(1)
	v, err := c.Classify(testProfile("f", ":1\n"), false)
	require.NoError(t, err)
	assert.Equal(t, Bad, v)
	assert.Equal(t, 0, c.Recorded())
	assert.False(t, osutil.IsExist(filepath.Join(env.dir, "state.json")))
}

func TestClassifyUnexpectedStatus(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(1)
	env.setStatus(42)
	_, err := c.Classify(testProfile("f", ":1\n"), true)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 42, serr.Status)
	assert.Contains(t, string(serr.Output), "decider output")
	assert.Equal(t, 0, c.Recorded())
	for _, file := range env.invocations() {
		assert.False(t, osutil.IsExist(file))
	}
}

func TestClassifyFatal(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(1)
	env.setStatus(int(Fatal))
	p := testProfile("f", ":1\n 1: 2\n")
	_, err := c.Classify(p, true)
	require.ErrorIs(t, err, ErrFatalVerdict)
	var ferr *FatalError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, filepath.Join(env.dir, "fatal"), filepath.Dir(ferr.File))
	data, err := os.ReadFile(ferr.File)
	require.NoError(t, err)
	assert.Equal(t, p.Serialize(), data)
	assert.Equal(t, 0, c.Recorded())
}

func TestClassifyTimeout(t *testing.T) {
	env := newTestEnv(t)
	slow := filepath.Join(env.dir, "slow.sh")
	require.NoError(t, osutil.WriteExecFile(slow, []byte("#!/bin/sh\nsleep 100\n")))
	c := NewClient(Config{
		Decider:   slow,
		StateFile: filepath.Join(env.dir, "state.json"),
		Timeout:   100 * time.Millisecond,
	})
	_, err := c.Classify(testProfile("f", ":1\n"), true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "timedout")
	assert.Equal(t, 0, c.Recorded())
}

func TestClassifyLaunchFailure(t *testing.T) {
	env := newTestEnv(t)
	c := NewClient(Config{
		Decider:   filepath.Join(env.dir, "no-such-decider"),
		StateFile: filepath.Join(env.dir, "state.json"),
	})
	_, err := c.Classify(testProfile("f", ":1\n"), true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedStatus)
}

func TestResume(t *testing.T) {
	env := newTestEnv(t)
	profiles := []*profile.Profile{
		testProfile("a", ":1\n"),
		testProfile("b", ":2\n"),
		testProfile("c", ":3\n"),
	}
	c := env.client(123)
	loaded, err := c.LoadState()
	require.NoError(t, err)
	assert.False(t, loaded)
	env.setStatus(int(Bad))
	for _, p := range profiles[:2] {
		_, err := c.Classify(p, true)
		require.NoError(t, err)
	}
	require.Len(t, env.invocations(), 2)

	// The session is interrupted, the next one replays the recorded verdicts.
	env.setStatus(int(Good))
	c = env.client(999)
	loaded, err = c.LoadState()
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, int64(123), c.Seed())
	for _, p := range profiles[:2] {
		v, err := c.Classify(p, true)
		require.NoError(t, err)
		assert.Equal(t, Bad, v)
	}
	assert.Len(t, env.invocations(), 2)
	// Non-recordable calls do not consume replayed verdicts.
	v, err := c.Classify(profiles[2], false)
	require.NoError(t, err)
	assert.Equal(t, Good, v)
	assert.Len(t, env.invocations(), 3)
	v, err = c.Classify(profiles[2], true)
	require.NoError(t, err)
	assert.Equal(t, Good, v)
	assert.Len(t, env.invocations(), 4)
	st := env.readState()
	assert.Equal(t, []interface{}{float64(1), float64(1), float64(0)}, st["accumulated_results"])
}

func TestResumeMismatch(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(1)
	_, err := c.Classify(testProfile("a", ":1\n"), true)
	require.NoError(t, err)

	c = env.client(1)
	_, err = c.LoadState()
	require.NoError(t, err)
	_, err = c.Classify(testProfile("a", ":2\n"), true)
	require.ErrorIs(t, err, ErrReplayMismatch)
	assert.Len(t, env.invocations(), 1)
}

func TestResumeLegacyState(t *testing.T) {
	env := newTestEnv(t)
	state := filepath.Join(env.dir, "state.json")
	require.NoError(t, osutil.WriteFile(state, []byte(`{"seed": 1581640830.25, "accumulated_results": [1, 0]}`)))
	c := env.client(1)
	loaded, err := c.LoadState()
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, int64(1581640830), c.Seed())
	// Legacy verdicts are replayed positionally, whatever the candidate is.
	v, err := c.Classify(testProfile("x", ":1\n"), true)
	require.NoError(t, err)
	assert.Equal(t, Bad, v)
	v, err = c.Classify(testProfile("y", ":1\n"), true)
	require.NoError(t, err)
	assert.Equal(t, Good, v)
	assert.Empty(t, env.invocations())
	st := env.readState()
	assert.Equal(t, float64(1581640830), st["seed"])
	assert.Len(t, st["accumulated_digests"], 2)
}

func TestLoadMalformedState(t *testing.T) {
	digest := strings.Repeat("ab", 20)
	for i, data := range []string{
		`{`,
		`[]`,
		`{"accumulated_results": [1]}`,
		`{"seed": 1}`,
		`{"seed": "x", "accumulated_results": []}`,
		`{"seed": 1, "accumulated_results": [42]}`,
		`{"seed": 1, "accumulated_results": [127]}`,
		`{"seed": 1, "accumulated_results": [1, 0], "accumulated_digests": ["` + digest + `"]}`,
		`{"seed": 1, "accumulated_results": [1], "accumulated_digests": ["xyz"]}`,
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			env := newTestEnv(t)
			require.NoError(t, osutil.WriteFile(filepath.Join(env.dir, "state.json"), []byte(data)))
			_, err := env.client(1).LoadState()
			assert.ErrorIs(t, err, ErrMalformedState)
		})
	}
}

func TestFinish(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(1)
	archive, err := c.Finish(false)
	require.NoError(t, err)
	assert.Empty(t, archive)

	_, err = c.Classify(testProfile("a", ":1\n"), true)
	require.NoError(t, err)
	archive, err = c.Finish(false)
	require.NoError(t, err)
	assert.Equal(t, ArchiveName(filepath.Join(env.dir, "state.json"), time.Now()), archive)
	assert.True(t, osutil.IsExist(archive))
	assert.False(t, osutil.IsExist(filepath.Join(env.dir, "state.json")))

	_, err = c.Classify(testProfile("b", ":1\n"), true)
	require.NoError(t, err)
	_, err = c.Finish(true)
	require.NoError(t, err)
	assert.False(t, osutil.IsExist(filepath.Join(env.dir, "state.json")))
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "state.json.completed.2026-10-15",
		ArchiveName("state.json", time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC)))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "GOOD", Good.String())
	assert.Equal(t, "BAD", Bad.String())
	assert.Equal(t, "SKIP", Skip.String())
	assert.Equal(t, "FATAL", Fatal.String())
	assert.Equal(t, "Verdict(3)", Verdict(3).String())
	_, ok := FromStatus(3)
	assert.False(t, ok)
}
