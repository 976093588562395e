// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/afdo-bisect/pkg/osutil"
)

type testConfig struct {
	GoodProf string        `json:"good_prof"`
	Seed     *int64        `json:"seed"`
	NoResume bool          `json:"no_resume"`
	Timeout  time.Duration `json:"timeout"`
	Trials   int           `json:"range_trials"`
}

func TestLoad(t *testing.T) {
	seed := int64(42)
	tests := []struct {
		input  string
		output testConfig
		err    bool
	}{
		{
			`{"good_prof": "good.afdo"}`,
			testConfig{GoodProf: "good.afdo"},
			false,
		},
		{
			`
# Comments are stripped.
{
	"good_prof": "good.afdo",
	# Like this one.
	"seed": 42,
	"no_resume": true
}`,
			testConfig{GoodProf: "good.afdo", Seed: &seed, NoResume: true},
			false,
		},
		{
			`{"bad": 1}`,
			testConfig{},
			true,
		},
		{
			`{"range_trials": "many"}`,
			testConfig{},
			true,
		},
		{
			`{"seed": null}`,
			testConfig{},
			false,
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			var cfg testConfig
			err := LoadData([]byte(test.input), &cfg)
			if test.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(test.output, cfg); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bisect.yaml")
	require.NoError(t, osutil.WriteFile(file, []byte(`
good_prof: good.afdo
seed: 42
range_trials: 5
timeout: 1000000000
`)))
	var cfg testConfig
	require.NoError(t, LoadFile(file, &cfg))
	seed := int64(42)
	assert.Equal(t, testConfig{GoodProf: "good.afdo", Seed: &seed, Trials: 5, Timeout: time.Second}, cfg)

	require.NoError(t, osutil.WriteFile(file, []byte("unknown_field: 1\n")))
	assert.Error(t, LoadFile(file, &cfg))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bisect.cfg")
	seed := int64(7)
	want := testConfig{GoodProf: "x", Seed: &seed, Trials: 20}
	require.NoError(t, SaveFile(file, want))
	var got testConfig
	require.NoError(t, LoadFile(file, &got))
	assert.Equal(t, want, got)
}

func TestLoadBadType(t *testing.T) {
	want := "config type is not pointer to struct"
	if err := LoadData([]byte("{}"), 1); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
	i := 0
	if err := LoadData([]byte("{}"), &i); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
	s := struct{}{}
	if err := LoadYAMLData([]byte("a: 1"), s); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
}

func TestLoadFileMissing(t *testing.T) {
	var cfg testConfig
	assert.Error(t, LoadFile("", &cfg))
	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "nope.json"), &cfg))
}
