// Copyright 2018 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package bisect localizes the function profiles that turn a good profile into a bad one.
//
// The search works on the functions present in both profiles. Candidate profiles are
// built from the good profile by substituting the bad bodies of a subset of functions,
// and are classified by an oracle. Functions that make the profile bad on their own
// are reported as individuals; groups of functions that are only bad together are
// reported as (approximately minimal) ranges.
package bisect

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/google/afdo-bisect/pkg/bisect/minimize"
	"github.com/google/afdo-bisect/pkg/oracle"
	"github.com/google/afdo-bisect/pkg/profile"
)

// Oracle classifies candidate profiles.
// Recordable calls must be issued in a deterministic order, they may be replayed on resume.
type Oracle interface {
	Classify(p *profile.Profile, recordable bool) (oracle.Verdict, error)
}

type Result struct {
	// Individuals are functions whose bad profile alone makes the good profile bad.
	Individuals []string `json:"individuals"`
	// Ranges are groups of functions that make the good profile bad only together.
	Ranges [][]string `json:"ranges"`
}

type Options struct {
	// Rand determines the order in which functions are bisected.
	Rand *rand.Rand
	// RangeTrials is the number of randomized trials of the range search (minimize.DefaultTrials if 0).
	RangeTrials int
	// SkipBaselineCheck disables checking that the good profile is GOOD and the bad profile is BAD.
	SkipBaselineCheck bool
	Logf              func(string, ...interface{})
}

var ErrInconsistentBaseline = errors.New("inconsistent baseline")

type env struct {
	oracle   Oracle
	good     *profile.Profile
	bad      *profile.Profile
	funcs    []string
	opts     Options
	numTests int
}

func newEnv(o Oracle, good, bad *profile.Profile, funcs []string, opts Options) *env {
	if opts.Logf == nil {
		opts.Logf = func(string, ...interface{}) {}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(0))
	}
	return &env{
		oracle: o,
		good:   good,
		bad:    bad,
		funcs:  funcs,
		opts:   opts,
	}
}

// Analyze bisects the functions common to good and bad.
// The functions are processed in a random order determined by opts.Rand,
// so runs with different seeds may report different (but valid) results.
func Analyze(o Oracle, good, bad *profile.Profile, opts Options) (*Result, error) {
	env := newEnv(o, good, bad, nil, opts)
	if !opts.SkipBaselineCheck {
		if err := env.checkBaseline(); err != nil {
			return nil, err
		}
	}
	env.funcs = profile.Common(good, bad)
	if len(env.funcs) == 0 {
		env.log("no common functions")
		return newResult(), nil
	}
	env.opts.Rand.Shuffle(len(env.funcs), func(i, j int) {
		env.funcs[i], env.funcs[j] = env.funcs[j], env.funcs[i]
	})
	env.log("bisecting %v common functions (good: %v, bad: %v)", len(env.funcs), good.Len(), bad.Len())
	res, err := env.locate(0, len(env.funcs))
	if err != nil {
		return nil, err
	}
	slices.Sort(res.Individuals)
	slices.SortFunc(res.Ranges, func(a, b []string) int {
		return slices.Compare(a, b)
	})
	env.log("found %v individual functions and %v ranges in %v tests",
		len(res.Individuals), len(res.Ranges), env.numTests)
	return res, nil
}

func (env *env) checkBaseline() error {
	for _, base := range []struct {
		name string
		prof *profile.Profile
		want oracle.Verdict
	}{
		{"good", env.good, oracle.Good},
		{"bad", env.bad, oracle.Bad},
	} {
		verdict, err := env.oracle.Classify(base.prof, false)
		if err != nil {
			return err
		}
		if verdict != base.want {
			return fmt.Errorf("%w: %v profile is %v, expected %v", ErrInconsistentBaseline,
				base.name, verdict, base.want)
		}
	}
	return nil
}

// LocateFaults narrows down funcs[lo:hi] to the individual functions and function ranges
// responsible for the bad verdict.
// The caller guarantees that substituting funcs[lo:hi] from bad into good is BAD.
func LocateFaults(o Oracle, good, bad *profile.Profile, funcs []string, lo, hi int,
	opts Options) (*Result, error) {
	return newEnv(o, good, bad, funcs, opts).locate(lo, hi)
}

func (env *env) locate(lo, hi int) (*Result, error) {
	res := newResult()
	if hi <= lo {
		return res, nil
	}
	if hi-lo == 1 {
		env.log("found %v (%v) as a problematic function profile", env.funcs[lo], profile.Demangle(env.funcs[lo]))
		res.Individuals = append(res.Individuals, env.funcs[lo])
		return res, nil
	}
	mid := (lo + hi) / 2
	loVerdict, err := env.test(env.funcs[lo:mid])
	if err != nil {
		return nil, err
	}
	hiVerdict, err := env.test(env.funcs[mid:hi])
	if err != nil {
		return nil, err
	}
	for _, half := range []struct {
		verdict oracle.Verdict
		lo, hi  int
	}{
		{loVerdict, lo, mid},
		{hiVerdict, mid, hi},
	} {
		if half.verdict != oracle.Bad {
			continue
		}
		sub, err := env.locate(half.lo, half.hi)
		if err != nil {
			return nil, err
		}
		res.merge(sub)
	}
	switch {
	case loVerdict == oracle.Good && hiVerdict == oracle.Good:
		// Neither half is bad alone, so the problem is caused by several functions
		// together, and they cross mid.
		problem, err := env.searchRange(lo, mid, hi)
		if err != nil {
			return nil, err
		}
		if len(problem) != 0 {
			res.Ranges = append(res.Ranges, problem)
		}
	case loVerdict != oracle.Bad && hiVerdict != oracle.Bad:
		env.log("functions [%v, %v) are inconclusive (%v, %v), giving up on them",
			lo, hi, loVerdict, hiVerdict)
	}
	return res, nil
}

func (env *env) searchRange(lo, mid, hi int) ([]string, error) {
	env.log("searching for interacting functions in [%v, %v)", lo, hi)
	problem, err := minimize.Range(minimize.RangeConfig[string]{
		Pred: func(funcs []string) (bool, error) {
			verdict, err := env.test(funcs)
			return verdict == oracle.Bad, err
		},
		Trials: env.opts.RangeTrials,
		Rand:   env.opts.Rand,
		Logf:   env.opts.Logf,
	}, env.funcs[lo:mid], env.funcs[mid:hi])
	if err != nil {
		return nil, err
	}
	slices.Sort(problem)
	env.log("found range of %v interacting functions: %v", len(problem), profile.Summary(problem))
	return problem, nil
}

// test classifies the good profile with the given functions taken from the bad profile.
func (env *env) test(funcs []string) (oracle.Verdict, error) {
	env.numTests++
	return env.oracle.Classify(profile.Substitute(env.good, env.bad, funcs), true)
}

func (env *env) log(msg string, args ...interface{}) {
	env.opts.Logf(msg, args...)
}

func newResult() *Result {
	return &Result{
		Individuals: []string{},
		Ranges:      [][]string{},
	}
}

func (res *Result) merge(other *Result) {
	res.Individuals = append(res.Individuals, other.Individuals...)
	res.Ranges = append(res.Ranges, other.Ranges...)
}

// GoodCoversBad checks whether the functions present only in the good profile are enough
// to make the bad profile good: it classifies the bad profile extended with them.
func GoodCoversBad(o Oracle, good, bad *profile.Profile) (bool, error) {
	verdict, err := o.Classify(profile.Substitute(bad, good, profile.Only(good, bad)), true)
	return verdict == oracle.Good, err
}

// BadCoversGood checks whether the functions present only in the bad profile are enough
// to make the good profile bad: it classifies the good profile extended with them.
func BadCoversGood(o Oracle, good, bad *profile.Profile) (bool, error) {
	verdict, err := o.Classify(profile.Substitute(good, bad, profile.Only(bad, good)), true)
	return verdict == oracle.Bad, err
}
