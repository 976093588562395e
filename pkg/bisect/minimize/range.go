// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package minimize

import (
	"errors"
	"math/rand"
)

type RangeConfig[T any] struct {
	// Pred returns true if the elements passed (and only them) reproduce the failure.
	// It's assumed to be false for the low and the high part alone, and true for their union.
	Pred func([]T) (bool, error)
	// Trials is the number of randomized search attempts, 20 if 0.
	Trials int
	// Rand drives reshuffling between trials. If nil, a fixed seed is used.
	Rand *rand.Rand
	// Logf is used for sharing debugging output.
	Logf func(string, ...interface{})
}

const DefaultTrials = 20

var ErrEmptyHalf = errors.New("range search needs two non-empty halves")

// Range() looks for a short contiguous run of elements crossing the boundary between low and high
// that still gives Pred() == true.
// Each trial extends low with the shortest prefix of high that keeps Pred() true,
// then drops the longest prefix of low that keeps Pred() true.
// Between trials the elements of the best run found so far are reshuffled within their halves,
// since the result depends on the order. A run of 2 elements can't be improved, so the search stops there.
// The returned run keeps the order of the last permutation it was found in.
func Range[T any](config RangeConfig[T], low, high []T) ([]T, error) {
	if len(low) == 0 || len(high) == 0 {
		return nil, ErrEmptyHalf
	}
	if config.Logf == nil {
		config.Logf = func(string, ...interface{}) {}
	}
	if config.Trials <= 0 {
		config.Trials = DefaultTrials
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(0))
	}
	ctx := &rangeCtx[T]{
		RangeConfig: config,
		low:         append([]T{}, low...),
		high:        append([]T{}, high...),
	}
	return ctx.search()
}

type rangeCtx[T any] struct {
	RangeConfig[T]
	low      []T
	high     []T
	predRuns int
}

func (ctx *rangeCtx[T]) search() ([]T, error) {
	var best []T
	for trial := 0; trial < ctx.Trials; trial++ {
		if best != nil {
			shuffle(ctx.Rand, ctx.low)
			shuffle(ctx.Rand, ctx.high)
		}
		start, end, err := ctx.trial()
		if err != nil {
			return nil, err
		}
		elems := append(append([]T{}, ctx.low...), ctx.high...)
		cur := elems[start:end]
		ctx.Logf("trial %v: run [%v, %v) of %v elements (pred runs: %v)",
			trial, start, end, len(elems), ctx.predRuns)
		if best != nil && len(cur) >= len(best) {
			continue
		}
		best = append([]T{}, cur...)
		// Only the elements of the best run are examined from now on.
		ctx.high = append([]T{}, ctx.high[:end-len(ctx.low)]...)
		ctx.low = append([]T{}, ctx.low[start:]...)
		if len(best) == 2 {
			break
		}
	}
	return best, nil
}

// trial() returns borders of the run in low+high.
func (ctx *rangeCtx[T]) trial() (int, int, error) {
	elems := append(append([]T{}, ctx.low...), ctx.high...)
	mid := len(ctx.low)
	// The shortest prefix of high that triggers the failure together with all of low.
	lo, hi := mid+1, len(elems)
	for lo < hi {
		m := (lo + hi) / 2
		res, err := ctx.pred(elems[:m])
		if err != nil {
			return 0, 0, err
		}
		if res {
			hi = m
		} else {
			lo = m + 1
		}
	}
	end := lo
	// The shortest suffix of low that triggers the failure together with high[:end].
	lo, hi = 0, mid-1
	for lo < hi {
		m := (lo + hi + 1) / 2
		res, err := ctx.pred(elems[m:end])
		if err != nil {
			return 0, 0, err
		}
		if res {
			lo = m
		} else {
			hi = m - 1
		}
	}
	return lo, end, nil
}

func (ctx *rangeCtx[T]) pred(elems []T) (bool, error) {
	ctx.predRuns++
	return ctx.Pred(append([]T{}, elems...))
}

func shuffle[T any](r *rand.Rand, elems []T) {
	r.Shuffle(len(elems), func(i, j int) {
		elems[i], elems[j] = elems[j], elems[i]
	})
}
