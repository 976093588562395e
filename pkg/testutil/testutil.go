// Copyright 2022 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

func IterCount() int {
	iters := 100
	if testing.Short() {
		iters /= 10
	}
	return iters
}

// RandSeed returns a seed for randomized tests.
// It can be fixed with AFDO_TEST_SEED to reproduce a failure.
func RandSeed(t testing.TB) int64 {
	seed := time.Now().UnixNano()
	if fixed := os.Getenv("AFDO_TEST_SEED"); fixed != "" {
		seed, _ = strconv.ParseInt(fixed, 0, 64)
	}
	if os.Getenv("CI") != "" {
		seed = 0 // required for deterministic coverage reports
	}
	t.Logf("seed=%v", seed)
	return seed
}

func RandSource(t testing.TB) rand.Source {
	return rand.NewSource(RandSeed(t))
}

type Writer struct {
	testing.TB
}

func (w *Writer) Write(data []byte) (int, error) {
	w.TB.Logf("%s", data)
	return len(data), nil
}
