// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"fmt"
	"os"
	"path/filepath"
)

func Failf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%v: "+msg+"\n", append([]interface{}{filepath.Base(os.Args[0])}, args...)...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}
