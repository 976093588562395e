// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package profile

import (
	"github.com/ianlancetaylor/demangle"
)

// Demangle returns the demangled form of a C++ function name, or the name itself if it's not mangled.
func Demangle(name string) string {
	if d, err := demangle.ToString(name, demangle.NoParams); err == nil {
		return d
	}
	return name
}
