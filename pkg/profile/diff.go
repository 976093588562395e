// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package profile

import (
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a line diff of the function body between a and b
// ("-" lines come from a, "+" lines from b). The function may be absent from either profile.
func Diff(a, b *Profile, name string) string {
	bodyA, _ := a.Get(name)
	bodyB, _ := b.Get(name)
	differ := dmp.New()
	charsA, charsB, lines := differ.DiffLinesToChars(bodyA, bodyB)
	diffs := differ.DiffCharsToLines(differ.DiffMain(charsA, charsB, false), lines)
	buf := new(strings.Builder)
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case dmp.DiffDelete:
			prefix = "-"
		case dmp.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				buf.WriteByte('\n')
			}
		}
	}
	return buf.String()
}
