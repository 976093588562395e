// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", String())
	assert.Equal(t, String([]byte("foo:1\n")), String([]byte("foo"), []byte(":1\n")))
	assert.NotEqual(t, String([]byte("foo:1\n")), String([]byte("foo:2\n")))
}

func TestValid(t *testing.T) {
	assert.NoError(t, Valid(String([]byte("a"))))
	assert.Error(t, Valid("da39a3ee"))
	assert.Error(t, Valid("not a sig"))
	assert.Error(t, Valid(""))
}
