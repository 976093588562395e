// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hash computes content signatures of serialized profiles.
// The oracle uses them to check that a replayed verdict belongs to the same candidate.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

type Sig [sha1.Size]byte

func Hash(pieces ...[]byte) Sig {
	h := sha1.New()
	for _, data := range pieces {
		h.Write(data)
	}
	var sig Sig
	copy(sig[:], h.Sum(nil))
	return sig
}

func String(pieces ...[]byte) string {
	sig := Hash(pieces...)
	return sig.String()
}

func (sig Sig) String() string {
	return hex.EncodeToString(sig[:])
}

// Valid reports whether str looks like a signature produced by String.
func Valid(str string) error {
	bin, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("failed to decode sig %q: %w", str, err)
	}
	if len(bin) != len(Sig{}) {
		return fmt.Errorf("failed to decode sig %q: bad len %v", str, len(bin))
	}
	return nil
}
