// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package oracle

import (
	"errors"
	"fmt"
)

// Verdict is the classification of a candidate profile.
// Values are the decider exit codes that produce them.
type Verdict int

const (
	Good  Verdict = 0
	Bad   Verdict = 1
	Skip  Verdict = 125
	Fatal Verdict = 127
)

func (v Verdict) String() string {
	switch v {
	case Good:
		return "GOOD"
	case Bad:
		return "BAD"
	case Skip:
		return "SKIP"
	case Fatal:
		return "FATAL"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// FromStatus maps a decider exit status to a verdict.
func FromStatus(status int) (Verdict, bool) {
	switch v := Verdict(status); v {
	case Good, Bad, Skip, Fatal:
		return v, true
	}
	return 0, false
}

// recordable verdicts are the ones that can appear in a session state file.
func (v Verdict) recordable() bool {
	return v == Good || v == Bad || v == Skip
}

var (
	ErrMalformedState   = errors.New("malformed state file")
	ErrUnexpectedStatus = errors.New("unexpected decider exit status")
	ErrFatalVerdict     = errors.New("decider reported a fatal error")
	ErrReplayMismatch   = errors.New("resumed session diverged from the recorded one")
)

// StatusError is returned when the decider exits with a status outside of the verdict table.
type StatusError struct {
	Status int
	Output []byte
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("%v: %v\n%s", ErrUnexpectedStatus, err.Status, err.Output)
}

func (err *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// FatalError is returned when the decider classifies a candidate as FATAL.
// File holds a copy of the offending candidate profile.
type FatalError struct {
	File   string
	Output []byte
}

func (err *FatalError) Error() string {
	return fmt.Sprintf("%v, profile saved to %v\n%s", ErrFatalVerdict, err.File, err.Output)
}

func (err *FatalError) Unwrap() error {
	return ErrFatalVerdict
}
