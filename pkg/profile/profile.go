// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package profile parses and serializes textual AFDO profiles.
//
// A profile is a sequence of per-function records. A non-indented line of the form
// "name:rest" starts a new record, subsequent indented lines belong to it:
//
//	_ZN3foo3barEv:3021:12
//	 1: 12
//	 2: 0
//
// The contents of a record after the name are opaque and preserved byte-for-byte.
package profile

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Profile represents a parsed profile.
// It should not be modified directly, only by means of calling methods.
// The only exception is Func.Body which may be modified directly.
type Profile struct {
	Funcs []*Func
	Map   map[string]*Func // duplicates Funcs for convenience
}

type Func struct {
	Name string
	// Body is everything after the name, starting with ':', including the trailing newline
	// and all indented lines that follow.
	Body string
}

func New() *Profile {
	return &Profile{
		Map: make(map[string]*Func),
	}
}

// Parse parses profile text. file is used only for error messages.
func Parse(data []byte, file string) (*Profile, error) {
	p := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	var cur *Func
	for lineNo := 1; len(data) != 0; lineNo++ {
		line := data
		if nl := bytes.IndexByte(data, '\n'); nl != -1 {
			line = data[:nl+1]
		}
		data = data[len(line):]
		if isIndented(line) {
			if cur == nil {
				return nil, fmt.Errorf("%v:%v: indented line outside of a function record", file, lineNo)
			}
			cur.Body += string(line)
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return nil, fmt.Errorf("%v:%v: expected 'name:...', got %q", file, lineNo, line)
		}
		name := string(line[:colon])
		if p.Map[name] != nil {
			return nil, fmt.Errorf("%v:%v: duplicate function %q", file, lineNo, name)
		}
		cur = &Func{
			Name: name,
			Body: string(line[colon:]),
		}
		p.Funcs = append(p.Funcs, cur)
		p.Map[name] = cur
	}
	return p, nil
}

// Empty lines count as continuation of the current record, so they survive a round trip.
func isIndented(line []byte) bool {
	switch line[0] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// Serialize is the exact inverse of Parse.
// A body without the trailing newline (the last record of a file without one)
// is terminated if another record follows it.
func (p *Profile) Serialize() []byte {
	buf := new(bytes.Buffer)
	for i, fn := range p.Funcs {
		buf.WriteString(fn.Name)
		buf.WriteString(fn.Body)
		if i != len(p.Funcs)-1 && !strings.HasSuffix(fn.Body, "\n") {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func (p *Profile) Clone() *Profile {
	p1 := &Profile{
		Funcs: make([]*Func, 0, len(p.Funcs)),
		Map:   make(map[string]*Func, len(p.Map)),
	}
	for _, fn := range p.Funcs {
		fn1 := new(Func)
		*fn1 = *fn
		p1.Funcs = append(p1.Funcs, fn1)
		p1.Map[fn1.Name] = fn1
	}
	return p1
}

func (p *Profile) Len() int {
	return len(p.Funcs)
}

func (p *Profile) Has(name string) bool {
	return p.Map[name] != nil
}

// Get returns function body, or "" and false if it's not present at all.
func (p *Profile) Get(name string) (string, bool) {
	fn := p.Map[name]
	if fn == nil {
		return "", false
	}
	return fn.Body, true
}

// Set changes function body, or appends the function if it's not yet present.
func (p *Profile) Set(name, body string) {
	fn := p.Map[name]
	if fn == nil {
		fn = &Func{
			Name: name,
		}
		p.Map[name] = fn
		p.Funcs = append(p.Funcs, fn)
	}
	fn.Body = body
}

// Names returns function names in file order.
func (p *Profile) Names() []string {
	names := make([]string, 0, len(p.Funcs))
	for _, fn := range p.Funcs {
		names = append(names, fn.Name)
	}
	return names
}

// Equal reports whether both profiles contain the same functions with the same bodies in the same order.
func (p *Profile) Equal(other *Profile) bool {
	if len(p.Funcs) != len(other.Funcs) {
		return false
	}
	for i, fn := range p.Funcs {
		if *fn != *other.Funcs[i] {
			return false
		}
	}
	return true
}

// Common returns the sorted names of functions present in both profiles.
func Common(a, b *Profile) []string {
	var names []string
	for _, fn := range a.Funcs {
		if b.Has(fn.Name) {
			names = append(names, fn.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Only returns names of functions present in a, but not in b, in a's order.
func Only(a, b *Profile) []string {
	var names []string
	for _, fn := range a.Funcs {
		if !b.Has(fn.Name) {
			names = append(names, fn.Name)
		}
	}
	return names
}

// Substitute returns a copy of base where the named functions take their bodies from other.
// All names must be present in other.
func Substitute(base, other *Profile, names []string) *Profile {
	res := base.Clone()
	for _, name := range names {
		body, ok := other.Get(name)
		if !ok {
			panic(fmt.Sprintf("function %q is missing in the source profile", name))
		}
		res.Set(name, body)
	}
	return res
}

func (p *Profile) String() string {
	return fmt.Sprintf("profile{%v funcs}", len(p.Funcs))
}

// Summary returns a short human-readable list of (demangled) names for logging.
func Summary(names []string) string {
	const maxNames = 5
	var pretty []string
	for i, name := range names {
		if i == maxNames {
			break
		}
		pretty = append(pretty, Demangle(name))
	}
	if len(names) <= maxNames {
		return strings.Join(pretty, ", ")
	}
	return fmt.Sprintf("%v, ... (%v total)", strings.Join(pretty, ", "), len(names))
}
