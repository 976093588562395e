// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package profile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/afdo-bisect/pkg/osutil"
	"github.com/ulikunitz/xz"
)

const compressedExt = ".xz"

// ParseFile reads and parses a profile file. Files with .xz extension are decompressed.
func ParseFile(file string) (*Profile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile %v: %w", file, err)
	}
	if strings.HasSuffix(file, compressedExt) {
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress profile %v: %w", file, err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("failed to decompress profile %v: %w", file, err)
		}
	}
	return Parse(data, file)
}

// WriteFile serializes the profile into file. Files with .xz extension are compressed.
func (p *Profile) WriteFile(file string) error {
	data := p.Serialize()
	if strings.HasSuffix(file, compressedExt) {
		buf := new(bytes.Buffer)
		w, err := xz.NewWriter(buf)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return osutil.WriteFile(file, data)
}
