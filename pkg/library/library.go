// Copyright (c) 2025 Bob Vawter (bob@vawter.org)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// SPDX-License-Identifier: MIT

// Package library ships the built-in protocol definitions and resolves
// model keys to compiled [protocol.Definition] values.
package library

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"vawter.tech/avemu/pkg/protocol"
)

//go:embed defs
var defs embed.FS

// ErrNotFound indicates an unknown device model key.
var ErrNotFound = errors.New("unknown device model")

// Normalize converts either accepted spelling of a model key to the
// canonical slash-separated form, e.g. "McIntosh_MX160" becomes
// "mcintosh/mx160".
func Normalize(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "/"))
}

// compiled definitions are immutable, so they are parsed once and shared
// across callers.
var loadAll = sync.OnceValues(func() (map[string]*protocol.Definition, error) {
	byKey := make(map[string]*protocol.Definition)
	err := fs.WalkDir(defs, "defs", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return err
		}
		buf, err := defs.ReadFile(path)
		if err != nil {
			return err
		}

		cfg := &protocol.Config{}
		dec := yaml.NewDecoder(strings.NewReader(string(buf)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		def, err := protocol.Compile(cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := byKey[def.Key()]; dup {
			return fmt.Errorf("%s: duplicate definition for %s", path, def.Key())
		}
		byKey[def.Key()] = def
		return nil
	})
	return byKey, err
})

// Load resolves a model key, in either spelling, to its compiled
// definition.
func Load(key string) (*protocol.Definition, error) {
	all, err := loadAll()
	if err != nil {
		return nil, err
	}
	if def, ok := all[Normalize(key)]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// List returns the canonical keys of every shipped definition, sorted.
func List() ([]string, error) {
	all, err := loadAll()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
