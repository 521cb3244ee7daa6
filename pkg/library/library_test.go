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

package library

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	a := assert.New(t)
	a.Equal("mcintosh/mx160", Normalize("mcintosh/mx160"))
	a.Equal("mcintosh/mx160", Normalize("mcintosh_mx160"))
	a.Equal("mcintosh/mx160", Normalize("McIntosh_MX160"))
	a.Equal("lyngdorf/cd2", Normalize("Lyngdorf/CD2"))
}

// Every shipped definition file must compile.
func TestList(t *testing.T) {
	r := require.New(t)

	keys, err := List()
	r.NoError(err)
	r.NotEmpty(keys)
	r.True(slices.IsSorted(keys))
	r.Contains(keys, "mcintosh/mx160")
	r.Contains(keys, "lyngdorf/cd2")
	for _, key := range keys {
		r.Contains(key, "/")
		r.Equal(strings.ToLower(key), key)
	}
}

func TestLoad(t *testing.T) {
	r := require.New(t)

	def, err := Load("mcintosh/mx160")
	r.NoError(err)
	r.Equal("mcintosh/mx160", def.Key())

	port, ok := def.Port()
	r.True(ok)
	r.Equal(uint16(84), port)

	fb, ok := def.Fallback()
	r.True(ok)
	r.Equal("!E(CMD)", fb)

	// Underscore spelling resolves to the same compiled definition.
	alt, err := Load("McIntosh_MX160")
	r.NoError(err)
	r.Same(def, alt)
}

// The CD-2 declares neither a control port nor a fallback; unknown
// commands are answered with silence.
func TestLoadSilentDevice(t *testing.T) {
	r := require.New(t)

	def, err := Load("lyngdorf/cd2")
	r.NoError(err)

	_, ok := def.Port()
	r.False(ok)
	_, ok = def.Fallback()
	r.False(ok)
}

func TestLoadUnknown(t *testing.T) {
	r := require.New(t)

	_, err := Load("acme/vaporware")
	r.ErrorIs(err, ErrNotFound)
}
