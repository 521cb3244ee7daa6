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

package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vawter.tech/avemu/pkg/protocol"
)

func i64(v int64) *int64 { return &v }

func testDefinition(t *testing.T) *protocol.Definition {
	t.Helper()
	def, err := protocol.Compile(&protocol.Config{
		Device: protocol.DeviceConfig{Manufacturer: "acme", Model: "amp1"},
		Variables: map[string]protocol.VariableConfig{
			"power":  {Type: "bool", Default: false},
			"volume": {Type: "int", Min: i64(-96), Max: i64(0), Default: -40},
			"input":  {Type: "enum", Values: []string{"CD", "TV"}, Default: "TV"},
		},
		Commands: []protocol.CommandConfig{
			{Name: "ping", Pattern: "!PING", Response: "!PONG"},
		},
	})
	require.NoError(t, err)
	return def
}

func TestDefaults(t *testing.T) {
	r := require.New(t)

	s := New(testDefinition(t))
	r.Equal(map[string]protocol.Value{
		"power":  protocol.BoolValue(false),
		"volume": protocol.IntValue(-40),
		"input":  protocol.EnumValue("TV"),
	}, s.Snapshot())

	v, err := s.Read("volume")
	r.NoError(err)
	r.Equal(protocol.IntValue(-40), v)
}

func TestWrite(t *testing.T) {
	s := New(testDefinition(t))

	tcs := []struct {
		name  string
		value protocol.Value
		err   error
	}{
		{name: "power", value: protocol.BoolValue(true)},
		{name: "volume", value: protocol.IntValue(-25)},
		{name: "volume", value: protocol.IntValue(-96)},
		{name: "volume", value: protocol.IntValue(0)},
		{name: "input", value: protocol.EnumValue("CD")},

		{name: "wattage", value: protocol.IntValue(1), err: ErrUnknownVariable},
		{name: "volume", value: protocol.IntValue(999), err: ErrInvalidValue},
		{name: "volume", value: protocol.IntValue(-97), err: ErrInvalidValue},
		{name: "volume", value: protocol.TextValue("loud"), err: ErrInvalidValue},
		{name: "power", value: protocol.IntValue(1), err: ErrInvalidValue},
		{name: "input", value: protocol.EnumValue("VCR"), err: ErrInvalidValue},
	}

	for idx, tc := range tcs {
		a := assert.New(t)
		err := s.Write(tc.name, tc.value)
		if tc.err == nil {
			if a.NoError(err, idx) {
				v, err := s.Read(tc.name)
				a.NoError(err, idx)
				a.Equal(tc.value, v, idx)
			}
			continue
		}
		if a.Error(err, idx) {
			a.ErrorIs(err, tc.err, idx)
		}
	}
}

// A rejected multi-variable write must leave the store untouched.
func TestApplyIsAtomic(t *testing.T) {
	r := require.New(t)
	s := New(testDefinition(t))

	r.NoError(s.Apply(map[string]protocol.Value{
		"power":  protocol.BoolValue(true),
		"volume": protocol.IntValue(-10),
	}))
	r.Equal(protocol.BoolValue(true), mustRead(t, s, "power"))
	r.Equal(protocol.IntValue(-10), mustRead(t, s, "volume"))

	err := s.Apply(map[string]protocol.Value{
		"power":  protocol.BoolValue(false),
		"volume": protocol.IntValue(999),
	})
	r.ErrorIs(err, ErrInvalidValue)
	r.Equal(protocol.BoolValue(true), mustRead(t, s, "power"))
	r.Equal(protocol.IntValue(-10), mustRead(t, s, "volume"))
}

func TestSnapshotIsolation(t *testing.T) {
	r := require.New(t)
	s := New(testDefinition(t))

	snap := s.Snapshot()
	snap["volume"] = protocol.IntValue(0)
	r.Equal(protocol.IntValue(-40), mustRead(t, s, "volume"))
}

// Hammer the store from many goroutines and check that the final value
// is one that some writer actually wrote.
func TestConcurrentWrites(t *testing.T) {
	const writers = 16
	r := require.New(t)
	s := New(testDefinition(t))

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(level int64) {
			defer wg.Done()
			_ = s.Write("volume", protocol.IntValue(level))
		}(int64(-i))
	}
	wg.Wait()

	v := mustRead(t, s, "volume")
	found := false
	for i := int64(0); i < writers; i++ {
		if v.Equal(protocol.IntValue(-i)) {
			found = true
			break
		}
	}
	r.True(found, "unexpected final value %s", v)
}

func mustRead(t *testing.T, s *Store, name string) protocol.Value {
	t.Helper()
	v, err := s.Read(name)
	require.NoError(t, err)
	return v
}
