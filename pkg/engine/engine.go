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

// Package engine matches incoming command lines against a protocol
// definition, applies state writes, and renders responses. One command
// runs to completion at a time; the engine keeps no memory between
// commands.
package engine

import (
	"log/slog"
	"strings"
	"sync"

	"vawter.tech/avemu/pkg/protocol"
	"vawter.tech/avemu/pkg/state"
)

// Match finds the first command spec whose pattern and parameter types
// fully accept the input line, in definition order. Malformed or
// near-miss input is simply unmatched, never an error.
func Match(def *protocol.Definition, line string) (*protocol.Command, map[string]protocol.Value, bool) {
	for _, cmd := range def.Commands() {
		if params, ok := cmd.Match(line); ok {
			return cmd, params, true
		}
	}
	return nil, nil, false
}

// An Engine serializes command processing for one device instance.
type Engine struct {
	def   *protocol.Definition
	store *state.Store

	// Guards the full match-apply-render sequence so that concurrent
	// sessions observe each command as a single atomic step.
	mu sync.Mutex
}

// New constructs an engine for the given definition and store.
func New(def *protocol.Definition, store *state.Store) *Engine {
	return &Engine{def: def, store: store}
}

// Definition returns the protocol definition the engine serves.
func (e *Engine) Definition() *protocol.Definition { return e.def }

// Store returns the shared device-state store.
func (e *Engine) Store() *state.Store { return e.store }

// Handle processes one framed command line and returns the response to
// send. A false return means the device stays silent, which is itself a
// protocol-accurate behavior.
func (e *Engine) Handle(line string) (string, bool) {
	line = strings.TrimSpace(line)

	e.mu.Lock()
	defer e.mu.Unlock()

	cmd, params, ok := Match(e.def, line)
	if !ok {
		return e.def.Fallback()
	}

	lookup := func(name string) (protocol.Value, bool) {
		if v, err := e.store.Read(name); err == nil {
			return v, true
		}
		v, ok := params[name]
		return v, ok
	}

	if cmd.IsSet() {
		if err := e.store.Apply(cmd.Writes(params)); err != nil {
			slog.Debug("state write rejected",
				slog.String("command", cmd.Name()),
				slog.Any("error", err))
			if t, ok := cmd.ErrorResponse(); ok {
				return t.Render(lookup), true
			}
			return "", false
		}
	}

	if t, ok := cmd.Response(); ok {
		return t.Render(lookup), true
	}
	return "", false
}
