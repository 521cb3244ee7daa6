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

// Package state holds the current variable values for one emulated
// device instance. The store is the only mutable entity shared across
// sessions; every access is linearized through its lock.
package state

import (
	"errors"
	"fmt"
	"sync"

	"vawter.tech/avemu/pkg/protocol"
)

// ErrUnknownVariable indicates a read or write of a variable that the
// device's protocol definition does not declare.
var ErrUnknownVariable = errors.New("unknown state variable")

// ErrInvalidValue indicates a write that violates the variable's
// declared type or bounds. The store rejects such writes outright
// rather than clamping; this is a normal outcome, modeling devices that
// ignore out-of-range commands.
var ErrInvalidValue = errors.New("invalid value for state variable")

// A Store maps state-variable names to their current typed values. Every
// variable declared by the definition has a value at all times.
type Store struct {
	def *protocol.Definition

	mu struct {
		sync.RWMutex
		values map[string]protocol.Value
	}
}

// New creates a store seeded with the definition's declared defaults.
func New(def *protocol.Definition) *Store {
	s := &Store{def: def}
	vars := def.Variables()
	s.mu.values = make(map[string]protocol.Value, len(vars))
	for _, v := range vars {
		s.mu.values[v.Name()] = v.Default()
	}
	return s
}

// Read returns the current value of a declared variable.
func (s *Store) Read(name string) (protocol.Value, error) {
	s.mu.RLock()
	v, ok := s.mu.values[name]
	s.mu.RUnlock()
	if !ok {
		return protocol.Value{}, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return v, nil
}

// Write validates and stores a single value. A rejected write leaves the
// store unchanged.
func (s *Store) Write(name string, value protocol.Value) error {
	if err := s.check(name, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.mu.values[name] = value
	s.mu.Unlock()
	return nil
}

// Apply validates every write, then applies all of them under one lock.
// A multi-variable command binding is therefore never partially applied.
func (s *Store) Apply(writes map[string]protocol.Value) error {
	for name, value := range writes {
		if err := s.check(name, value); err != nil {
			return err
		}
	}
	s.mu.Lock()
	for name, value := range writes {
		s.mu.values[name] = value
	}
	s.mu.Unlock()
	return nil
}

// Snapshot copies the current values for external inspection. The read
// lock is held only for the duration of the copy.
func (s *Store) Snapshot() map[string]protocol.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make(map[string]protocol.Value, len(s.mu.values))
	for k, v := range s.mu.values {
		ret[k] = v
	}
	return ret
}

func (s *Store) check(name string, value protocol.Value) error {
	v, ok := s.def.Variable(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if !v.Accepts(value) {
		return fmt.Errorf("%w: %s=%s", ErrInvalidValue, name, value)
	}
	return nil
}
