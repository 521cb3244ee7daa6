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

package server

import (
	"regexp"
	"sync"
	"time"

	"vawter.tech/notify"
)

// logDepth bounds the in-memory command log.
const logDepth = 100

// errorPatterns classify responses that indicate a protocol-level
// failure. These cover the error vocabularies of the shipped device
// definitions.
var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ERROR`),
	regexp.MustCompile(`^!E\(`),
	regexp.MustCompile(`ERR`),
	regexp.MustCompile(`INVALID`),
	regexp.MustCompile(`UNKNOWN`),
	regexp.MustCompile(`^NAK`),
}

// IsError reports whether a response line indicates an error.
func IsError(response string) bool {
	if response == "" {
		return false
	}
	for _, p := range errorPatterns {
		if p.MatchString(response) {
			return true
		}
	}
	return false
}

// An Entry records one processed command with its outcome.
type Entry struct {
	Time     time.Time
	Session  string
	Command  string
	Response string
	IsError  bool
}

// Stats counts server activity since startup.
type Stats struct {
	Connections int
	Commands    int
	Errors      int
}

// A Log is a bounded record of recent commands plus running counters.
// The counters are published through a [notify.Var] so that monitors and
// tests can wait for changes.
type Log struct {
	stats notify.Var[Stats]

	mu struct {
		sync.Mutex
		entries []Entry
	}
}

// NewLog constructs an empty command log.
func NewLog() *Log {
	l := &Log{}
	l.mu.entries = make([]Entry, 0, logDepth)
	return l
}

// Connected counts a new client connection.
func (l *Log) Connected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, _ := l.stats.Get()
	s.Connections++
	l.stats.Set(s)
}

// Record appends a processed command to the log and updates counters.
func (l *Log) Record(session, command, response string) {
	e := Entry{
		Time:     time.Now(),
		Session:  session,
		Command:  command,
		Response: response,
		IsError:  IsError(response),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.mu.entries) == logDepth {
		copy(l.mu.entries, l.mu.entries[1:])
		l.mu.entries[logDepth-1] = e
	} else {
		l.mu.entries = append(l.mu.entries, e)
	}

	s, _ := l.stats.Get()
	s.Commands++
	if e.IsError {
		s.Errors++
	}
	l.stats.Set(s)
}

// Recent copies the log entries, oldest first.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := make([]Entry, len(l.mu.entries))
	copy(ret, l.mu.entries)
	return ret
}

// Stats returns the current counters and a channel that closes on the
// next update.
func (l *Log) Stats() (Stats, <-chan struct{}) {
	return l.stats.Get()
}
