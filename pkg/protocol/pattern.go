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

package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// A pattern is a compiled command grammar: literal runs interleaved with
// typed parameter slots, expressed as a single anchored regexp plus the
// slot order for extraction.
type pattern struct {
	re    *regexp.Regexp
	slots []*Param
}

const boolTokens = `(?i:0|1|on|off|true|false)`

// compilePattern translates "literal{param}literal..." into a pattern.
// Every slot must reference a declared parameter; every declared
// parameter must appear exactly once.
func compilePattern(src string, params map[string]*Param) (*pattern, error) {
	if src == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	var sb strings.Builder
	sb.WriteByte('^')

	seen := make(map[string]bool, len(params))
	var slots []*Param

	rest := src
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(regexp.QuoteMeta(rest))
			break
		}
		sb.WriteString(regexp.QuoteMeta(rest[:open]))
		rest = rest[open+1:]

		closing := strings.IndexByte(rest, '}')
		if closing < 0 {
			return nil, fmt.Errorf("pattern %q: unterminated parameter slot", src)
		}
		name := rest[:closing]
		rest = rest[closing+1:]

		p, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("pattern %q: undeclared parameter %q", src, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("pattern %q: parameter %q used more than once", src, name)
		}
		seen[name] = true
		slots = append(slots, p)

		switch p.typ {
		case KindInt:
			sb.WriteString(`([+-]?\d+)`)
		case KindBool:
			sb.WriteString(`(` + boolTokens + `)`)
		case KindEnum:
			quoted := make([]string, len(p.values))
			for i, v := range p.values {
				quoted[i] = regexp.QuoteMeta(v)
			}
			sb.WriteString(`(` + strings.Join(quoted, "|") + `)`)
		case KindText:
			sb.WriteString(`(.+?)`)
		}
	}
	sb.WriteByte('$')

	for name := range params {
		if !seen[name] {
			return nil, fmt.Errorf("pattern %q: declared parameter %q never used", src, name)
		}
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", src, err)
	}
	return &pattern{re: re, slots: slots}, nil
}

// match aligns the input line against the pattern and extracts typed
// parameter values. A structural or type mismatch is reported as a
// simple non-match, never an error.
func (p *pattern) match(line string) (map[string]Value, bool) {
	groups := p.re.FindStringSubmatch(line)
	if groups == nil {
		return nil, false
	}

	var out map[string]Value
	if len(p.slots) > 0 {
		out = make(map[string]Value, len(p.slots))
	}
	for i, slot := range p.slots {
		token := groups[i+1]
		v, ok := slot.accept(token)
		if !ok {
			return nil, false
		}
		if out == nil {
			out = make(map[string]Value, len(p.slots))
		}
		out[slot.name] = v
	}
	return out, true
}

// accept converts a captured token into a typed value, applying any
// per-parameter bounds.
func (p *Param) accept(token string) (Value, bool) {
	switch p.typ {
	case KindInt:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return Value{}, false
		}
		if p.min != nil && n < *p.min {
			return Value{}, false
		}
		if p.max != nil && n > *p.max {
			return Value{}, false
		}
		return IntValue(n), true

	case KindBool:
		b, ok := ParseBool(token)
		if !ok {
			return Value{}, false
		}
		return BoolValue(b), true

	case KindEnum:
		return EnumValue(token), true

	default:
		return TextValue(token), true
	}
}
