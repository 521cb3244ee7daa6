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
	"strings"
)

// A Template renders a response line by pure string substitution of
// state variables and matched parameters. Templates are compiled and
// validated once, so rendering cannot fail on well-formed state.
type Template struct {
	src      string
	segments []segment
}

type segment struct {
	literal string
	field   string // empty for literal segments
	verb    string // optional fmt verb, int fields only
}

// fieldKind reports the declared type of a template field, which must be
// either a state variable or one of the command's parameters.
type fieldKind func(name string) (Kind, bool)

// compileTemplate parses "literal{field}..." or "{field:%verb}" text.
func compileTemplate(src string, kindOf fieldKind) (*Template, error) {
	t := &Template{src: src}

	rest := src
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if rest != "" {
				t.segments = append(t.segments, segment{literal: rest})
			}
			break
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}
		rest = rest[open+1:]

		closing := strings.IndexByte(rest, '}')
		if closing < 0 {
			return nil, fmt.Errorf("template %q: unterminated field", src)
		}
		field := rest[:closing]
		rest = rest[closing+1:]

		var verb string
		if idx := strings.IndexByte(field, ':'); idx >= 0 {
			verb = field[idx+1:]
			field = field[:idx]
		}

		kind, ok := kindOf(field)
		if !ok {
			return nil, fmt.Errorf("template %q: unknown field %q", src, field)
		}
		if verb != "" {
			if kind != KindInt {
				return nil, fmt.Errorf("template %q: format verb on non-int field %q", src, field)
			}
			if !strings.HasPrefix(verb, "%") {
				return nil, fmt.Errorf("template %q: malformed format verb %q", src, verb)
			}
		}
		t.segments = append(t.segments, segment{field: field, verb: verb})
	}
	return t, nil
}

// Render substitutes fields via the lookup function. Compile-time
// validation guarantees every field resolves, so unresolvable fields
// indicate store misuse and render empty rather than failing.
func (t *Template) Render(lookup func(name string) (Value, bool)) string {
	var sb strings.Builder
	for _, seg := range t.segments {
		if seg.field == "" {
			sb.WriteString(seg.literal)
			continue
		}
		v, ok := lookup(seg.field)
		if !ok {
			continue
		}
		if seg.verb != "" {
			sb.WriteString(v.format(seg.verb))
		} else {
			sb.WriteString(v.String())
		}
	}
	return sb.String()
}

// String returns the template source text.
func (t *Template) String() string { return t.src }
