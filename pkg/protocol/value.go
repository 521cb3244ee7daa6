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
	"log/slog"
	"strconv"
	"strings"
)

// A Kind enumerates the value types that may appear in a device protocol.
type Kind int

const (
	// KindInt is a whole number, possibly with declared bounds.
	KindInt Kind = iota
	// KindBool is a true/false flag with several accepted wire spellings.
	KindBool
	// KindEnum is one token out of a declared set.
	KindEnum
	// KindText is arbitrary free text.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind interprets a type name from a protocol definition file.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	case "enum":
		return KindEnum, nil
	case "text":
		return KindText, nil
	default:
		return 0, fmt.Errorf("unknown value type %q", name)
	}
}

// A Value is a typed protocol datum: a state-variable value or an
// extracted command parameter.
type Value struct {
	kind Kind
	num  int64
	flag bool
	text string
}

// IntValue returns a whole-number Value.
func IntValue(v int64) Value { return Value{kind: KindInt, num: v} }

// BoolValue returns a boolean Value.
func BoolValue(v bool) Value { return Value{kind: KindBool, flag: v} }

// EnumValue returns an enumeration token Value.
func EnumValue(token string) Value { return Value{kind: KindEnum, text: token} }

// TextValue returns a free-text Value.
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// ParseBool interprets the accepted wire spellings of a boolean token.
func ParseBool(token string) (value bool, ok bool) {
	switch strings.ToLower(token) {
	case "1", "on", "true":
		return true, true
	case "0", "off", "false":
		return false, true
	default:
		return false, false
	}
}

// Kind returns the type of the value.
func (v Value) Kind() Kind { return v.kind }

// Int returns the numeric payload of a [KindInt] value.
func (v Value) Int() int64 { return v.num }

// Bool returns the payload of a [KindBool] value.
func (v Value) Bool() bool { return v.flag }

// Text returns the token payload of a [KindEnum] or [KindText] value.
func (v Value) Text() string { return v.text }

// Equal compares two values for type and payload equality.
func (v Value) Equal(o Value) bool { return v == o }

// LogValue implements [slog.LogValuer].
func (v Value) LogValue() slog.Value {
	switch v.kind {
	case KindInt:
		return slog.Int64Value(v.num)
	case KindBool:
		return slog.BoolValue(v.flag)
	default:
		return slog.StringValue(v.text)
	}
}

// String renders the value in its default wire form. Booleans render as
// 1 or 0, matching the majority of A/V control protocols.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		if v.flag {
			return "1"
		}
		return "0"
	default:
		return v.text
	}
}

// format renders the value using an explicit fmt verb. Compile ensures
// that verbs are only attached to int-typed template fields.
func (v Value) format(verb string) string {
	return fmt.Sprintf(verb, v.num)
}
