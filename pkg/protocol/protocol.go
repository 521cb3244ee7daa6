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

// Package protocol provides the immutable, in-memory model of one
// device's command grammar: typed state variables, ordered command
// patterns, and response templates. A [Definition] is compiled and
// validated once at load time and is safe for unsynchronized concurrent
// reads.
package protocol

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// A Definition describes one device's complete command grammar. It is
// read-only after [Compile] returns.
type Definition struct {
	manufacturer string
	model        string
	port         uint16
	fallback     string
	commands     []*Command
	vars         map[string]*Variable
	varNames     []string
}

// Key returns the canonical model key, e.g. "mcintosh/mx160".
func (d *Definition) Key() string {
	return strings.ToLower(d.manufacturer + "/" + d.model)
}

// Manufacturer returns the device manufacturer name.
func (d *Definition) Manufacturer() string { return d.manufacturer }

// Model returns the device model name.
func (d *Definition) Model() string { return d.model }

// Port returns the device's own default control port, if declared.
func (d *Definition) Port() (uint16, bool) { return d.port, d.port != 0 }

// Fallback returns the response for unrecognized input, if the device
// defines one. Devices without a fallback answer garbage with silence.
func (d *Definition) Fallback() (string, bool) { return d.fallback, d.fallback != "" }

// Commands returns the command specs in declaration order, which is also
// match-priority order.
func (d *Definition) Commands() []*Command { return d.commands }

// Variables returns the state-variable specs, sorted by name.
func (d *Definition) Variables() []*Variable {
	ret := make([]*Variable, len(d.varNames))
	for i, name := range d.varNames {
		ret[i] = d.vars[name]
	}
	return ret
}

// Variable looks up a state-variable spec by name.
func (d *Definition) Variable(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// A Variable declares one named, typed piece of emulated device state.
type Variable struct {
	name   string
	typ    Kind
	min    *int64
	max    *int64
	values []string
	def    Value
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Type returns the declared value type.
func (v *Variable) Type() Kind { return v.typ }

// Default returns the value assigned when a device instance is created.
func (v *Variable) Default() Value { return v.def }

// Accepts reports whether the value satisfies the variable's declared
// type and bounds.
func (v *Variable) Accepts(val Value) bool {
	if val.Kind() != v.typ {
		return false
	}
	switch v.typ {
	case KindInt:
		n := val.Int()
		if v.min != nil && n < *v.min {
			return false
		}
		if v.max != nil && n > *v.max {
			return false
		}
	case KindEnum:
		if !slices.Contains(v.values, val.Text()) {
			return false
		}
	}
	return true
}

// A Param is a typed parameter slot within a command pattern.
type Param struct {
	name   string
	typ    Kind
	min    *int64
	max    *int64
	values []string
}

// Name returns the parameter name.
func (p *Param) Name() string { return p.name }

// Type returns the declared parameter type.
func (p *Param) Type() Kind { return p.typ }

// A binding assigns a state variable from either a matched parameter or
// a literal value when its command is applied.
type binding struct {
	variable string
	param    string // mutually exclusive with literal
	literal  Value
}

// A Command is one pattern plus its response template and state
// bindings.
type Command struct {
	name        string
	pattern     *pattern
	patternSrc  string
	params      map[string]*Param
	sets        []binding
	response    *Template
	errResponse *Template
}

// Name returns the command name from the definition file.
func (c *Command) Name() string { return c.name }

// Pattern returns the source text of the command pattern.
func (c *Command) Pattern() string { return c.patternSrc }

// IsSet reports whether the command mutates device state.
func (c *Command) IsSet() bool { return len(c.sets) > 0 }

// Match aligns an input line against the command pattern, extracting
// typed parameters on success.
func (c *Command) Match(line string) (map[string]Value, bool) {
	return c.pattern.match(line)
}

// Response returns the command's response template, if any. Commands
// without a template acknowledge with silence.
func (c *Command) Response() (*Template, bool) {
	return c.response, c.response != nil
}

// ErrorResponse returns the template rendered when a state write is
// rejected, if the command declares one.
func (c *Command) ErrorResponse() (*Template, bool) {
	return c.errResponse, c.errResponse != nil
}

// Writes resolves the command's state bindings against the matched
// parameters, in deterministic (name-sorted) order.
func (c *Command) Writes(params map[string]Value) map[string]Value {
	if len(c.sets) == 0 {
		return nil
	}
	out := make(map[string]Value, len(c.sets))
	for _, b := range c.sets {
		if b.param != "" {
			out[b.variable] = params[b.param]
		} else {
			out[b.variable] = b.literal
		}
	}
	return out
}

// Compile validates a decoded definition file and produces the immutable
// runtime model. All grammar errors surface here, never on the
// match/render path.
func Compile(cfg *Config) (*Definition, error) {
	if cfg.Device.Manufacturer == "" || cfg.Device.Model == "" {
		return nil, fmt.Errorf("definition must declare device manufacturer and model")
	}
	if len(cfg.Commands) == 0 {
		return nil, fmt.Errorf("%s/%s: definition declares no commands",
			cfg.Device.Manufacturer, cfg.Device.Model)
	}

	d := &Definition{
		manufacturer: cfg.Device.Manufacturer,
		model:        cfg.Device.Model,
		port:         cfg.Connection.Port,
		fallback:     cfg.Fallback,
		vars:         make(map[string]*Variable, len(cfg.Variables)),
	}

	for name, vc := range cfg.Variables {
		v, err := compileVariable(name, vc)
		if err != nil {
			return nil, fmt.Errorf("%s: variable %q: %w", d.Key(), name, err)
		}
		d.vars[name] = v
		d.varNames = append(d.varNames, name)
	}
	slices.Sort(d.varNames)

	names := make(map[string]bool, len(cfg.Commands))
	for i := range cfg.Commands {
		c, err := d.compileCommand(&cfg.Commands[i])
		if err != nil {
			return nil, fmt.Errorf("%s: command %q: %w", d.Key(), cfg.Commands[i].Name, err)
		}
		if names[c.name] {
			return nil, fmt.Errorf("%s: duplicate command name %q", d.Key(), c.name)
		}
		names[c.name] = true
		d.commands = append(d.commands, c)
	}

	return d, nil
}

func compileVariable(name string, vc VariableConfig) (*Variable, error) {
	typ, err := ParseKind(vc.Type)
	if err != nil {
		return nil, err
	}
	v := &Variable{
		name:   name,
		typ:    typ,
		min:    vc.Min,
		max:    vc.Max,
		values: vc.Values,
	}
	if typ == KindEnum && len(vc.Values) == 0 {
		return nil, fmt.Errorf("enum variable declares no values")
	}
	if typ != KindEnum && len(vc.Values) > 0 {
		return nil, fmt.Errorf("values list on non-enum variable")
	}
	if typ != KindInt && (vc.Min != nil || vc.Max != nil) {
		return nil, fmt.Errorf("bounds on non-int variable")
	}

	v.def, err = coerce(typ, vc.Default)
	if err != nil {
		return nil, fmt.Errorf("bad default: %w", err)
	}
	if !v.Accepts(v.def) {
		return nil, fmt.Errorf("default %s violates declared bounds", v.def)
	}
	return v, nil
}

// coerce converts a YAML default into a typed value.
func coerce(typ Kind, raw any) (Value, error) {
	switch typ {
	case KindInt:
		switch n := raw.(type) {
		case int:
			return IntValue(int64(n)), nil
		case int64:
			return IntValue(n), nil
		}
	case KindBool:
		if b, ok := raw.(bool); ok {
			return BoolValue(b), nil
		}
	case KindEnum:
		if s, ok := raw.(string); ok {
			return EnumValue(s), nil
		}
	case KindText:
		if s, ok := raw.(string); ok {
			return TextValue(s), nil
		}
		if raw == nil {
			return TextValue(""), nil
		}
	}
	return Value{}, fmt.Errorf("%v is not a %s", raw, typ)
}

func (d *Definition) compileCommand(cc *CommandConfig) (*Command, error) {
	if cc.Name == "" {
		return nil, fmt.Errorf("command must be named")
	}

	c := &Command{
		name:       cc.Name,
		patternSrc: cc.Pattern,
		params:     make(map[string]*Param, len(cc.Params)),
	}

	for name, pc := range cc.Params {
		typ, err := ParseKind(pc.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		if typ == KindEnum && len(pc.Values) == 0 {
			return nil, fmt.Errorf("enum parameter %q declares no values", name)
		}
		c.params[name] = &Param{
			name:   name,
			typ:    typ,
			min:    pc.Min,
			max:    pc.Max,
			values: pc.Values,
		}
	}

	var err error
	c.pattern, err = compilePattern(cc.Pattern, c.params)
	if err != nil {
		return nil, err
	}

	// State bindings: "{param}" forwards a matched parameter, anything
	// else is a literal coerced to the variable's type.
	setVars := make([]string, 0, len(cc.Sets))
	for v := range cc.Sets {
		setVars = append(setVars, v)
	}
	slices.Sort(setVars)
	for _, varName := range setVars {
		src := cc.Sets[varName]
		v, ok := d.vars[varName]
		if !ok {
			return nil, fmt.Errorf("sets undeclared variable %q", varName)
		}

		b := binding{variable: varName}
		if strings.HasPrefix(src, "{") && strings.HasSuffix(src, "}") {
			pName := src[1 : len(src)-1]
			p, ok := c.params[pName]
			if !ok {
				return nil, fmt.Errorf("binding for %q references undeclared parameter %q", varName, pName)
			}
			if p.typ != v.typ {
				return nil, fmt.Errorf("binding for %q: parameter %q is %s, variable is %s",
					varName, pName, p.typ, v.typ)
			}
			b.param = pName
		} else {
			b.literal, err = parseLiteral(v.typ, src)
			if err != nil {
				return nil, fmt.Errorf("binding for %q: %w", varName, err)
			}
			if !v.Accepts(b.literal) {
				return nil, fmt.Errorf("binding for %q: literal %q violates declared bounds", varName, src)
			}
		}
		c.sets = append(c.sets, b)
	}

	kindOf := func(name string) (Kind, bool) {
		if v, ok := d.vars[name]; ok {
			return v.typ, true
		}
		if p, ok := c.params[name]; ok {
			return p.typ, true
		}
		return 0, false
	}
	if cc.Response != "" {
		c.response, err = compileTemplate(cc.Response, kindOf)
		if err != nil {
			return nil, err
		}
	}
	if cc.Error != "" {
		c.errResponse, err = compileTemplate(cc.Error, kindOf)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// parseLiteral interprets a literal binding source in the target
// variable's type.
func parseLiteral(typ Kind, src string) (Value, error) {
	switch typ {
	case KindInt:
		n, err := strconv.ParseInt(src, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("literal %q is not an int", src)
		}
		return IntValue(n), nil
	case KindBool:
		b, ok := ParseBool(src)
		if !ok {
			return Value{}, fmt.Errorf("literal %q is not a bool", src)
		}
		return BoolValue(b), nil
	case KindEnum:
		return EnumValue(src), nil
	default:
		return TextValue(src), nil
	}
}
