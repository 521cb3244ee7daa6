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

// Config is the on-disk shape of a protocol definition. It is decoded
// from YAML and handed to [Compile], which validates it once so that the
// match/render hot path never re-parses the grammar.
type Config struct {
	Device     DeviceConfig              `yaml:"device"`
	Connection ConnectionConfig          `yaml:"connection"`
	Fallback   string                    `yaml:"fallback"`
	Variables  map[string]VariableConfig `yaml:"variables"`
	Commands   []CommandConfig           `yaml:"commands"`
}

// DeviceConfig identifies the emulated device.
type DeviceConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
}

// ConnectionConfig carries the device's own connection defaults.
type ConnectionConfig struct {
	Port uint16 `yaml:"port"`
}

// VariableConfig declares one named piece of device state.
type VariableConfig struct {
	Type    string   `yaml:"type"`
	Min     *int64   `yaml:"min"`
	Max     *int64   `yaml:"max"`
	Values  []string `yaml:"values"`
	Default any      `yaml:"default"`
}

// CommandConfig declares one command pattern with its response template
// and state bindings. Order within the commands list defines match
// priority.
type CommandConfig struct {
	Name     string                 `yaml:"name"`
	Pattern  string                 `yaml:"pattern"`
	Params   map[string]ParamConfig `yaml:"params"`
	Sets     map[string]string      `yaml:"sets"`
	Response string                 `yaml:"response"`
	Error    string                 `yaml:"error"`
}

// ParamConfig declares a typed parameter slot within a command pattern.
type ParamConfig struct {
	Type   string   `yaml:"type"`
	Min    *int64   `yaml:"min"`
	Max    *int64   `yaml:"max"`
	Values []string `yaml:"values"`
}
