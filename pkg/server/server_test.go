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

package server_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vawter.tech/avemu/internal/emutest"
	"vawter.tech/avemu/pkg/client"
	"vawter.tech/avemu/pkg/engine"
	"vawter.tech/avemu/pkg/library"
	"vawter.tech/avemu/pkg/protocol"
	"vawter.tech/avemu/pkg/server"
	"vawter.tech/avemu/pkg/state"
	"vawter.tech/stopper"
)

func newServer(t *testing.T, model string) (*stopper.Context, *server.Server) {
	t.Helper()
	ctx := emutest.NewStopperForTest(t)

	def, err := library.Load(model)
	require.NoError(t, err)

	svr, err := server.New(ctx, "127.0.0.1:0", engine.New(def, state.New(def)))
	require.NoError(t, err)
	return ctx, svr
}

// Drive one client session over a real socket: read-after-write on the
// same connection, a rejected write, and fallback for garbage input.
func TestSession(t *testing.T) {
	r := require.New(t)
	ctx, svr := newServer(t, "mcintosh/mx160")

	c := client.New(svr.Addr().String())
	defer c.Close()

	tcs := []struct {
		line string
		resp string
	}{
		{"!POWER?", "!POWER(0)"},
		{"!POWER(1)", "!POWER(1)"},
		{"!POWER?", "!POWER(1)"},
		{"!VOL(-25)", "!VOL(-25)"},
		{"!VOL?", "!VOL(-25)"},
		{"!VOL(999)", "!E(VOL)"},
		{"!VOL?", "!VOL(-25)"},
		{"!FOOBAR", "!E(CMD)"},
	}
	for idx, tc := range tcs {
		resp, responded, err := c.RoundTrip(ctx, tc.line)
		r.NoError(err, idx)
		r.True(responded, idx)
		r.Equal(tc.resp, resp, "%d: %s", idx, tc.line)
	}

	stats, _ := svr.Log().Stats()
	r.Equal(1, stats.Connections)
	r.Equal(len(tcs), stats.Commands)
	r.Equal(2, stats.Errors)

	entries := svr.Log().Recent()
	r.Len(entries, len(tcs))
	r.Equal("!VOL(999)", entries[5].Command)
	r.True(entries[5].IsError)
	r.False(entries[4].IsError)
}

// A device without a fallback answers unknown commands with nothing at
// all; the client reports that silence distinctly from an error.
func TestSilentDevice(t *testing.T) {
	r := require.New(t)
	ctx, svr := newServer(t, "lyngdorf/cd2")

	c := client.New(svr.Addr().String())
	defer c.Close()

	resp, responded, err := c.RoundTrip(ctx, "!FOOBAR")
	r.NoError(err)
	r.False(responded)

	// The session survives the unanswered command.
	resp, responded, err = c.RoundTrip(ctx, "!TRACK(7)")
	r.NoError(err)
	r.True(responded)
	r.Equal("!TRACK(07)", resp)

	// Silence still counts as a processed command.
	stats, _ := svr.Log().Stats()
	r.Equal(2, stats.Commands)
	r.Equal(0, stats.Errors)
}

// Empty input lines are ignored rather than answered.
func TestBlankLines(t *testing.T) {
	r := require.New(t)
	ctx, svr := newServer(t, "mcintosh/mx160")

	c := client.New(svr.Addr().String())
	defer c.Close()

	_, responded, err := c.RoundTrip(ctx, "")
	r.NoError(err)
	r.False(responded)

	resp, responded, err := c.RoundTrip(ctx, "   !POWER?   ")
	r.NoError(err)
	r.True(responded)
	r.Equal("!POWER(0)", resp)
}

// Many sessions write concurrently; each sees its own write reflected
// and the final state is one of the written values.
func TestConcurrentSessions(t *testing.T) {
	const sessions = 10
	r := require.New(t)
	ctx, svr := newServer(t, "mcintosh/mx160")

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			a := assert.New(t)

			c := client.New(svr.Addr().String())
			defer c.Close()

			line := fmt.Sprintf("!VOL(%d)", level)
			resp, responded, err := c.RoundTrip(ctx, line)
			if a.NoError(err) && a.True(responded) {
				a.Equal(line, resp)
			}
		}(-i)
	}
	wg.Wait()

	v, err := svr.Engine().Store().Read("volume")
	r.NoError(err)
	found := false
	for i := 0; i < sessions; i++ {
		if v.Equal(protocol.IntValue(int64(-i))) {
			found = true
			break
		}
	}
	r.True(found, "unexpected final volume %s", v)

	stats, _ := svr.Log().Stats()
	r.Equal(sessions, stats.Connections)
	r.Equal(sessions, stats.Commands)
}
