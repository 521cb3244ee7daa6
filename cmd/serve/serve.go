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

package serve

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"vawter.tech/avemu/pkg/client"
	"vawter.tech/avemu/pkg/engine"
	"vawter.tech/avemu/pkg/library"
	"vawter.tech/avemu/pkg/server"
	"vawter.tech/avemu/pkg/state"
	"vawter.tech/stopper"
)

// DefaultPort is used when neither the flags nor the device's own
// definition declare a control port.
const DefaultPort = 4999

// Command is the entrypoint for running the emulator.
func Command() *cobra.Command {
	var model, host string
	var port uint16
	var demo bool
	cmd := &cobra.Command{
		Args:  cobra.NoArgs,
		Use:   "serve",
		Short: "emulate a device model on a TCP socket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if model == "" {
				return errors.New("no device model specified")
			}
			ctx := stopper.From(cmd.Context())

			def, err := library.Load(model)
			if err != nil {
				if errors.Is(err, library.ErrNotFound) {
					return fmt.Errorf("%w; use \"avemu models\" to list supported models", err)
				}
				return err
			}

			if port == 0 {
				if devicePort, ok := def.Port(); ok {
					port = devicePort
					slog.InfoContext(ctx, "using device default port", slog.Int("port", int(port)))
				} else {
					port = DefaultPort
				}
			}

			eng := engine.New(def, state.New(def))
			svr, err := server.New(ctx, net.JoinHostPort(host, strconv.Itoa(int(port))), eng)
			if err != nil {
				return err
			}

			if demo {
				runDemo(ctx, svr.Addr().String())
			}
			return ctx.Wait()
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "device model, e.g. mcintosh/mx160 or mcintosh_mx160")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "listener host")
	cmd.Flags().Uint16VarP(&port, "port", "p", 0, "listener port; defaults to the device's declared port")
	cmd.Flags().BoolVar(&demo, "demo", false, "auto-generate demo traffic")
	return cmd
}

// runDemo drives a canned command sequence through a real client
// connection, for recordings and smoke testing.
func runDemo(ctx *stopper.Context, addr string) {
	lines := []string{
		"!POWER(1)", "!VOL(-25)", "!VOL?", "!FOOBAR",
		"!VOL(999)", "!MUTE(1)", "!POWER?", "!POWER(0)",
	}
	ctx.Go(func(ctx *stopper.Context) error {
		c := client.New(addr)
		defer c.Close()

		for _, line := range lines {
			select {
			case <-time.After(800 * time.Millisecond):
			case <-ctx.Stopping():
				return nil
			}
			resp, responded, err := c.RoundTrip(ctx, line)
			if err != nil {
				slog.DebugContext(ctx, "demo command failed", slog.Any("error", err))
				continue
			}
			if !responded {
				resp = "(silence)"
			}
			slog.InfoContext(ctx, "demo",
				slog.String("command", line),
				slog.String("response", resp))
		}
		return nil
	})
}
