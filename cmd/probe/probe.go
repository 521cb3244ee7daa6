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

// Package probe contains a command that sends command lines to a
// running emulator and prints the responses.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"vawter.tech/avemu/pkg/client"
)

// Command is an entrypoint to exercise an emulated device from the
// command line.
func Command() *cobra.Command {
	p := &prober{}
	cmd := &cobra.Command{
		Use:   "probe [command lines]",
		Short: "send command lines to a running emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.Run(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVar(&p.host, "host", "", "the hostname:port to connect to")
	return cmd
}

type prober struct {
	host string
}

func (p *prober) Run(ctx context.Context, lines []string) error {
	if p.host == "" {
		return errors.New("no host specified")
	}

	c := client.New(p.host)
	defer c.Close()

	if len(lines) > 0 {
		return p.send(ctx, c, lines)
	}

	// No arguments: read command lines from stdin.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := p.send(ctx, c, []string{line}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (p *prober) send(ctx context.Context, c *client.Conn, lines []string) error {
	for _, line := range lines {
		resp, responded, err := c.RoundTrip(ctx, line)
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
		if !responded {
			resp = "(no response)"
		}
		fmt.Printf("%s\t%s\n", line, resp)
	}
	return nil
}
