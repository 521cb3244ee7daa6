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

// Package client provides line transport to an emulated device. Some
// commands are answered with silence, so the client distinguishes
// "no response" from transport failure.
package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"time"
)

const dialTimeout = 30 * time.Second

// responseWait bounds how long a round trip waits before concluding the
// device chose to stay silent.
const responseWait = 2 * time.Second

// Conn represents a connection to a single emulated device.
type Conn struct {
	hostname string
	idleTime time.Duration
	wait     time.Duration
	logger   *slog.Logger

	mu struct {
		sync.Mutex
		conn        net.Conn
		keepAlive   chan<- struct{}
		respScanner *bufio.Scanner
	}
}

// New constructs a connection to an emulated device.
func New(hostname string) *Conn {
	ret := &Conn{
		hostname: hostname,
		idleTime: dialTimeout,
		wait:     responseWait,
		logger:   slog.With("hostname", hostname),
	}
	runtime.SetFinalizer(ret, (*Conn).Close)
	return ret
}

// Addr returns the target hostname.
func (c *Conn) Addr() string {
	return c.hostname
}

// Close all resources associated with the connection.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// RoundTrip sends one command line and waits for a response line. A
// false responded return means the device stayed silent within the
// response window, which is a valid protocol behavior rather than an
// error.
func (c *Conn) RoundTrip(ctx context.Context, line string) (response string, responded bool, _ error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mu.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return "", false, err
		}
		c.logger.LogAttrs(ctx, slog.LevelDebug, "connected")
	}

	return c.writeLocked(ctx, line)
}

func (c *Conn) closeLocked() {
	if c.mu.conn != nil {
		_ = c.mu.conn.Close()
		c.mu.conn = nil
	}
	if c.mu.keepAlive != nil {
		close(c.mu.keepAlive)
		c.mu.keepAlive = nil
	}
	c.mu.respScanner = nil
}

func (c *Conn) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", c.hostname)
	if err != nil {
		return err
	}

	// This keepalive channel also acts as an epoch.
	keep := make(chan struct{}, 1)

	c.mu.conn = conn
	c.mu.keepAlive = keep
	c.mu.respScanner = bufio.NewScanner(c.mu.conn)
	go func() {
		for {
			select {
			case <-time.After(c.idleTime): // Go 1.23 makes this form preferred.
				c.mu.Lock()
				if c.mu.keepAlive == keep {
					c.closeLocked()
					c.logger.LogAttrs(ctx, slog.LevelDebug, "disconnected")
				}
				c.mu.Unlock()
				return

			case _, ok := <-keep: // Exit if connection is closed.
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (c *Conn) peek() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.conn
}

func (c *Conn) writeLocked(ctx context.Context, line string) (_ string, responded bool, err error) {
	c.mu.keepAlive <- struct{}{}

	defer func() {
		if err != nil {
			c.closeLocked()
		}
	}()

	if err := c.mu.conn.SetWriteDeadline(time.Now().Add(c.wait)); err != nil {
		return "", false, err
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "sending command", slog.String("command", line))

	if _, err := io.WriteString(c.mu.conn, line+"\r\n"); err != nil {
		return "", false, err
	}

	// A device that does not recognize the command may answer with
	// nothing at all; treat a read timeout as that silence.
	if err := c.mu.conn.SetReadDeadline(time.Now().Add(c.wait)); err != nil {
		return "", false, err
	}
	if c.mu.respScanner.Scan() {
		resp := c.mu.respScanner.Text()
		c.logger.LogAttrs(ctx, slog.LevelDebug, "received response", slog.String("response", resp))
		return resp, true, nil
	}

	if err := c.mu.respScanner.Err(); err != nil {
		if netErr := (net.Error)(nil); errors.As(err, &netErr) && netErr.Timeout() {
			c.mu.respScanner = bufio.NewScanner(c.mu.conn)
			return "", false, nil
		}
		return "", false, err
	}
	return "", false, io.EOF
}
