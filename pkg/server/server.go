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

// Package server accepts TCP connections and drives each one as an
// independent session against a shared emulation engine. Sessions share
// nothing but the engine's device-state store.
package server

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"vawter.tech/avemu/pkg/engine"
	"vawter.tech/stopper"
)

// EOL terminates every response line.
const EOL = "\r\n"

// Server owns the listener and the per-connection sessions for one
// emulated device instance.
type Server struct {
	engine   *engine.Engine
	listener net.Listener
	log      *Log
}

// New starts an emulator server within the context. The listener and all
// sessions are closed when the context stops.
func New(ctx *stopper.Context, bind string, eng *engine.Engine) (*Server, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "emulator listening",
		slog.String("model", eng.Definition().Key()),
		slog.Any("address", listener.Addr()))
	ctx.Go(func(ctx *stopper.Context) error {
		<-ctx.Stopping()
		_ = listener.Close()
		slog.InfoContext(ctx, "emulator listener closed")
		return nil
	})

	s := &Server{
		engine:   eng,
		listener: listener,
		log:      NewLog(),
	}

	openConns := make(map[net.Conn]struct{})
	var openConnsMu sync.Mutex

	// Unblock session reads when the server gets shut down.
	ctx.Go(func(ctx *stopper.Context) error {
		<-ctx.Stopping()
		now := time.UnixMilli(1)
		openConnsMu.Lock()
		for conn := range openConns {
			_ = conn.SetReadDeadline(now)
		}
		openConnsMu.Unlock()
		return nil
	})

	// This is the main accept loop for the server.
	ctx.Go(func(ctx *stopper.Context) error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return nil
			}

			openConnsMu.Lock()
			openConns[conn] = struct{}{}
			openConnsMu.Unlock()

			if !ctx.Go(func(ctx *stopper.Context) error {
				defer func() {
					openConnsMu.Lock()
					delete(openConns, conn)
					openConnsMu.Unlock()
					_ = conn.Close()
				}()
				if err := s.run(ctx, conn); err != nil && !ctx.IsStopping() {
					slog.ErrorContext(ctx, "session exiting", slog.Any("error", err))
				}
				return nil
			}) {
				slog.DebugContext(ctx, "dropping unaccepted connection")
				_ = conn.Close()
			}
		}
	})
	return s, nil
}

// Addr returns the address to which the server is bound.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Engine returns the shared emulation engine.
func (s *Server) Engine() *engine.Engine { return s.engine }

// Log returns the server's command log.
func (s *Server) Log() *Log { return s.log }

// run services one session. Commands are processed strictly in arrival
// order; a failure here terminates only this session.
func (s *Server) run(ctx *stopper.Context, conn net.Conn) error {
	session := uuid.NewString()[:8]
	logger := slog.With(
		slog.String("session", session),
		slog.Any("peer", conn.RemoteAddr()))

	s.log.Connected()
	logger.InfoContext(ctx, "client connected")
	defer logger.InfoContext(ctx, "client disconnected")

	scanner := bufio.NewScanner(conn)
	out := bufio.NewWriter(conn)
	for scanner.Scan() {
		buf := bytes.TrimSpace(scanner.Bytes())

		// Empty lines are ignored.
		if len(buf) == 0 {
			continue
		}

		line := string(buf)
		logger.DebugContext(ctx, "received", slog.String("command", line))

		resp, ok := s.engine.Handle(line)
		s.log.Record(session, line, resp)
		if !ok {
			continue
		}

		logger.DebugContext(ctx, "sending", slog.String("response", resp))
		if _, err := out.WriteString(resp); err != nil {
			return err
		}
		if _, err := out.WriteString(EOL); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	err := scanner.Err()
	if err == io.EOF {
		return nil
	}
	return err
}
