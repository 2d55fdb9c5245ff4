// Copyright 2026 The TaggableFS Authors
// SPDX-License-Identifier: Apache-2.0

package cliserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-r/TaggableFS/internal/dispatch"
)

// handshakeTimeout bounds how long the server waits for a client to
// finish writing its request frame after connecting. spec.md §5 only
// requires the client side to bound its initial TEST ping; bounding
// the read here as well keeps a stalled client from pinning a
// goroutine and a file descriptor forever.
const handshakeTimeout = 30 * time.Second

// writeTimeout bounds how long the server waits to deliver a reply.
const writeTimeout = 10 * time.Second

// submitTimeout bounds a single request's round trip through the
// dispatcher, independently of the listener's shutdown context. A
// QH_EXIT request stops the dispatcher as part of producing its own
// reply (see Dispatcher.Stop), so the submit here deliberately does
// not share the accept loop's context: if it did, the resulting
// shutdown could cancel the very request that triggered it before the
// ack reaches this connection.
const submitTimeout = 10 * time.Second

// Server serves the QH_* CLI protocol on a Unix domain socket. Each
// connection carries exactly one request: the client writes one
// dispatch.Frame, the server submits it to the Dispatcher and writes
// back the resulting reply frames, then closes the connection.
type Server struct {
	socketPath string
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	activeConnections sync.WaitGroup
}

// New builds a Server that will listen on socketPath once Serve runs.
func New(socketPath string, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return &Server{socketPath: socketPath, dispatcher: dispatcher, logger: logger}
}

// Serve accepts connections until ctx is canceled, then stops
// accepting and waits for in-flight connections to finish. Any stale
// socket file at the configured path is removed before listening, and
// the socket file is removed again on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("cli socket listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection reads exactly one request frame, submits it to the
// dispatcher, and writes back the reply's frames.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	buf := make([]byte, dispatch.FrameSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Debug("reading request frame", "error", err)
		}
		return
	}

	var frame dispatch.Frame
	if err := frame.UnmarshalBinary(buf); err != nil {
		s.logger.Debug("decoding request frame", "error", err)
		return
	}

	verb, args := splitCommand(frame.Payload)

	submitCtx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	reply, err := s.dispatcher.Submit(submitCtx, verb, args)
	if err != nil {
		s.logger.Debug("dispatcher submit failed", "verb", verb, "error", err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	for _, replyFrame := range reply.Frames {
		out, err := replyFrame.MarshalBinary()
		if err != nil {
			s.logger.Debug("encoding reply frame", "error", err)
			return
		}
		if _, err := conn.Write(out); err != nil {
			s.logger.Debug("writing reply frame", "error", err)
			return
		}
	}
}

// splitCommand separates a request payload of "<VERB> <ARGS>" (or
// just "<VERB>") per spec.md §6's request grammar.
func splitCommand(payload string) (verb, args string) {
	verb, args, found := strings.Cut(payload, " ")
	if !found {
		return payload, ""
	}
	return verb, args
}
