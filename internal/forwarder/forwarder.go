/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package forwarder implements the client side of the tunnel: it dials
// the server's control channel, registers, and services each inbound
// request envelope against a local HTTP service.
package forwarder

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/nabbar/tunneld/internal/logger"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/wsconn"
)

// LocalRequestTimeout bounds a single call to the local service.
const LocalRequestTimeout = 30 * time.Second

// PingInterval mirrors session.PingInterval on the client side.
const PingInterval = 20 * time.Second

// MissedPongLimit mirrors session.MissedPongLimit on the client side.
const MissedPongLimit = 3

// Config configures one forwarder run. ServerURL and LocalBaseURL are
// required; the rest fall back to their package-level defaults.
type Config struct {
	ServerURL      string
	LocalBaseURL   string
	RequestTimeout time.Duration
	Log            logger.FuncLog
	// OnRegistered is called once per successful registration with the
	// public port the server assigned, letting the caller print the
	// public URL (spec.md §4.6.2).
	OnRegistered func(publicPort int)
}

// Run dials the server, registers, and services requests until ctx is
// canceled. On any connection failure it reconnects with an exponential
// backoff (0.5s doubling, capped at 30s) jittered by ±25%, and a fresh
// client_id, per spec.md §4.6.6.
func Run(ctx context.Context, cfg Config) error {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := runOnce(ctx, cfg); err != nil {
			if cfg.Log != nil {
				cfg.Log().Warning("tunnel connection lost: ", err)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := time.Duration(float64(b.Duration()) * (0.75 + 0.5*rand.Float64()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func runOnce(ctx context.Context, cfg Config) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return err
	}

	conn := wsconn.New(ws)
	defer conn.Close()

	clientId := uuid.NewString()

	if err := conn.Send(&protocol.Envelope{Type: protocol.TypeRegister, ClientId: clientId}); err != nil {
		return err
	}

	reg, err := conn.Recv()
	if err != nil {
		return err
	}

	if reg.Type == protocol.TypeError {
		return errString(reg.Message)
	}

	if cfg.OnRegistered != nil {
		cfg.OnRegistered(reg.PublicPort)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = LocalRequestTimeout
	}

	client := &http.Client{Timeout: timeout}
	missed := &atomic.Int32{}
	stop := make(chan struct{})
	defer close(stop)

	go pingLoop(conn, missed, stop)

	for {
		e, err := conn.Recv()
		if err != nil {
			return err
		}

		switch e.Type {
		case protocol.TypeRequest:
			go serveLocal(conn, client, cfg.LocalBaseURL, e)
		case protocol.TypePing:
			_ = conn.Send(&protocol.Envelope{Type: protocol.TypePong})
		case protocol.TypePong:
			missed.Store(0)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func pingLoop(conn wsconn.Conn, missed *atomic.Int32, stop <-chan struct{}) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if missed.Add(1) > MissedPongLimit {
				_ = conn.Close()
				return
			}

			if err := conn.Send(&protocol.Envelope{Type: protocol.TypePing}); err != nil {
				return
			}
		}
	}
}

func serveLocal(conn wsconn.Conn, client *http.Client, baseURL string, e *protocol.Envelope) {
	resp := buildResponse(client, baseURL, e)
	_ = conn.Send(resp)
}

func buildResponse(client *http.Client, baseURL string, e *protocol.Envelope) *protocol.Envelope {
	body, err := protocol.DecodeBody(e.BodyB64)
	if err != nil {
		return localErrorResponse(e.RequestId, "malformed request body")
	}

	req, err := http.NewRequest(e.Method, baseURL+e.Path, bytes.NewReader(body))
	if err != nil {
		return localErrorResponse(e.RequestId, "malformed request")
	}

	req.Header = protocol.ToHTTPHeader(e.Headers)

	httpResp, err := client.Do(req)
	if err != nil {
		return localErrorResponse(e.RequestId, localFailureKind(err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, protocol.MaxRequestBodyBytes+1))
	if err != nil {
		return localErrorResponse(e.RequestId, "read error")
	}

	return &protocol.Envelope{
		Type:      protocol.TypeResponse,
		RequestId: e.RequestId,
		Status:    httpResp.StatusCode,
		Headers:   protocol.StripHopByHop(httpResp.Header),
		BodyB64:   protocol.EncodeBody(respBody),
	}
}

func localErrorResponse(requestId, kind string) *protocol.Envelope {
	return &protocol.Envelope{
		Type:      protocol.TypeResponse,
		RequestId: requestId,
		Status:    http.StatusBadGateway,
		BodyB64:   protocol.EncodeBody([]byte("Local server error: " + kind)),
	}
}

func localFailureKind(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case isTimeout(err):
		return "timeout"
	case isConnRefused(err):
		return "connection refused"
	default:
		return err.Error()
	}
}

type timeouter interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}

func isConnRefused(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp")
}

type errString string

func (e errString) Error() string { return string(e) }
