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

// Package errtyp defines the typed error taxonomy of the tunnel core
// (spec.md §7): one CodeError per failure kind, each carrying an
// HTTP-status-like numeric code and an optional parent error chain.
package errtyp

import "strconv"

// CodeError is a small numeric identifier for a failure kind, similar in
// spirit to an HTTP status code. Zero is reserved for UnknownError.
type CodeError uint16

const (
	UnknownError CodeError = 0

	// ProtocolError: malformed handshake or envelope outside the wire schema.
	ProtocolError CodeError = 4000 + iota
	// FrameTooLarge: a control-channel frame exceeded MAX_FRAME_BYTES.
	FrameTooLarge
	// NoPortAvailable: the allocator's free set was empty at register time.
	NoPortAvailable
	// BindFailed: the public listener could not bind its allocated port.
	BindFailed
	// UpstreamTimeout: a waiter's deadline elapsed before a Response arrived.
	UpstreamTimeout
	// SessionClosed: the session tore down while a request was pending.
	SessionClosed
	// LocalServerError: the client's call to the local service failed.
	LocalServerError
	// PayloadTooLarge: an inbound public request body exceeded the limit.
	PayloadTooLarge
	// BadPublicRequest: the public HTTP parser rejected the request.
	BadPublicRequest
	// Heartbeat: the control channel missed too many consecutive pongs.
	Heartbeat
	// TooManyClients: the server's --max-clients cap was already reached.
	TooManyClients
)

var names = map[CodeError]string{
	ProtocolError:    "protocol_error",
	FrameTooLarge:    "frame_too_large",
	NoPortAvailable:  "no_port",
	BindFailed:       "bind_failed",
	UpstreamTimeout:  "upstream_timeout",
	SessionClosed:    "session_closed",
	LocalServerError: "local_server_error",
	PayloadTooLarge:  "payload_too_large",
	BadPublicRequest: "bad_public_request",
	Heartbeat:        "heartbeat",
	TooManyClients:   "too_many_clients",
}

var messages = map[CodeError]string{
	ProtocolError:    "protocol error",
	FrameTooLarge:    "frame too large",
	NoPortAvailable:  "no port available",
	BindFailed:       "failed to bind public listener",
	UpstreamTimeout:  "upstream request timed out",
	SessionClosed:    "session closed",
	LocalServerError: "local server error",
	PayloadTooLarge:  "request body too large",
	BadPublicRequest: "malformed public request",
	Heartbeat:        "heartbeat lost",
	TooManyClients:   "maximum number of clients reached",
}

// Uint16 returns the numeric form of the code. The `error` envelope's
// `code` field carries the Wire name, not this number.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// Wire returns the snake_case identifier used on the wire, e.g. "no_port".
func (c CodeError) Wire() string {
	if n, ok := names[c]; ok {
		return n
	}

	return "unknown_error:" + strconv.Itoa(int(c))
}

// Message returns the default human-readable message for the code.
func (c CodeError) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}

	return "unknown error"
}

// Error builds an Error value for the code, optionally chaining parents.
func (c CodeError) Error(parent ...error) *Error {
	return New(c, c.Message(), parent...)
}

// Errorf is like Error but with a formatted message.
func (c CodeError) Errorf(format string, args ...interface{}) *Error {
	return Newf(c, format, args...)
}

// CodeFromWire resolves a wire identifier (e.g. "no_port") back to its code.
// Returns UnknownError if the identifier is not recognized.
func CodeFromWire(wire string) CodeError {
	for c, n := range names {
		if n == wire {
			return c
		}
	}

	return UnknownError
}
