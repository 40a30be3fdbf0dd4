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

// Package protocol defines the control-channel wire schema: one JSON
// envelope per WebSocket text frame, and the frame-size/body encoding
// rules around it.
package protocol

import "strings"

// Envelope type values. One frame carries exactly one of these.
const (
	TypeRegister   = "register"
	TypeRegistered = "registered"
	TypeRequest    = "request"
	TypeResponse   = "response"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// MaxFrameBytes bounds a single control-channel frame. A frame above this
// size is rejected with FrameTooLarge and the session is closed.
const MaxFrameBytes = 16 * 1024 * 1024

// MaxRequestBodyBytes bounds a public request body forwarded to the
// client. A body above this size is rejected with a 413 response before
// any waiter is created.
const MaxRequestBodyBytes = 16 * 1024 * 1024

// ClientId identifies one registered client/session.
type ClientId string

// HeaderPair is a single HTTP header name/value, kept as an ordered pair
// (rather than a map) so repeated header names survive the round trip.
// Pairs built by StripHopByHop come from an http.Header map, so the order
// across different names is not the order the headers arrived in.
type HeaderPair [2]string

// Envelope is the single wire message shape for the control channel.
// Only the fields relevant to Type are populated; the rest are left at
// their zero value and omitted from the JSON encoding.
type Envelope struct {
	Type       string       `json:"type"`
	ClientId   string       `json:"client_id,omitempty"`
	PublicPort int          `json:"public_port,omitempty"`
	RequestId  string       `json:"request_id,omitempty"`
	Method     string       `json:"method,omitempty"`
	Path       string       `json:"path,omitempty"`
	Headers    []HeaderPair `json:"headers,omitempty"`
	BodyB64    string       `json:"body_b64,omitempty"`
	Status     int          `json:"status,omitempty"`
	Code       string       `json:"code,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// HeaderValues returns every value for the given header name, in the
// order they appeared, per RFC 7230's "Field names are case-insensitive"
// rule and its allowance for repeated fields.
func (e *Envelope) HeaderValues(name string) []string {
	var out []string

	for _, h := range e.Headers {
		if strings.EqualFold(h[0], name) {
			out = append(out, h[1])
		}
	}

	return out
}
