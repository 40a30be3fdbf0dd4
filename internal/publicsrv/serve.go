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

// Package publicsrv handles one accepted public TCP connection: parse
// the HTTP/1.1 request, forward it over the owning session's control
// channel as a request envelope, and write back whatever response (or
// synthesized error) comes back. One connection in, one response out,
// no keep-alive, per spec.md §4.5.
package publicsrv

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/logger"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/session"
)

// Handler serves one accepted public connection against its session.
type Handler struct {
	RequestTimeout time.Duration
	Log            logger.FuncLog
}

// New returns a Handler whose Serve method can be wired as a
// session.Manager onAccept callback.
func New(requestTimeout time.Duration, log logger.FuncLog) *Handler {
	return &Handler{RequestTimeout: requestTimeout, Log: log}
}

// Serve parses one HTTP/1.1 request off c, forwards it to s, waits for
// the matching response, and writes it back. It always closes c.
func (h *Handler) Serve(s *session.Session, c net.Conn) {
	defer c.Close()

	br := bufio.NewReader(io.LimitReader(c, protocol.MaxRequestBodyBytes+64*1024))

	req, err := http.ReadRequest(br)
	if err != nil {
		writeStatus(c, 400, "Bad Request")
		return
	}
	defer req.Body.Close()

	body, err := io.ReadAll(io.LimitReader(req.Body, protocol.MaxRequestBodyBytes+1))
	if err != nil {
		writeStatus(c, 400, "Bad Request")
		return
	}

	if len(body) > protocol.MaxRequestBodyBytes {
		writeStatus(c, 413, "Payload Too Large")
		return
	}

	reqId := uuid.NewString()

	env := &protocol.Envelope{
		Type:      protocol.TypeRequest,
		RequestId: reqId,
		Method:    req.Method,
		Path:      req.URL.RequestURI(),
		Headers:   protocol.StripHopByHop(req.Header),
		BodyB64:   protocol.EncodeBody(body),
	}

	outcome := s.Waiters().Insert(reqId, h.RequestTimeout)

	if err := s.Conn().Send(env); err != nil {
		s.Waiters().Complete(reqId, nil)
		writeStatus(c, 502, "Bad Gateway")
		return
	}

	// Watch for the public peer aborting mid-wait so the waiter is
	// removed promptly instead of lingering until the request deadline
	// (spec.md §5).
	aborted := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		if _, err := br.Read(buf); err != nil {
			close(aborted)
		}
	}()

	select {
	case result := <-outcome:
		if result.Err != nil {
			writeErrOutcome(c, result.Err)
			return
		}

		writeResponse(c, result.Response)
	case <-aborted:
		s.Waiters().Fail(reqId, errtyp.SessionClosed.Error())
	}
}

func writeErrOutcome(c net.Conn, err error) {
	switch {
	case errtyp.HasCode(err, errtyp.UpstreamTimeout):
		writeStatus(c, 504, "Gateway Timeout")
	case errtyp.HasCode(err, errtyp.SessionClosed):
		writeStatus(c, 502, "Bad Gateway")
	default:
		writeStatus(c, 502, "Bad Gateway")
	}
}

func writeResponse(c net.Conn, e *protocol.Envelope) {
	body, err := protocol.DecodeBody(e.BodyB64)
	if err != nil {
		writeStatus(c, 502, "Bad Gateway")
		return
	}

	status := e.Status
	if status == 0 {
		status = 200
	}

	hdr := protocol.ToHTTPHeader(e.Headers)
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	hdr.Set("Connection", "close")

	resp := &http.Response{
		StatusCode: status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     hdr,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Close:      true,
	}

	_ = resp.Write(c)
}

func writeStatus(c net.Conn, code int, text string) {
	resp := &http.Response{
		StatusCode: code,
		Status:     strconv.Itoa(code) + " " + text,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Connection": []string{"close"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(text))),
		Close:      true,
	}

	_ = resp.Write(c)
}
