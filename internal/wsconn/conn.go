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

// Package wsconn wraps a gorilla/websocket connection as the transport
// for one control channel: one text frame per JSON envelope, one
// goroutine owning all writes so concurrent senders never interleave.
package wsconn

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/protocol"
)

// SendQueueSize bounds the outbound queue per control channel. A full
// queue applies backpressure to whatever is producing frames (spec.md
// §5's single-writer discipline).
const SendQueueSize = 256

// Conn is a bidirectional control-channel transport: Send enqueues a
// frame for the single writer goroutine, Recv blocks for the next
// inbound frame, Close tears both down exactly once.
type Conn interface {
	Send(e *protocol.Envelope) error
	Recv() (*protocol.Envelope, error)
	Close() error
	SetReadDeadline(t time.Time) error
}

type conn struct {
	ws      *websocket.Conn
	out     chan *protocol.Envelope
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	werr    error
	wmu     sync.Mutex
}

// New wraps an established *websocket.Conn and starts its writer loop.
func New(ws *websocket.Conn) Conn {
	c := &conn{
		ws:      ws,
		out:     make(chan *protocol.Envelope, SendQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go c.writeLoop()

	return c
}

func (c *conn) writeLoop() {
	defer close(c.stopped)

	for {
		select {
		case e, ok := <-c.out:
			if !ok {
				return
			}

			if !c.writeFrame(e) {
				return
			}
		case <-c.done:
			// Any frame already enqueued by Send before Close was
			// called must still reach the wire: drain it here rather
			// than let the select's random tie-break drop it.
			c.drain()
			return
		}
	}
}

func (c *conn) drain() {
	for {
		select {
		case e, ok := <-c.out:
			if !ok {
				return
			}

			if !c.writeFrame(e) {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) writeFrame(e *protocol.Envelope) bool {
	frame, err := protocol.Encode(e)
	if err != nil {
		c.recordWriteErr(err)
		return true
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.recordWriteErr(err)
		return false
	}

	return true
}

func (c *conn) recordWriteErr(err error) {
	c.wmu.Lock()
	if c.werr == nil {
		c.werr = err
	}
	c.wmu.Unlock()
}

func (c *conn) lastWriteErr() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.werr
}

// Send enqueues e for the writer goroutine. It blocks if the outbound
// queue is full (the specified backpressure behavior) and returns an
// error if the connection has already been closed.
func (c *conn) Send(e *protocol.Envelope) error {
	select {
	case <-c.done:
		return errtyp.SessionClosed.Error()
	default:
	}

	select {
	case c.out <- e:
		return nil
	case <-c.done:
		return errtyp.SessionClosed.Error()
	}
}

// Recv reads and decodes the next inbound frame.
func (c *conn) Recv() (*protocol.Envelope, error) {
	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	if err := c.lastWriteErr(); err != nil {
		return nil, err
	}

	return protocol.Decode(frame)
}

// Close stops the writer goroutine and closes the underlying socket. It
// waits for the writer to flush any already-enqueued frame first, so a
// Send immediately followed by Close (e.g. an error envelope before
// tearing down a failed registration) is still delivered. Safe to call
// more than once.
func (c *conn) Close() error {
	var err error

	c.once.Do(func() {
		close(c.done)
		<-c.stopped
		err = c.ws.Close()
	})

	return err
}

func (c *conn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}
