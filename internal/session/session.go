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

package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/tunneld/internal/logger"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/waiter"
	"github.com/nabbar/tunneld/internal/wsconn"
)

// Session is one registered client: its control channel, its public
// listener, and the requests currently in flight to it.
type Session struct {
	ClientId   protocol.ClientId
	PublicPort int

	conn     wsconn.Conn
	listener net.Listener
	waiters  waiter.Table
	log      logger.FuncLog

	state    atomic.Int32
	closeErr error
	closeWG  sync.WaitGroup
	once     sync.Once

	onClose func(protocol.ClientId, int)
}

func newSession(id protocol.ClientId, port int, c wsconn.Conn, l net.Listener, log logger.FuncLog, onClose func(protocol.ClientId, int)) *Session {
	s := &Session{
		ClientId:   id,
		PublicPort: port,
		conn:       c,
		listener:   l,
		waiters:    waiter.New(),
		log:        log,
		onClose:    onClose,
	}

	s.state.Store(int32(Registering))

	return s
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Conn returns the session's control-channel transport.
func (s *Session) Conn() wsconn.Conn {
	return s.conn
}

// Waiters returns the session's request correlation table.
func (s *Session) Waiters() waiter.Table {
	return s.waiters
}

// Activate transitions Registering -> Active once the "registered"
// envelope has been sent; the manager starts the accept loop right after.
func (s *Session) Activate() {
	s.setState(Active)
}

// TrackRequest registers one in-flight public request against the
// session's drain wait group. The returned func must be called exactly
// once when that request finishes.
func (s *Session) TrackRequest() func() {
	s.closeWG.Add(1)
	return s.closeWG.Done
}

// Drain transitions Active -> Draining: no new public connections are
// accepted, but requests already in flight are allowed to finish.
func (s *Session) Drain() {
	s.setState(Draining)
	_ = s.listener.Close()
}

// Close idempotently tears the session down: fails every pending
// waiter, closes the listener and control channel, and waits (up to
// grace) for in-flight requests to finish. Safe to call more than once
// and from more than one goroutine.
func (s *Session) Close(grace time.Duration, failErr error) error {
	s.once.Do(func() {
		s.setState(Draining)
		_ = s.listener.Close()
		s.waiters.FailAll(failErr)

		done := make(chan struct{})
		go func() {
			s.closeWG.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(grace):
			if s.log != nil {
				s.log().Warning("session ", string(s.ClientId), " did not drain within grace period")
			}
		}

		s.closeErr = s.conn.Close()
		s.setState(Closed)

		if s.onClose != nil {
			s.onClose(s.ClientId, s.PublicPort)
		}
	})

	return s.closeErr
}
