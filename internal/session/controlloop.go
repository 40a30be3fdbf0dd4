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
	"sync/atomic"
	"time"

	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/protocol"
)

// PingInterval is the default period between heartbeat pings, either
// side may send one.
const PingInterval = 20 * time.Second

// MissedPongLimit is the number of consecutive un-ponged pings that
// close the control channel with Heartbeat.
const MissedPongLimit = 3

// runControlLoop reads envelopes off the session's control channel until
// it errors or the session closes, dispatching responses to the waiter
// table and answering heartbeat pings. It also drives the server's own
// outbound ping ticker. When Recv fails it closes the session itself
// (SessionClosed) and returns; it also returns once the session is Closed.
func (m *manager) runControlLoop(s *Session) {
	missed := &atomic.Int32{}
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if missed.Add(1) > MissedPongLimit {
					_ = s.Close(0, errtyp.Heartbeat.Error())
					return
				}

				if err := s.conn.Send(&protocol.Envelope{Type: protocol.TypePing}); err != nil {
					return
				}
			}
		}
	}()

	defer close(stop)

	for {
		e, err := s.conn.Recv()
		if err != nil {
			_ = s.Close(0, errtyp.SessionClosed.Error(err))
			return
		}

		switch e.Type {
		case protocol.TypeResponse:
			s.waiters.Complete(e.RequestId, e)
		case protocol.TypePing:
			_ = s.conn.Send(&protocol.Envelope{Type: protocol.TypePong})
		case protocol.TypePong:
			missed.Store(0)
		case protocol.TypeError:
			if m.log != nil {
				m.log().Warning("session ", string(s.ClientId), " reported error: ", e.Message)
			}
		default:
			if !protocol.IsKnownType(e.Type) && m.log != nil {
				m.log().Debug("session ", string(s.ClientId), " received unknown envelope type ", e.Type)
			}
		}

		if s.State() == Closed {
			return
		}
	}
}
