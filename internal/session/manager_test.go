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

package session_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/session"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory wsconn.Conn double used to drive the session
// manager's lifecycle without a real websocket.
type fakeConn struct {
	sent   chan *protocol.Envelope
	inbox  chan *protocol.Envelope
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sent:   make(chan *protocol.Envelope, 16),
		inbox:  make(chan *protocol.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Send(e *protocol.Envelope) error {
	select {
	case f.sent <- e:
		return nil
	case <-f.closed:
		return errtyp.SessionClosed.Error()
	}
}

func (f *fakeConn) Recv() (*protocol.Envelope, error) {
	select {
	case e := <-f.inbox:
		return e, nil
	case <-f.closed:
		return nil, errtyp.SessionClosed.Error()
	}
}

func (f *fakeConn) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}

	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error { return nil }

func TestRegisterAllocatesPortAndSendsRegistered(t *testing.T) {
	m := session.NewManager(19000, 19010, 0, nil, func(s *session.Session, c net.Conn) {
		_ = c.Close()
	})

	fc := newFakeConn()
	s, err := m.Register(context.Background(), "client-1", fc)
	require.NoError(t, err)
	require.Equal(t, session.Active, s.State())
	require.GreaterOrEqual(t, s.PublicPort, 19000)

	reg := <-fc.sent
	require.Equal(t, protocol.TypeRegistered, reg.Type)
	require.Equal(t, s.PublicPort, reg.PublicPort)

	_, ok := m.Lookup("client-1")
	require.True(t, ok)
}

func TestCloseIsIdempotentAndFailsWaiters(t *testing.T) {
	m := session.NewManager(19100, 19110, 0, nil, func(s *session.Session, c net.Conn) {
		_ = c.Close()
	})

	fc := newFakeConn()
	s, err := m.Register(context.Background(), "client-2", fc)
	require.NoError(t, err)

	ch := s.Waiters().Insert("req-1", time.Minute)

	require.NoError(t, m.Close("client-2"))
	require.NoError(t, m.Close("client-2"), "second close must be a no-op")

	out := <-ch
	require.True(t, errtyp.HasCode(out.Err, errtyp.SessionClosed))
	require.Equal(t, session.Closed, s.State())

	_, ok := m.Lookup("client-2")
	require.False(t, ok, "closed session must be removed from the table")
}

func TestListReportsRegisteredSessions(t *testing.T) {
	m := session.NewManager(19200, 19210, 0, nil, func(s *session.Session, c net.Conn) {
		_ = c.Close()
	})

	fc := newFakeConn()
	_, err := m.Register(context.Background(), "client-3", fc)
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 1)
	require.Equal(t, "client-3", list[0].ClientId)
	require.Equal(t, "active", list[0].State)
}

func TestRegisterEnforcesMaxClients(t *testing.T) {
	m := session.NewManager(19300, 19310, 1, nil, func(s *session.Session, c net.Conn) {
		_ = c.Close()
	})

	_, err := m.Register(context.Background(), "client-4", newFakeConn())
	require.NoError(t, err)

	_, err = m.Register(context.Background(), "client-5", newFakeConn())
	require.Error(t, err)
	require.True(t, errtyp.HasCode(err, errtyp.TooManyClients))

	_, ok := m.Lookup("client-5")
	require.False(t, ok)

	require.NoError(t, m.Close("client-4"))

	_, err = m.Register(context.Background(), "client-6", newFakeConn())
	require.NoError(t, err, "closing the first client must free its slot")
}
