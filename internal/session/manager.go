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
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nabbar/tunneld/internal/ctxmap"
	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/logger"
	"github.com/nabbar/tunneld/internal/portpool"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/wsconn"
)

// Info is the read-only view of a Session exposed by List, used by the
// /debug/sessions surface.
type Info struct {
	ClientId   string `json:"client_id"`
	PublicPort int    `json:"public_port"`
	State      string `json:"state"`
	Pending    int    `json:"pending_requests"`
}

// Manager owns the client_id -> Session table and the shared port pool.
type Manager interface {
	// Register allocates a port, opens its public listener, and creates
	// a new Session bound to conn. It sends the "registered" envelope
	// and transitions the session to Active before returning.
	Register(ctx context.Context, id protocol.ClientId, conn wsconn.Conn) (*Session, error)
	Lookup(id protocol.ClientId) (*Session, bool)
	Close(id protocol.ClientId) error
	List() []Info
	// Shutdown drains every session, waiting up to grace for in-flight
	// requests before forcing close.
	Shutdown(grace time.Duration)
}

type manager struct {
	ports      portpool.Pool
	table      ctxmap.Store[protocol.ClientId, *Session]
	log        logger.FuncLog
	onAccept   func(*Session, net.Conn)
	maxClients int
	clients    int64 // atomic; live session count, only meaningful when maxClients > 0
}

// NewManager returns a Manager allocating public ports from [portMin,
// portMax]. onAccept is invoked once per accepted public connection and
// is expected to run the HTTP request/response cycle for it (wired by
// internal/publicsrv). maxClients caps the number of concurrently
// registered sessions; 0 means unlimited.
func NewManager(portMin, portMax, maxClients int, log logger.FuncLog, onAccept func(*Session, net.Conn)) Manager {
	return &manager{
		ports:      portpool.New(portMin, portMax),
		table:      ctxmap.New[protocol.ClientId, *Session](),
		log:        log,
		onAccept:   onAccept,
		maxClients: maxClients,
	}
}

// reserveSlot atomically claims one of maxClients client slots, failing
// if the cap is already reached. A no-op success when maxClients <= 0.
func (m *manager) reserveSlot() bool {
	if m.maxClients <= 0 {
		return true
	}

	for {
		cur := atomic.LoadInt64(&m.clients)
		if cur >= int64(m.maxClients) {
			return false
		}

		if atomic.CompareAndSwapInt64(&m.clients, cur, cur+1) {
			return true
		}
	}
}

func (m *manager) releaseSlot() {
	if m.maxClients <= 0 {
		return
	}

	atomic.AddInt64(&m.clients, -1)
}

func (m *manager) Register(ctx context.Context, id protocol.ClientId, conn wsconn.Conn) (*Session, error) {
	if !m.reserveSlot() {
		return nil, errtyp.TooManyClients.Errorf("client cap %d reached", m.maxClients)
	}

	port, err := m.ports.Allocate()
	if err != nil {
		m.releaseSlot()
		return nil, err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		m.ports.Release(port)
		m.releaseSlot()
		return nil, errtyp.BindFailed.Error(err)
	}

	s := newSession(id, port, conn, ln, m.log, func(cid protocol.ClientId, p int) {
		m.table.Delete(cid)
		m.ports.Release(p)
		m.releaseSlot()
	})

	m.table.Store(id, s)

	if err := conn.Send(&protocol.Envelope{
		Type:       protocol.TypeRegistered,
		ClientId:   string(id),
		PublicPort: port,
	}); err != nil {
		_ = s.Close(0, errtyp.ProtocolError.Error(err))
		return nil, err
	}

	s.Activate()
	go m.acceptLoop(s)
	go m.runControlLoop(s)

	if m.log != nil {
		m.log().Info("session ", string(id), " registered on port ", port)
	}

	return s, nil
}

func (m *manager) acceptLoop(s *Session) {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}

		if s.State() != Active {
			_ = c.Close()
			continue
		}

		done := s.TrackRequest()
		go func() {
			defer done()
			m.onAccept(s, c)
		}()
	}
}

func (m *manager) Lookup(id protocol.ClientId) (*Session, bool) {
	return m.table.Load(id)
}

func (m *manager) Close(id protocol.ClientId) error {
	s, ok := m.table.Load(id)
	if !ok {
		return nil
	}

	return s.Close(10*time.Second, errtyp.SessionClosed.Error())
}

func (m *manager) List() []Info {
	var out []Info

	m.table.Range(func(_ protocol.ClientId, s *Session) bool {
		out = append(out, Info{
			ClientId:   string(s.ClientId),
			PublicPort: s.PublicPort,
			State:      s.State().String(),
			Pending:    s.Waiters().Len(),
		})
		return true
	})

	return out
}

func (m *manager) Shutdown(grace time.Duration) {
	var sessions []*Session

	m.table.Range(func(_ protocol.ClientId, s *Session) bool {
		if s.State() == Active {
			s.Drain()
		}
		sessions = append(sessions, s)
		return true
	})

	deadline := time.Now().Add(grace)

	for _, s := range sessions {
		done := make(chan struct{})
		go func(s *Session) {
			s.closeWG.Wait()
			close(done)
		}(s)

		select {
		case <-done:
		case <-time.After(time.Until(deadline)):
		}

		s.Close(time.Until(deadline), errtyp.SessionClosed.Error())
	}
}
