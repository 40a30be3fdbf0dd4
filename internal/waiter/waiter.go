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

// Package waiter implements the per-session request correlation table:
// one entry per in-flight request, fired exactly once by either its
// matching response, the session closing, or its deadline elapsing.
package waiter

import (
	"sync"
	"time"

	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/protocol"
)

// Outcome is delivered exactly once to a waiter's channel.
type Outcome struct {
	Response *protocol.Envelope
	Err      error
}

// Table is the per-session map of request_id -> pending waiter, modeled
// on a JSON-RPC client's pending-call table: each Insert gets a single-
// fire buffered channel, and Complete/Fail/timeout race to be the first
// (and only) one to send on it.
type Table interface {
	// Insert registers a new waiter for requestId with the given
	// deadline and returns the channel its Outcome will arrive on.
	Insert(requestId string, timeout time.Duration) <-chan Outcome
	// Complete delivers resp to the waiter for requestId, if still
	// pending. A late or unknown requestId is silently ignored.
	Complete(requestId string, resp *protocol.Envelope)
	// Fail delivers err to the single waiter for requestId, if still
	// pending, e.g. when the public caller aborts mid-wait. A late or
	// unknown requestId is silently ignored.
	Fail(requestId string, err error)
	// FailAll delivers err to every still-pending waiter, e.g. when the
	// owning session closes.
	FailAll(err error)
	// Len reports the number of still-pending waiters.
	Len() int
}

type entry struct {
	ch    chan Outcome
	timer *time.Timer
	once  sync.Once
}

func (e *entry) fire(o Outcome) {
	e.once.Do(func() {
		e.ch <- o
	})
}

type table struct {
	mu      sync.Mutex
	pending map[string]*entry
}

// New returns an empty correlation table.
func New() Table {
	return &table{
		pending: make(map[string]*entry),
	}
}

func (t *table) Insert(requestId string, timeout time.Duration) <-chan Outcome {
	e := &entry{ch: make(chan Outcome, 1)}

	t.mu.Lock()
	t.pending[requestId] = e
	t.mu.Unlock()

	e.timer = time.AfterFunc(timeout, func() {
		t.mu.Lock()
		_, ok := t.pending[requestId]
		if ok {
			delete(t.pending, requestId)
		}
		t.mu.Unlock()

		if ok {
			e.fire(Outcome{Err: errtyp.UpstreamTimeout.Errorf("no response for request %s within %s", requestId, timeout)})
		}
	})

	return e.ch
}

func (t *table) Complete(requestId string, resp *protocol.Envelope) {
	t.mu.Lock()
	e, ok := t.pending[requestId]
	if ok {
		delete(t.pending, requestId)
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	e.timer.Stop()
	e.fire(Outcome{Response: resp})
}

func (t *table) Fail(requestId string, err error) {
	t.mu.Lock()
	e, ok := t.pending[requestId]
	if ok {
		delete(t.pending, requestId)
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	e.timer.Stop()
	e.fire(Outcome{Err: err})
}

func (t *table) FailAll(err error) {
	t.mu.Lock()
	all := t.pending
	t.pending = make(map[string]*entry)
	t.mu.Unlock()

	for _, e := range all {
		e.timer.Stop()
		e.fire(Outcome{Err: err})
	}
}

func (t *table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}
