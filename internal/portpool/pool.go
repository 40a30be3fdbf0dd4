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

// Package portpool allocates the public TCP ports handed out to each
// registered session, one per client, out of a fixed [min, max] range.
package portpool

import (
	"sync"

	"github.com/nabbar/tunneld/internal/errtyp"
)

// Pool hands out ports from a closed range, smallest-free-port-first.
type Pool interface {
	Allocate() (int, error)
	Release(port int)
	InUseCount() int
}

type pool struct {
	mu    sync.Mutex
	min   int
	max   int
	inUse map[int]bool
}

// New returns a Pool over the inclusive range [min, max].
func New(min, max int) Pool {
	return &pool{
		min:   min,
		max:   max,
		inUse: make(map[int]bool),
	}
}

// Allocate reserves and returns the smallest free port in range. It
// returns NoPortAvailable if every port in range is currently in use.
func (p *pool) Allocate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for port := p.min; port <= p.max; port++ {
		if !p.inUse[port] {
			p.inUse[port] = true
			return port, nil
		}
	}

	return 0, errtyp.NoPortAvailable.Errorf("no free port in range %d-%d", p.min, p.max)
}

// Release returns a port to the free set. Releasing a port not currently
// held is a no-op.
func (p *pool) Release(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inUse, port)
}

// InUseCount reports how many ports are currently allocated.
func (p *pool) InUseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.inUse)
}
