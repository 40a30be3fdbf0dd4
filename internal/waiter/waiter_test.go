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

package waiter_test

import (
	"testing"
	"time"

	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/waiter"
	"github.com/stretchr/testify/require"
)

func TestCompleteDeliversResponse(t *testing.T) {
	tbl := waiter.New()
	ch := tbl.Insert("req-1", time.Second)

	resp := &protocol.Envelope{Type: protocol.TypeResponse, RequestId: "req-1"}
	tbl.Complete("req-1", resp)

	out := <-ch
	require.NoError(t, out.Err)
	require.Same(t, resp, out.Response)
	require.Equal(t, 0, tbl.Len())
}

func TestCompleteUnknownRequestIsNoop(t *testing.T) {
	tbl := waiter.New()
	require.NotPanics(t, func() {
		tbl.Complete("nonexistent", &protocol.Envelope{})
	})
}

func TestTimeoutFiresUpstreamTimeout(t *testing.T) {
	tbl := waiter.New()
	ch := tbl.Insert("req-2", 10*time.Millisecond)

	out := <-ch
	require.Error(t, out.Err)
	require.True(t, errtyp.HasCode(out.Err, errtyp.UpstreamTimeout))
	require.Eventually(t, func() bool { return tbl.Len() == 0 }, time.Second, time.Millisecond)
}

func TestLateCompleteAfterTimeoutIsDropped(t *testing.T) {
	tbl := waiter.New()
	ch := tbl.Insert("req-3", 5*time.Millisecond)

	out := <-ch
	require.True(t, errtyp.HasCode(out.Err, errtyp.UpstreamTimeout))

	require.NotPanics(t, func() {
		tbl.Complete("req-3", &protocol.Envelope{Type: protocol.TypeResponse})
	})
}

func TestFailAllDrainsEveryWaiter(t *testing.T) {
	tbl := waiter.New()
	ch1 := tbl.Insert("a", time.Minute)
	ch2 := tbl.Insert("b", time.Minute)

	closeErr := errtyp.SessionClosed.Error()
	tbl.FailAll(closeErr)

	o1 := <-ch1
	o2 := <-ch2
	require.True(t, errtyp.HasCode(o1.Err, errtyp.SessionClosed))
	require.True(t, errtyp.HasCode(o2.Err, errtyp.SessionClosed))
	require.Equal(t, 0, tbl.Len())
}
