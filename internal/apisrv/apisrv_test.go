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

package apisrv_test

import (
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nabbar/tunneld/internal/apisrv"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/session"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	mgr := session.NewManager(21000, 21010, 0, nil, func(s *session.Session, c net.Conn) { _ = c.Close() })
	srv := httptest.NewServer(apisrv.New(mgr, nil))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}

func TestWebSocketRegisterHandshake(t *testing.T) {
	mgr := session.NewManager(21100, 21110, 0, nil, func(s *session.Session, c net.Conn) { _ = c.Close() })
	srv := httptest.NewServer(apisrv.New(mgr, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	frame, err := protocol.Encode(&protocol.Envelope{Type: protocol.TypeRegister, ClientId: "test-client"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)

	e, err := protocol.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeRegistered, e.Type)
	require.Greater(t, e.PublicPort, 0)

	require.Eventually(t, func() bool {
		_, ok := mgr.Lookup("test-client")
		return ok
	}, time.Second, 10*time.Millisecond)
}

// TestWebSocketRegisterNoPortAvailable exercises spec.md S3: a second
// client registering against an exhausted port range must actually
// receive error{code=no_port} before the control channel closes.
func TestWebSocketRegisterNoPortAvailable(t *testing.T) {
	mgr := session.NewManager(21200, 21200, 0, nil, func(s *session.Session, c net.Conn) { _ = c.Close() })
	srv := httptest.NewServer(apisrv.New(mgr, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()

	frame, err := protocol.Encode(&protocol.Envelope{Type: protocol.TypeRegister, ClientId: "first"})
	require.NoError(t, err)
	require.NoError(t, first.WriteMessage(websocket.TextMessage, frame))

	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := first.ReadMessage()
	require.NoError(t, err)

	reg, err := protocol.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeRegistered, reg.Type)

	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()

	frame, err = protocol.Encode(&protocol.Envelope{Type: protocol.TypeRegister, ClientId: "second"})
	require.NoError(t, err)
	require.NoError(t, second.WriteMessage(websocket.TextMessage, frame))

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = second.ReadMessage()
	require.NoError(t, err)

	errEnv, err := protocol.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeError, errEnv.Type)
	require.Equal(t, "no_port", errEnv.Code)

	// The server closes the channel right after; the next read must
	// observe that close, not a timeout waiting on a never-sent frame.
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = second.ReadMessage()
	require.Error(t, err)
}
