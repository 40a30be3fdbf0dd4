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

package protocol_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &protocol.Envelope{
		Type:      protocol.TypeRequest,
		RequestId: "req-1",
		Method:    "GET",
		Path:      "/hello",
		BodyB64:   protocol.EncodeBody([]byte("hi")),
	}

	frame, err := protocol.Encode(in)
	require.NoError(t, err)

	out, err := protocol.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, in.RequestId, out.RequestId)
	require.Equal(t, in.Method, out.Method)

	body, err := protocol.DecodeBody(out.BodyB64)
	require.NoError(t, err)
	require.Equal(t, "hi", string(body))
}

func TestEncodeBodyEmpty(t *testing.T) {
	require.Equal(t, "", protocol.EncodeBody(nil))
	require.Equal(t, "", protocol.EncodeBody([]byte{}))

	b, err := protocol.DecodeBody("")
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestEncodeFrameTooLarge(t *testing.T) {
	big := strings.Repeat("a", protocol.MaxFrameBytes+1)
	e := &protocol.Envelope{Type: protocol.TypeRequest, BodyB64: big}

	_, err := protocol.Encode(e)
	require.Error(t, err)
	require.True(t, errtyp.HasCode(err, errtyp.FrameTooLarge))
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	big := make([]byte, protocol.MaxFrameBytes+1)

	_, err := protocol.Decode(big)
	require.Error(t, err)
	require.True(t, errtyp.HasCode(err, errtyp.FrameTooLarge))
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"request_id":"x"}`))
	require.Error(t, err)
	require.True(t, errtyp.HasCode(err, errtyp.ProtocolError))
}

func TestIsKnownType(t *testing.T) {
	require.True(t, protocol.IsKnownType(protocol.TypeRegister))
	require.False(t, protocol.IsKnownType("bogus"))
}

func TestStripHopByHop(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "X-Custom")
	h.Set("X-Custom", "drop-me")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Content-Type", "text/plain")

	pairs := protocol.StripHopByHop(h)

	var names []string
	for _, p := range pairs {
		names = append(names, strings.ToLower(p[0]))
	}

	require.Contains(t, names, "content-type")
	require.NotContains(t, names, "connection")
	require.NotContains(t, names, "keep-alive")
	require.NotContains(t, names, "x-custom")
}
