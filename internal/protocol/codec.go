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

package protocol

import (
	"encoding/base64"
	"encoding/json"

	"github.com/nabbar/tunneld/internal/errtyp"
)

// Encode marshals an envelope to its wire form (a single JSON frame).
// It returns FrameTooLarge if the result would exceed MaxFrameBytes.
func Encode(e *Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errtyp.ProtocolError.Error(err)
	}

	if len(b) > MaxFrameBytes {
		return nil, errtyp.FrameTooLarge.Errorf("encoded frame is %d bytes, max %d", len(b), MaxFrameBytes)
	}

	return b, nil
}

// Decode parses one wire frame into an Envelope. It returns FrameTooLarge
// before attempting to unmarshal an oversized frame, and ProtocolError if
// the frame isn't valid JSON or has no type. An unrecognized type is
// returned as is; see IsKnownType.
func Decode(frame []byte) (*Envelope, error) {
	if len(frame) > MaxFrameBytes {
		return nil, errtyp.FrameTooLarge.Errorf("received frame is %d bytes, max %d", len(frame), MaxFrameBytes)
	}

	e := &Envelope{}
	if err := json.Unmarshal(frame, e); err != nil {
		return nil, errtyp.ProtocolError.Error(err)
	}

	if e.Type == "" {
		return nil, errtyp.ProtocolError.Errorf("envelope missing type")
	}

	return e, nil
}

// EncodeBody base64-encodes a request/response body for BodyB64. An empty
// body encodes to "".
func EncodeBody(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBody reverses EncodeBody. An empty string decodes to a nil slice.
func DecodeBody(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errtyp.ProtocolError.Error(err)
	}

	return b, nil
}

// IsKnownType reports whether t is one of the recognized envelope types.
// Unknown types are logged and skipped by the session control loop,
// except during the initial handshake where only "register" is accepted.
func IsKnownType(t string) bool {
	switch t {
	case TypeRegister, TypeRegistered, TypeRequest, TypeResponse, TypePing, TypePong, TypeError:
		return true
	default:
		return false
	}
}
