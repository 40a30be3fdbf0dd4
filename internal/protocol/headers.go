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
	"net/http"
	"strings"
)

// hopByHop lists the header fields RFC 7230 §6.1 says are meaningful only
// for a single transport hop and must not be forwarded by a relay.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// StripHopByHop drops hop-by-hop headers (RFC 7230 §6.1), including any
// extra field named by a Connection header, and returns the remainder as
// HeaderPairs suitable for an Envelope. Values of a repeated name keep
// their order; the order across different names follows map iteration
// and is not preserved.
func StripHopByHop(h http.Header) []HeaderPair {
	drop := map[string]bool{}
	for k, v := range hopByHop {
		drop[k] = v
	}

	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			drop[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}

	var out []HeaderPair
	for name, values := range h {
		if drop[strings.ToLower(name)] {
			continue
		}

		for _, v := range values {
			out = append(out, HeaderPair{name, v})
		}
	}

	return out
}

// ToHTTPHeader converts ordered HeaderPairs back into an http.Header,
// preserving repeated names.
func ToHTTPHeader(pairs []HeaderPair) http.Header {
	h := make(http.Header, len(pairs))
	for _, p := range pairs {
		h.Add(p[0], p[1])
	}

	return h
}
