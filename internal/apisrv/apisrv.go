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

// Package apisrv is the server's own small control-plane HTTP mux: the
// /ws upgrade endpoint clients dial to register a session, plus basic
// liveness/introspection endpoints. Kept on github.com/gin-gonic/gin,
// distinct from internal/publicsrv which must pass arbitrary HTTP/1.1
// through untouched.
package apisrv

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nabbar/tunneld/internal/errtyp"
	"github.com/nabbar/tunneld/internal/logger"
	"github.com/nabbar/tunneld/internal/protocol"
	"github.com/nabbar/tunneld/internal/session"
	"github.com/nabbar/tunneld/internal/wsconn"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New builds the gin engine exposing /ws, /healthz, and /debug/sessions
// against the given session.Manager.
func New(mgr session.Manager, log logger.FuncLog) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/debug/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.List())
	})

	r.GET("/ws", func(c *gin.Context) {
		handleWS(c, mgr, log)
	})

	return r
}

func handleWS(c *gin.Context, mgr session.Manager, log logger.FuncLog) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if log != nil {
			log().Warning("websocket upgrade failed: ", err)
		}
		return
	}

	conn := wsconn.New(ws)

	first, err := conn.Recv()
	if err != nil || first.Type != protocol.TypeRegister {
		_ = conn.Close()
		return
	}

	id := first.ClientId
	if id == "" {
		id = uuid.NewString()
	}

	if _, err := mgr.Register(c.Request.Context(), protocol.ClientId(id), conn); err != nil {
		_ = conn.Send(&protocol.Envelope{Type: protocol.TypeError, Code: wireCode(err), Message: err.Error()})
		// Close blocks until the writer goroutine has flushed this
		// frame, so the client actually receives it (spec.md S3)
		// before the socket goes away.
		_ = conn.Close()
		return
	}
}

// wireCode extracts the snake_case error code (e.g. "no_port") from a
// *errtyp.Error for the error envelope's required `code` field.
func wireCode(err error) string {
	var e *errtyp.Error
	if errors.As(err, &e) {
		return e.Code().Wire()
	}

	return errtyp.UnknownError.Wire()
}
