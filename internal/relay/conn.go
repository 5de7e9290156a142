package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mxcop/flow/internal/logging"
	"github.com/mxcop/flow/internal/protocol"
	"github.com/mxcop/flow/internal/registry"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 40 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 32
)

// Session is the identity a Connection Loop presents to the dispatcher and
// its handlers: the transport address that keys the Registry, and the
// exclusive write handle bound to this connection.
type Session struct {
	Addr string
	Sink *registry.Sink
}

// Conn owns one client's duplex WebSocket stream: it splits the stream
// into independent read and write halves, reads frames sequentially and
// dispatches them, and synthesizes a disconnect on read failure or stream
// close.
type Conn struct {
	addr string
	ws   *websocket.Conn
	send chan []byte
	reg  *registry.Registry
}

// Serve runs a Connection Loop for an already-upgraded WebSocket
// connection until it closes. Call it from its own goroutine per accepted
// connection: one task per client, suspending at reads, writes, and
// lock acquisition, never blocking one another.
func Serve(reg *registry.Registry, ws *websocket.Conn) {
	c := &Conn{
		addr: ws.RemoteAddr().String(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		reg:  reg,
	}

	go c.writePump()
	c.readPump()
}

func (c *Conn) session() Session {
	return Session{Addr: c.addr, Sink: registry.NewSink(c.send)}
}

func (c *Conn) readPump() {
	defer c.disconnect()

	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sess := c.session()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				logging.Warn(whoFor(c.reg, c.addr), fmt.Sprintf("read error: %v", err))
			}
			return
		}

		if len(data) == 0 {
			continue
		}

		Dispatch(c.reg, sess, data)
	}
}

// disconnect synthesizes the required cleanup: remove the
// user (which atomically purges its dependent offers) and, if a user was
// actually present, broadcast a leave event. RemoveUser reports a removal
// only the first time for a given addr, so at most one leave is broadcast
// for it. disconnect runs once per Conn, deferred by readPump.
func (c *Conn) disconnect() {
	_ = c.ws.Close()
	close(c.send)

	u, removed := c.reg.RemoveUser(c.addr)
	if !removed {
		return
	}

	leave := protocol.Presence{Type: "leave", User: protocol.UserRef{ID: u.ID, Name: u.Name}}
	if payload, err := json.Marshal(leave); err == nil {
		Broadcast(c.reg, c.addr, payload)
	}
	logging.Info(identity(u), "disconnected")
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logging.Warn(whoFor(c.reg, c.addr), fmt.Sprintf("write error: %v", err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
