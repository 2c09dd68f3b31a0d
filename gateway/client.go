package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// client is one websocket connection. Its id doubles as the actor id of the
// human it controls.
type client struct {
	id    string
	conn  *websocket.Conn
	codec Codec
	gw    *Gateway

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, codec Codec, gw *Gateway) *client {
	return &client{
		id:    id,
		conn:  conn,
		codec: codec,
		gw:    gw,
		send:  make(chan []byte, sendQueueSize),
		done:  make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump. A full queue drops the frame.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.gw.log.Warn("send queue full, dropping frame", "conn", c.id)
		return false
	}
}

func (c *client) sendMessage(typ string, data any) {
	frame, err := c.codec.Encode(Envelope{Type: typ, Data: data})
	if err != nil {
		c.gw.log.Error("encode message", "conn", c.id, "type", typ, "error", err)
		return
	}
	c.enqueue(frame)
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.gw.log.Warn("websocket read", "conn", c.id, "error", err)
			}
			return
		}
		typ, raw, err := c.codec.DecodeEnvelope(frame)
		if err != nil {
			c.gw.log.Debug("bad frame", "conn", c.id, "error", err)
			continue
		}
		c.gw.handle(c, typ, raw)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
