package server

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/madshubh27/Crotex/document"
)

// Client is one websocket connection into the relay.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// deliver queues data for the write pump. A full queue means the client is
// not keeping up; the caller drops it.
func (c *Client) deliver(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("[relay] client %s disconnected: %v", c.id, err)
			return
		}
		var m document.Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("[relay] client %s sent bad message: %v", c.id, err)
			continue
		}
		switch m.Type {
		case document.TypeJoin:
			if m.Room != "" {
				c.hub.Join(c, m.Room)
			}
		case document.TypeLeave:
			c.hub.Leave(c)
		case document.TypePush:
			if m.Room != "" {
				c.hub.Push(c, m.Room, m.Elements)
			}
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		data, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
