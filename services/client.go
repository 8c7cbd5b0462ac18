package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"letter-connect/errs"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
	sendBuffer   = 64
)

var errsForbiddenJoin = errs.Forbidden("you are not part of this conversation")

// Client 一条已认证的实时连接。一个用户可以同时有多条（多端）
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event

	UserID       uint
	Username     string
	ConnectionID string

	// joined 该连接加入的房间，由 hub.mu 保护
	joined map[string]struct{}

	closeOnce sync.Once
}

// 客户端发来的事件帧，字段名与前端 socket 协议一致
type inboundEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
	MessageID      uint   `json:"messageId"`
}

type typingPayload struct {
	UserID         uint   `json:"userId"`
	Username       string `json:"username"`
	IsTyping       bool   `json:"isTyping"`
	ConversationID string `json:"conversationId"`
}

type readReceipt struct {
	MessageID uint `json:"messageId"`
	ReadBy    uint `json:"readBy"`
}

// NewClient 注册一条新连接并启动读写泵
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, username string) *Client {
	c := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan Event, sendBuffer),
		UserID:       userID,
		Username:     username,
		ConnectionID: uuid.New().String(),
		joined:       make(map[string]struct{}),
	}
	hub.register(c)
	go c.writeLoop()
	go c.readLoop()
	return c
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev inboundEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}
		c.handleEvent(ev)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(ev inboundEvent) {
	switch ev.Type {
	case "joinConversation":
		if err := c.hub.JoinRoom(c, ev.ConversationID); err != nil {
			c.sendError(err)
		}
	case "leaveConversation":
		c.hub.LeaveRoom(c, ev.ConversationID)
	case "typing":
		// 只转发给房间里的其他人，不回显；不落库，
		// 停止输入由客户端超时自行清除
		c.hub.mu.RLock()
		_, inRoom := c.joined[ev.ConversationID]
		c.hub.mu.RUnlock()
		if !inRoom {
			return
		}
		c.hub.broadcastToRoom(ev.ConversationID, Event{
			Type: "userTyping",
			Data: typingPayload{
				UserID:         c.UserID,
				Username:       c.Username,
				IsTyping:       ev.IsTyping,
				ConversationID: ev.ConversationID,
			},
		}, c)
	case "markMessageRead":
		if err := c.hub.msgs.MarkMessageRead(ev.ConversationID, ev.MessageID, c.UserID); err != nil {
			c.sendError(err)
		}
	default:
		c.sendError(errs.Validation("unknown event type %q", ev.Type))
	}
}

func (c *Client) sendError(err error) {
	select {
	case c.send <- Event{Type: "error", Data: err.Error()}:
	default:
	}
}
