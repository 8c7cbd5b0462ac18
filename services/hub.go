package services

import (
	"log"
	"sync"

	"letter-connect/models"
)

// Event 实时通道的事件帧，事件名与前端 socket 协议一致
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub 房间服务器：维护在线连接（按用户分组，支持多端）和
// 按会话分组的房间成员。只做投递，不做存储；单进程内存状态
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	convs *ConversationService
	msgs  *MessageService
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Bind 注入会话和消息服务。hub 和 MessageService 互相引用，
// 只能在构造完之后绑定
func (h *Hub) Bind(convs *ConversationService, msgs *MessageService) {
	h.convs = convs
	h.msgs = msgs
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	log.Printf("client connected: user=%d conn=%s", c.UserID, c.ConnectionID)
}

// unregister 断开即自动退出所有房间，不依赖显式 leave
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range c.joined {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	c.joined = make(map[string]struct{})
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	log.Printf("client disconnected: user=%d conn=%s", c.UserID, c.ConnectionID)
}

// JoinRoom 加入会话房间，只有会话参与者可以加入
func (h *Hub) JoinRoom(c *Client, conversationID string) error {
	ok, err := h.convs.IsParticipant(conversationID, c.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return errsForbiddenJoin
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][c] = struct{}{}
	c.joined[conversationID] = struct{}{}
	return nil
}

// LeaveRoom 退出房间，不是成员时不报错
func (h *Hub) LeaveRoom(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[conversationID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	delete(c.joined, conversationID)
}

// broadcastToRoom 向房间内所有成员投递，except 不为空时跳过该连接。
// 发送缓冲满的慢客户端直接丢帧，断线重连后由消息列表接口补齐
func (h *Hub) broadcastToRoom(conversationID string, ev Event, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[conversationID] {
		if c == except {
			continue
		}
		select {
		case c.send <- ev:
		default:
			log.Printf("send buffer full, dropping frame: user=%d", c.UserID)
		}
	}
}

// BroadcastNewMessage 新消息推给会话房间
func (h *Hub) BroadcastNewMessage(msg *models.Message) {
	h.broadcastToRoom(msg.ConversationID, Event{Type: "newMessage", Data: msg}, nil)
}

// BroadcastMessageRead 已读回执推给会话房间
func (h *Hub) BroadcastMessageRead(conversationID string, messageID uint, readBy uint) {
	h.broadcastToRoom(conversationID, Event{
		Type: "messageRead",
		Data: readReceipt{MessageID: messageID, ReadBy: readBy},
	}, nil)
}

// PushNewNotification 推给收件人的所有在线连接
func (h *Hub) PushNewNotification(n *models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[n.RecipientID] {
		select {
		case c.send <- Event{Type: "newNotification", Data: n}:
		default:
			log.Printf("send buffer full, dropping notification: user=%d", c.UserID)
		}
	}
}

// IsUserInRoom 该用户是否有连接在房间里（用于抑制重复的收件箱通知）
func (h *Hub) IsUserInRoom(conversationID string, userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[conversationID] {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// OnlineUsers 当前在线用户集合（房间服务器维护的临时在线状态）
func (h *Hub) OnlineUsers() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]uint, 0, len(h.clients))
	for id := range h.clients {
		users = append(users, id)
	}
	return users
}
