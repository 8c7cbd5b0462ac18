package services

import "letter-connect/models"

// Broadcaster 实时推送的抽象。持久化层只依赖这个接口，
// 测试时可以换成假的 transport；推送失败不影响已落库的数据
type Broadcaster interface {
	// BroadcastNewMessage 向消息所属会话的房间推送新消息
	BroadcastNewMessage(msg *models.Message)
	// BroadcastMessageRead 向房间推送已读回执
	BroadcastMessageRead(conversationID string, messageID uint, readBy uint)
	// PushNewNotification 推送给收件人的所有在线连接（多端）
	PushNewNotification(n *models.Notification)
	// IsUserInRoom 用户是否有连接加入了该会话的房间
	IsUserInRoom(conversationID string, userID uint) bool
}
