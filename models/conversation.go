package models

import "time"

// LastMessage 会话的最后一条消息快照，冗余存储用于会话列表展示
type LastMessage struct {
	Content   string     `json:"content"`
	SenderID  uint       `json:"sender_id"`
	CreatedAt *time.Time `json:"created_at"`
	IsRead    bool       `json:"is_read"`
}

// Conversation 会话模型：连接请求被接受后创建，参与者固定为两人
type Conversation struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RequestID    string      `gorm:"type:varchar(36);uniqueIndex" json:"request_id"` // 与连接请求一一对应
	ParticipantA uint        `gorm:"index" json:"participant_a"`
	ParticipantB uint        `gorm:"index" json:"participant_b"`
	IsActive     bool        `gorm:"default:true" json:"is_active"`
	LastMessage  LastMessage `gorm:"embedded;embeddedPrefix:last_message_" json:"last_message"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `gorm:"index" json:"updated_at"`
}

// HasParticipant 判断用户是否是会话参与者
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// PeerOf 返回会话中对方的用户ID
func (c *Conversation) PeerOf(userID uint) uint {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}
