package models

import "time"

// Message 消息模型，按 (conversation_id, created_at) 建立排序索引
// 主键自增，created_at 相同的消息按插入顺序排序
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index:idx_conv_created,priority:1" json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	Content        string    `gorm:"type:varchar(2000)" json:"content"`
	IsRead         bool      `gorm:"default:false" json:"is_read"` // 只会从 false 变 true
	CreatedAt      time.Time `gorm:"index:idx_conv_created,priority:2" json:"created_at"`
}
