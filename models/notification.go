package models

import "time"

// 通知类型
const (
	NotifyConnectionRequest = "connection_request"
	NotifyRequestAccepted   = "request_accepted"
	NotifyRequestRejected   = "request_rejected"
	NotifyNewMessage        = "new_message"
	NotifyNewLetter         = "new_letter"
	NotifySystem            = "system"
)

// 关联实体类型
const (
	RelatedConnectionRequest = "connection_request"
	RelatedConversation      = "conversation"
	RelatedLetter            = "letter"
)

// Notification 通知模型。related_status 冗余保存触发实体的当前状态，
// 收件箱判断是否还能接受/拒绝时不需要再查一次请求表
type Notification struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID   uint      `gorm:"index" json:"recipient_id"`
	Type          string    `gorm:"type:varchar(30)" json:"type"`
	Title         string    `gorm:"type:varchar(255)" json:"title"`
	Content       string    `gorm:"type:varchar(1000)" json:"content"`
	RelatedID     *string   `gorm:"type:varchar(36)" json:"related_id,omitempty"`
	RelatedType   *string   `gorm:"type:varchar(30)" json:"related_type,omitempty"`
	RelatedStatus *string   `gorm:"type:varchar(10)" json:"related_status,omitempty"`
	IsRead        bool      `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}
