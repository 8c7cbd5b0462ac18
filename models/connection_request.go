package models

import "time"

// 连接请求状态，pending 只能迁移到 accepted 或 rejected 一次
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// ConnectionRequest 连接请求模型：sender 向 receiver 发起的付费聊天申请
type ConnectionRequest struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID        uint       `gorm:"index:idx_request_pair" json:"sender_id"`
	ReceiverID      uint       `gorm:"index:idx_request_pair" json:"receiver_id"`
	Message         string     `gorm:"type:varchar(500)" json:"message"`
	Status          string     `gorm:"type:varchar(10);default:'pending';index" json:"status"`
	PendingKey      *string    `gorm:"type:varchar(32);uniqueIndex" json:"-"` // "sender:receiver"，终态后置空
	IsPaid          bool       `gorm:"default:false" json:"is_paid"` // 票据或支付完成后才对 receiver 可见
	PaymentRef      *string    `gorm:"type:varchar(36)" json:"payment_ref,omitempty"`
	RejectionReason *string    `gorm:"type:varchar(500)" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	RespondedAt     *time.Time `json:"responded_at"`
}
