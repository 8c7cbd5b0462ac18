package models

import (
	"time"

	"gorm.io/datatypes"
)

// 支付状态
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// Payment 支付记录：连接请求走支付通道时创建，ID 即支付回调里的 purpose_ref
type Payment struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       uint           `gorm:"index" json:"user_id"`
	RequestID    string         `gorm:"type:varchar(36);index" json:"request_id"`
	Amount       int64          `json:"amount"` // 单位：VND
	Status       string         `gorm:"type:varchar(10);default:'pending'" json:"status"`
	ProviderData datatypes.JSON `json:"provider_data,omitempty"` // 支付网关原始回执
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at"`
}
