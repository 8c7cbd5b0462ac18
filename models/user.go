package models

import (
	"time"
)

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 用户模型（身份与票据余额）
type User struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username      string     `json:"username" gorm:"unique;not null"`
	Password      string     `json:"-" gorm:"not null"`
	Role          string     `json:"role" gorm:"type:varchar(10);default:'user'"`
	TicketBalance uint       `json:"ticket_balance" gorm:"default:0"` // 剩余连接票据，不能为负
	Membership    string     `json:"membership" gorm:"type:varchar(20);default:'basic'"`
	LastLogin     *time.Time `json:"last_login" gorm:"default:NULL"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
