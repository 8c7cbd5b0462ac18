package models

import "gorm.io/gorm"

// Migrate 自动迁移所有表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&ConnectionRequest{},
		&Conversation{},
		&Message{},
		&Notification{},
		&Payment{},
	)
}
