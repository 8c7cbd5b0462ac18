package config

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitDB 连接 MySQL。TranslateError 把驱动的唯一键冲突翻译成 gorm.ErrDuplicatedKey
func InitDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
}
