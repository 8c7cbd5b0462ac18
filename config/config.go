package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 服务配置，全部来自环境变量（.env 可选）
type Config struct {
	Port          int
	DBDSN         string
	JWTSecret     string
	WebhookSecret string // 支付回调签名密钥，空则不校验
	ConnectFee    int64  // 一次连接请求的费用，单位 VND
}

// Load 读取 .env 和环境变量
func Load() Config {
	_ = godotenv.Load()

	port := 8082
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	fee := int64(20000)
	if v := os.Getenv("CONNECT_FEE"); v != "" {
		if f, err := strconv.ParseInt(v, 10, 64); err == nil {
			fee = f
		}
	}

	return Config{
		Port:          port,
		DBDSN:         os.Getenv("DB_DSN"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		ConnectFee:    fee,
	}
}
