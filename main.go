package main

import (
	"fmt"
	"log"
	"os"

	"letter-connect/config"
	"letter-connect/controllers"
	"letter-connect/models"
	"letter-connect/routes"
	"letter-connect/services"
)

func main() {
	cfg := config.Load()
	if cfg.DBDSN == "" || cfg.JWTSecret == "" {
		log.Fatal("DB_DSN and JWT_SECRET must be set")
	}

	// 初始化数据库
	db, err := config.InitDB(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// 自动迁移
	if err := models.Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	tokens := services.NewTokenService(cfg.JWTSecret)
	gate := services.NewTicketGate(db, getEnv("CHECKOUT_URL", "https://pay.example.com"))

	// hub 和 MessageService 互相引用，先建 hub 再绑定
	hub := services.NewHub()
	notifs := services.NewNotificationService(db, hub)
	convs := services.NewConversationService(db)
	msgs := services.NewMessageService(db, convs, notifs, hub)
	hub.Bind(convs, msgs)

	conns := services.NewConnectionService(db, gate, convs, notifs, cfg.ConnectFee)

	handlers := routes.Handlers{
		Users:         &controllers.UserController{DB: db, Tokens: tokens},
		Connections:   &controllers.ConnectionController{Connections: conns},
		Chat:          &controllers.ChatController{Conversations: convs, Messages: msgs},
		Notifications: &controllers.NotificationController{Notifications: notifs},
		Payments:      &controllers.PaymentController{Gate: gate, Connections: conns, Secret: cfg.WebhookSecret},
		WS:            &controllers.WSController{Hub: hub, Tokens: tokens},
	}

	// 注册路由并启动服务
	r := routes.RegisterRoutes(db, tokens, handlers)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
