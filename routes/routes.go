package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"letter-connect/controllers"
	"letter-connect/middlewares"
	"letter-connect/services"
)

// Handlers 路由依赖的所有 controller
type Handlers struct {
	Users         *controllers.UserController
	Connections   *controllers.ConnectionController
	Chat          *controllers.ChatController
	Notifications *controllers.NotificationController
	Payments      *controllers.PaymentController
	WS            *controllers.WSController
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(db *gorm.DB, tokens *services.TokenService, h Handlers) *gin.Engine {
	r := gin.Default()

	// 配置跨域中间件
	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	r.Use(cors.New(corsConfig))

	r.GET("/ws", h.WS.Handle)

	api := r.Group("/api")

	api.POST("/register", h.Users.Register)
	api.POST("/login", h.Users.Login)

	// 支付网关回调不走用户鉴权
	api.POST("/payments/webhook", h.Payments.Webhook)

	protected := api.Group("")
	protected.Use(middlewares.TokenAuthMiddleware(db, tokens))
	{
		protected.GET("/userinfo", h.Users.GetUserInfo)
		protected.GET("/connections/users", h.Users.ListUsers)

		protected.POST("/connections/requests", h.Connections.CreateRequest)
		protected.GET("/connections/requests", h.Connections.ListRequests)
		protected.PUT("/connections/requests/:request_id/respond", h.Connections.RespondToRequest)

		protected.GET("/chat/conversations", h.Chat.GetConversations)
		protected.GET("/chat/conversations/:conversation_id/messages", h.Chat.GetMessages)
		protected.POST("/chat/conversations/:conversation_id/messages", h.Chat.SendMessage)
		protected.PUT("/chat/conversations/:conversation_id/read", h.Chat.MarkConversationRead)

		protected.GET("/notifications", h.Notifications.List)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllRead)
		protected.PUT("/notifications/:notification_id/read", h.Notifications.MarkRead)
		protected.DELETE("/notifications/:notification_id", h.Notifications.Delete)

		protected.GET("/payments", h.Payments.ListPayments)
		protected.GET("/payments/request/:request_id/status", h.Payments.RequestPaymentStatus)
	}

	return r
}
