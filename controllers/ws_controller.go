package controllers

import (
	"github.com/gin-gonic/gin"

	"letter-connect/services"
)

// WSController 实时通道入口
type WSController struct {
	Hub    *services.Hub
	Tokens *services.TokenService
}

func (h *WSController) Handle(ctx *gin.Context) {
	services.HandleWebSocket(h.Hub, h.Tokens, ctx)
}
