package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-connect/middlewares"
	"letter-connect/services"
	"letter-connect/utils"
)

// ChatController 会话与消息接口
type ChatController struct {
	Conversations *services.ConversationService
	Messages      *services.MessageService
}

// 会话列表，最近活跃的排前面，带最后一条消息快照
func (h *ChatController) GetConversations(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	conversations, err := h.Conversations.ListForUser(user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	// 只返回对当前用户有意义的形状：对方是谁、最后一条消息
	formatted := make([]gin.H, 0, len(conversations))
	for _, conv := range conversations {
		formatted = append(formatted, gin.H{
			"id":           conv.ID,
			"request_id":   conv.RequestID,
			"peer_id":      conv.PeerOf(user.ID),
			"is_active":    conv.IsActive,
			"last_message": conv.LastMessage,
			"created_at":   conv.CreatedAt,
			"updated_at":   conv.UpdatedAt,
		})
	}
	utils.RespondSuccess(c, gin.H{"conversations": formatted}, nil)
}

// 分页拉取会话消息，时间升序
func (h *ChatController) GetMessages(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	messages, total, totalPages, err := h.Messages.ListForConversation(c.Param("conversation_id"), user.ID, page, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"messages": messages}, gin.H{
		"page":        page,
		"total":       total,
		"total_pages": totalPages,
	})
}

// 发送消息
func (h *ChatController) SendMessage(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Messages.Append(c.Param("conversation_id"), user.ID, input.Content)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"message": msg}, nil)
}

// 把会话里对方发来的消息全部标记已读
func (h *ChatController) MarkConversationRead(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	count, err := h.Messages.MarkRead(c.Param("conversation_id"), user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"updated_count": count}, nil)
}
