package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"letter-connect/errs"
	"letter-connect/middlewares"
	"letter-connect/services"
	"letter-connect/utils"
)

// NotificationController 通知收件箱接口
type NotificationController struct {
	Notifications *services.NotificationService
}

// 通知列表，分页，带未读数
func (h *NotificationController) List(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	notifications, total, unread, err := h.Notifications.List(user.ID, page, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	utils.RespondSuccess(c, gin.H{"notifications": notifications}, gin.H{
		"page":        page,
		"total":       total,
		"total_pages": totalPages,
		"unread":      unread,
	})
}

// 单条标记已读
func (h *NotificationController) MarkRead(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	id, err := notificationID(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	n, err := h.Notifications.MarkRead(id, user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"notification": n}, nil)
}

// 全部标记已读
func (h *NotificationController) MarkAllRead(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	count, err := h.Notifications.MarkAllRead(user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"count": count}, nil)
}

// 删除自己的通知
func (h *NotificationController) Delete(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	id, err := notificationID(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if err := h.Notifications.Delete(id, user.ID); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{}, nil)
}

func notificationID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("notification_id"), 10, 64)
	if err != nil {
		return 0, errs.Validation("invalid notification id")
	}
	return uint(id), nil
}
