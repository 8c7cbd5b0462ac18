package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-connect/middlewares"
	"letter-connect/services"
	"letter-connect/utils"
)

// ConnectionController 连接请求接口
type ConnectionController struct {
	Connections *services.ConnectionService
}

// 发起连接请求。有票据直接扣，没有票据返回支付链接
func (h *ConnectionController) CreateRequest(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input struct {
		ReceiverID uint   `json:"receiver_id" binding:"required"`
		Message    string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, paymentLink, err := h.Connections.CreateRequest(user.ID, input.ReceiverID, input.Message)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	data := gin.H{"request": req}
	if paymentLink != "" {
		data["payment_link"] = paymentLink
	}
	utils.RespondSuccess(c, data, nil)
}

// 我的请求列表，direction=sent|received
func (h *ConnectionController) ListRequests(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	requests, err := h.Connections.ListForUser(user.ID, c.DefaultQuery("direction", "received"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"requests": requests}, nil)
}

// 接受或拒绝请求，拒绝必须带原因
func (h *ConnectionController) RespondToRequest(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input struct {
		Status          string `json:"status" binding:"required"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Connections.RespondToRequest(c.Param("request_id"), user.ID, input.Status, input.RejectionReason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"request": req}, nil)
}
