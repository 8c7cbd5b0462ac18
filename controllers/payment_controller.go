package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-connect/middlewares"
	"letter-connect/services"
	"letter-connect/utils"
)

// PaymentController 支付回调和支付查询接口
type PaymentController struct {
	Gate        *services.TicketGate
	Connections *services.ConnectionService
	Secret      string // 网关回调签名的共享密钥，空则不校验
}

// 支付网关的完成回调。幂等：重复回调只会把请求翻到已支付一次。
// 配置了密钥时要求 X-Signature: hex(HMAC-SHA256(body))
func (h *PaymentController) Webhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Secret != "" {
		mac := hmac.New(sha256.New, []byte(h.Secret))
		mac.Write(raw)
		want := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(want), []byte(c.GetHeader("X-Signature"))) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var input struct {
		PaymentID    string          `json:"payment_id"`
		ProviderData json.RawMessage `json:"provider_data"`
	}
	if err := json.Unmarshal(raw, &input); err != nil || input.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_id is required"})
		return
	}

	payment, err := h.Gate.CompletePayment(input.PaymentID, input.ProviderData)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if _, err := h.Connections.OnPaymentCompleted(payment); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{}, nil)
}

// 我的支付记录
func (h *PaymentController) ListPayments(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	payments, total, err := h.Gate.ListPayments(user.ID, page, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"payments": payments}, gin.H{"page": page, "total": total})
}

// 轮询某个请求的支付状态（发起人等待支付完成时使用）
func (h *PaymentController) RequestPaymentStatus(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	req, err := h.Connections.Get(c.Param("request_id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if req.SenderID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your request"})
		return
	}

	payment, err := h.Gate.PaymentForRequest(req.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{
		"status":  payment.Status,
		"is_paid": req.IsPaid,
	}, nil)
}
