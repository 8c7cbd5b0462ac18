package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"letter-connect/errs"
	"letter-connect/models"
)

// PaymentGate 支付/票据网关契约。票据加减必须是原子的单行条件更新，
// 余额不会变成负数。支付完成通过回调（webhook）异步到达。
type PaymentGate interface {
	HasTicket(userID uint) (bool, error)
	ConsumeTicket(userID uint) (bool, error)
	GrantTicket(userID uint) error
	GrantTicketTx(tx *gorm.DB, userID uint) error
	InitiatePayment(userID uint, amount int64, requestID string) (*models.Payment, string, error)
}

// TicketGate 基于数据库的网关实现：票据余额存在 users 表，
// 支付单存在 payments 表，支付链接指向外部收银台
type TicketGate struct {
	db          *gorm.DB
	checkoutURL string
}

func NewTicketGate(db *gorm.DB, checkoutURL string) *TicketGate {
	return &TicketGate{db: db, checkoutURL: checkoutURL}
}

func (g *TicketGate) HasTicket(userID uint) (bool, error) {
	var user models.User
	if err := g.db.Select("ticket_balance").First(&user, userID).Error; err != nil {
		return false, errs.Dependency("ticket lookup failed: %v", err)
	}
	return user.TicketBalance > 0, nil
}

// ConsumeTicket 条件递减，余额为 0 时返回 false 而不是扣成负数
func (g *TicketGate) ConsumeTicket(userID uint) (bool, error) {
	res := g.db.Model(&models.User{}).
		Where("id = ? AND ticket_balance > 0", userID).
		UpdateColumn("ticket_balance", gorm.Expr("ticket_balance - 1"))
	if res.Error != nil {
		return false, errs.Dependency("ticket consume failed: %v", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GrantTicket 补偿票据，请求被拒绝时给原发起人加一张
func (g *TicketGate) GrantTicket(userID uint) error {
	return g.GrantTicketTx(g.db, userID)
}

// GrantTicketTx 在调用方的事务里补票据，和状态迁移一起提交或回滚
func (g *TicketGate) GrantTicketTx(tx *gorm.DB, userID uint) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("ticket_balance", gorm.Expr("ticket_balance + 1"))
	if res.Error != nil {
		return errs.Dependency("ticket grant failed: %v", res.Error)
	}
	return nil
}

// InitiatePayment 创建支付单并返回收银台链接，支付单 ID 即回调里的 purpose_ref
func (g *TicketGate) InitiatePayment(userID uint, amount int64, requestID string) (*models.Payment, string, error) {
	payment := models.Payment{
		ID:        uuid.New().String(),
		UserID:    userID,
		RequestID: requestID,
		Amount:    amount,
		Status:    models.PaymentPending,
	}
	if err := g.db.Create(&payment).Error; err != nil {
		return nil, "", errs.Dependency("payment initiation failed: %v", err)
	}
	link := fmt.Sprintf("%s/pay/%s", g.checkoutURL, payment.ID)
	return &payment, link, nil
}

// ListPayments 用户自己的支付记录，分页，最新的在前
func (g *TicketGate) ListPayments(userID uint, page, limit int) ([]models.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var total int64
	if err := g.db.Model(&models.Payment{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	payments := []models.Payment{}
	err := g.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// PaymentForRequest 某个连接请求对应的支付单
func (g *TicketGate) PaymentForRequest(requestID string) (*models.Payment, error) {
	var payment models.Payment
	if err := g.db.First(&payment, "request_id = ?", requestID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("no payment for request %s", requestID)
		}
		return nil, err
	}
	return &payment, nil
}

// CompletePayment 标记支付完成，幂等：已完成的支付单直接返回
func (g *TicketGate) CompletePayment(paymentID string, providerData []byte) (*models.Payment, error) {
	var payment models.Payment
	if err := g.db.First(&payment, "id = ?", paymentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("payment %s not found", paymentID)
		}
		return nil, err
	}
	if payment.Status == models.PaymentCompleted {
		return &payment, nil
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.PaymentCompleted,
		"completed_at": &now,
	}
	if len(providerData) > 0 {
		updates["provider_data"] = providerData
	}
	if err := g.db.Model(&payment).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
