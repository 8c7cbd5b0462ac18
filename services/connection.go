package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"letter-connect/errs"
	"letter-connect/models"
)

// 请求留言长度上限
const maxRequestMessage = 500

// ConnectionService 连接请求台账：状态机 pending → accepted|rejected，
// 外加票据/支付门槛。所有状态迁移都是带条件的单行更新
type ConnectionService struct {
	db     *gorm.DB
	gate   PaymentGate
	convs  *ConversationService
	notifs *NotificationService
	fee    int64
}

func NewConnectionService(db *gorm.DB, gate PaymentGate, convs *ConversationService, notifs *NotificationService, fee int64) *ConnectionService {
	return &ConnectionService{db: db, gate: gate, convs: convs, notifs: notifs, fee: fee}
}

// CreateRequest 发起连接请求。有票据就原子扣一张并立即可见，
// 没有票据则走支付通道，返回收银台链接，支付完成回调后才通知对方
func (s *ConnectionService) CreateRequest(senderID, receiverID uint, message string) (*models.ConnectionRequest, string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, "", errs.Validation("message is required")
	}
	if len([]rune(message)) > maxRequestMessage {
		return nil, "", errs.Validation("message exceeds %d characters", maxRequestMessage)
	}
	if senderID == receiverID {
		return nil, "", errs.Validation("cannot send a connection request to yourself")
	}

	var receiver models.User
	if err := s.db.First(&receiver, receiverID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", errs.NotFound("receiver %d not found", receiverID)
		}
		return nil, "", err
	}

	// 同一有序对之间还有未终结的请求时拒绝重复发起
	var pending int64
	err := s.db.Model(&models.ConnectionRequest{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, models.RequestPending).
		Count(&pending).Error
	if err != nil {
		return nil, "", err
	}
	if pending > 0 {
		return nil, "", errs.Conflict("a pending request to this user already exists")
	}

	// pending_key 上的唯一索引兜底并发的重复发起，终态迁移时清空
	pendingKey := fmt.Sprintf("%d:%d", senderID, receiverID)
	req := models.ConnectionRequest{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    message,
		PendingKey: &pendingKey,
	}

	consumed, err := s.gate.ConsumeTicket(senderID)
	if err != nil {
		return nil, "", err
	}
	if consumed {
		req.IsPaid = true
		if err := s.db.Create(&req).Error; err != nil {
			// 落库失败把票据还回去，窗口期内余额短暂不一致可以接受
			_ = s.gate.GrantTicket(senderID)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, "", errs.Conflict("a pending request to this user already exists")
			}
			return nil, "", err
		}
		s.notifyRequestCreated(&req)
		return &req, "", nil
	}

	// 支付通道：先开支付单再落库，网关不可用时请求完全不创建
	payment, link, err := s.gate.InitiatePayment(senderID, s.fee, req.ID)
	if err != nil {
		return nil, "", err
	}
	req.PaymentRef = &payment.ID
	if err := s.db.Create(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", errs.Conflict("a pending request to this user already exists")
		}
		return nil, "", err
	}
	return &req, link, nil
}

// OnPaymentCompleted 支付回调：把请求翻到已支付并通知对方。
// 条件更新保证重复回调只通知一次
func (s *ConnectionService) OnPaymentCompleted(payment *models.Payment) (*models.ConnectionRequest, error) {
	res := s.db.Model(&models.ConnectionRequest{}).
		Where("id = ? AND is_paid = ?", payment.RequestID, false).
		Update("is_paid", true)
	if res.Error != nil {
		return nil, res.Error
	}

	var req models.ConnectionRequest
	if err := s.db.First(&req, "id = ?", payment.RequestID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("request %s not found", payment.RequestID)
		}
		return nil, err
	}
	if res.RowsAffected == 1 {
		s.notifyRequestCreated(&req)
	}
	return &req, nil
}

// RespondToRequest 接收方对请求作出唯一一次终态决定
func (s *ConnectionService) RespondToRequest(requestID string, responderID uint, decision, rejectionReason string) (*models.ConnectionRequest, error) {
	if decision != models.RequestAccepted && decision != models.RequestRejected {
		return nil, errs.Validation("status must be accepted or rejected")
	}
	rejectionReason = strings.TrimSpace(rejectionReason)
	if decision == models.RequestRejected && rejectionReason == "" {
		return nil, errs.Validation("rejection reason is required")
	}

	var req models.ConnectionRequest
	if err := s.db.First(&req, "id = ?", requestID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("request %s not found", requestID)
		}
		return nil, err
	}
	// 未支付的请求对接收方不可见
	if !req.IsPaid {
		return nil, errs.NotFound("request %s not found", requestID)
	}
	if req.ReceiverID != responderID {
		return nil, errs.Forbidden("only the receiver can respond to this request")
	}

	// check-and-set：只有仍处于 pending 的行会被更新，
	// 两个并发的响应最多一个成功
	now := time.Now()
	updates := map[string]interface{}{
		"status":       decision,
		"responded_at": &now,
		"pending_key":  nil,
	}
	if decision == models.RequestRejected {
		updates["rejection_reason"] = rejectionReason
	}

	// 终态迁移和它带来的落库动作在同一个事务里：
	// 接受时会话建不出来、拒绝时票据补不回去，状态都回滚到 pending，接收方可以重试
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ConnectionRequest{}).
			Where("id = ? AND status = ?", requestID, models.RequestPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.Conflict("request has already been responded to")
		}
		if decision == models.RequestAccepted {
			_, err := s.convs.createForRequest(tx, &req)
			return err
		}
		// 拒绝补偿：给发起人补一张票据
		return s.gate.GrantTicketTx(tx, req.SenderID)
	})
	if err != nil {
		return nil, err
	}

	req.Status = decision
	req.RespondedAt = &now

	// 通知和广播在提交之后，尽力而为
	relID, relType := req.ID, models.RelatedConnectionRequest
	if decision == models.RequestAccepted {
		status := models.RequestAccepted
		_, _ = s.notifs.Notify(req.SenderID, models.NotifyRequestAccepted,
			"Connection request accepted",
			"Your connection request has been accepted. You can start chatting now.",
			&relID, &relType, &status)
	} else {
		req.RejectionReason = &rejectionReason
		status := models.RequestRejected
		_, _ = s.notifs.Notify(req.SenderID, models.NotifyRequestRejected,
			"Connection request rejected",
			fmt.Sprintf("Your connection request was rejected: %s", rejectionReason),
			&relID, &relType, &status)
	}
	_ = s.notifs.SyncRelatedStatus(req.ID, models.RelatedConnectionRequest, decision)

	return &req, nil
}

// ListForUser 按方向列出请求。received 只包含已支付的（未支付的对接收方不可见）
func (s *ConnectionService) ListForUser(userID uint, direction string) ([]models.ConnectionRequest, error) {
	requests := []models.ConnectionRequest{}
	q := s.db.Order("created_at DESC")
	switch direction {
	case "sent":
		q = q.Where("sender_id = ?", userID)
	case "received":
		q = q.Where("receiver_id = ? AND is_paid = ?", userID, true)
	default:
		return nil, errs.Validation("direction must be sent or received")
	}
	if err := q.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Get 按 ID 读取请求
func (s *ConnectionService) Get(requestID string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := s.db.First(&req, "id = ?", requestID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("request %s not found", requestID)
		}
		return nil, err
	}
	return &req, nil
}

func (s *ConnectionService) notifyRequestCreated(req *models.ConnectionRequest) {
	relID, relType := req.ID, models.RelatedConnectionRequest
	status := models.RequestPending
	_, _ = s.notifs.Notify(req.ReceiverID, models.NotifyConnectionRequest,
		"New connection request",
		req.Message,
		&relID, &relType, &status)
}
