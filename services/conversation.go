package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"letter-connect/errs"
	"letter-connect/models"
)

// ConversationService 会话注册表：保证一个被接受的连接请求恰好对应一个会话
type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// CreateForRequest 为被接受的请求创建会话。幂等：request_id 上有唯一索引，
// 并发或重复触发时 insert-if-absent，所有调用方拿到同一个会话
func (s *ConversationService) CreateForRequest(req *models.ConnectionRequest) (*models.Conversation, error) {
	return s.createForRequest(s.db, req)
}

// createForRequest 同上，但在调用方给定的事务/连接里执行
func (s *ConversationService) createForRequest(db *gorm.DB, req *models.ConnectionRequest) (*models.Conversation, error) {
	conv := models.Conversation{
		ID:           uuid.New().String(),
		RequestID:    req.ID,
		ParticipantA: req.SenderID,
		ParticipantB: req.ReceiverID,
		IsActive:     true,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(&conv).Error
	if err != nil {
		return nil, err
	}
	// 重新按 request_id 读取，冲突时拿到的是先插入的那一行
	var existing models.Conversation
	if err := db.First(&existing, "request_id = ?", req.ID).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// ListForUser 用户的会话列表，最近活跃的排前面
func (s *ConversationService) ListForUser(userID uint) ([]models.Conversation, error) {
	conversations := []models.Conversation{}
	err := s.db.
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// Get 按 ID 读取会话
func (s *ConversationService) Get(conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.First(&conv, "id = ?", conversationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("conversation %s not found", conversationID)
		}
		return nil, err
	}
	return &conv, nil
}

// IsParticipant 用于消息发送和房间加入的授权检查
func (s *ConversationService) IsParticipant(conversationID string, userID uint) (bool, error) {
	conv, err := s.Get(conversationID)
	if err != nil {
		if errs.Is(err, errs.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return conv.HasParticipant(userID), nil
}
