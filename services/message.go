package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"letter-connect/errs"
	"letter-connect/models"
)

// 消息内容长度上限
const maxMessageContent = 2000

// MessageService 消息存储：仅追加的有序消息日志加未读状态维护。
// 先落库再广播，客户端看到的消息一定已经可以从列表接口拉到
type MessageService struct {
	db     *gorm.DB
	convs  *ConversationService
	notifs *NotificationService
	rt     Broadcaster
}

func NewMessageService(db *gorm.DB, convs *ConversationService, notifs *NotificationService, rt Broadcaster) *MessageService {
	return &MessageService{db: db, convs: convs, notifs: notifs, rt: rt}
}

// Append 追加一条消息并更新会话快照。广播和离线通知都在落库之后，
// 广播失败不回滚消息
func (s *MessageService) Append(conversationID string, senderID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.Validation("message content is required")
	}
	if len([]rune(content)) > maxMessageContent {
		return nil, errs.Validation("message exceeds %d characters", maxMessageContent)
	}

	conv, err := s.convs.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, errs.Forbidden("you are not part of this conversation")
	}
	if !conv.IsActive {
		return nil, errs.Conflict("conversation is closed")
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	// 会话列表用的冗余快照
	now := time.Now()
	err = s.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_content":    msg.Content,
			"last_message_sender_id":  msg.SenderID,
			"last_message_created_at": msg.CreatedAt,
			"last_message_is_read":    false,
			"updated_at":              now,
		}).Error
	if err != nil {
		return nil, err
	}

	if s.rt != nil {
		s.rt.BroadcastNewMessage(&msg)
		// 对方正在房间里就不再发收件箱通知，避免实时+收件箱重复打扰
		peer := conv.PeerOf(senderID)
		if !s.rt.IsUserInRoom(conversationID, peer) {
			relID, relType := conversationID, models.RelatedConversation
			_, _ = s.notifs.Notify(peer, models.NotifyNewMessage,
				"New message", msg.Content, &relID, &relType, nil)
		}
	}
	return &msg, nil
}

// ListForConversation 分页拉取消息，按时间升序，同一时刻按插入顺序
func (s *MessageService) ListForConversation(conversationID string, userID uint, page, limit int) ([]models.Message, int64, int64, error) {
	conv, err := s.convs.Get(conversationID)
	if err != nil {
		return nil, 0, 0, err
	}
	if !conv.HasParticipant(userID) {
		return nil, 0, 0, errs.Forbidden("you are not part of this conversation")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var total int64
	if err := s.db.Model(&models.Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, 0, 0, err
	}

	messages := []models.Message{}
	err = s.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, 0, err
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return messages, total, totalPages, nil
}

// MarkRead 把会话里对方发来的所有未读消息标记为已读，返回更新条数。
// 幂等：第二次调用返回 0。每条消息的已读回执都会广播给房间
func (s *MessageService) MarkRead(conversationID string, readerID uint) (int64, error) {
	conv, err := s.convs.Get(conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(readerID) {
		return 0, errs.Forbidden("you are not part of this conversation")
	}

	// 先取出要翻的 ID，更新后逐条广播回执
	var ids []uint
	err = s.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.Model(&models.Message{}).
		Where("id IN ?", ids).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}

	// 最后一条消息是对方发的，快照也要跟着翻
	if conv.LastMessage.SenderID != readerID && conv.LastMessage.CreatedAt != nil {
		_ = s.db.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			UpdateColumn("last_message_is_read", true).Error
	}

	if s.rt != nil {
		for _, id := range ids {
			s.rt.BroadcastMessageRead(conversationID, id, readerID)
		}
	}
	return res.RowsAffected, nil
}

// MarkMessageRead 单条已读（实时通道的 markMessageRead 事件）
func (s *MessageService) MarkMessageRead(conversationID string, messageID, readerID uint) error {
	conv, err := s.convs.Get(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return errs.Forbidden("you are not part of this conversation")
	}

	res := s.db.Model(&models.Message{}).
		Where("id = ? AND conversation_id = ? AND sender_id <> ? AND is_read = ?", messageID, conversationID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		// 读的是会话里最新一条时，列表快照也跟着翻
		var newer int64
		err := s.db.Model(&models.Message{}).
			Where("conversation_id = ? AND id > ?", conversationID, messageID).
			Count(&newer).Error
		if err == nil && newer == 0 {
			_ = s.db.Model(&models.Conversation{}).
				Where("id = ?", conversationID).
				UpdateColumn("last_message_is_read", true).Error
		}
		if s.rt != nil {
			s.rt.BroadcastMessageRead(conversationID, messageID, readerID)
		}
	}
	return nil
}
