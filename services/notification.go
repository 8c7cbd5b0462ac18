package services

import (
	"gorm.io/gorm"

	"letter-connect/errs"
	"letter-connect/models"
)

// NotificationService 通知分发：先落库，再尽力实时推送
type NotificationService struct {
	db *gorm.DB
	rt Broadcaster
}

func NewNotificationService(db *gorm.DB, rt Broadcaster) *NotificationService {
	return &NotificationService{db: db, rt: rt}
}

// Notify 创建通知。落库成功即成功，实时推送失败只会留在收件箱里等拉取
func (s *NotificationService) Notify(recipientID uint, typ, title, content string, relatedID, relatedType, relatedStatus *string) (*models.Notification, error) {
	n := models.Notification{
		RecipientID:   recipientID,
		Type:          typ,
		Title:         title,
		Content:       content,
		RelatedID:     relatedID,
		RelatedType:   relatedType,
		RelatedStatus: relatedStatus,
	}
	if err := s.db.Create(&n).Error; err != nil {
		return nil, err
	}
	if s.rt != nil {
		s.rt.PushNewNotification(&n)
	}
	return &n, nil
}

// List 分页列出通知，附带未读数
func (s *NotificationService) List(userID uint, page, limit int) ([]models.Notification, int64, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.db.Model(&models.Notification{}).Where("recipient_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, 0, err
	}
	var unread int64
	if err := s.db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", userID, false).Count(&unread).Error; err != nil {
		return nil, 0, 0, err
	}

	notifications := []models.Notification{}
	err := s.db.
		Where("recipient_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, 0, err
	}
	return notifications, total, unread, nil
}

// MarkRead 单条标记已读，只有收件人本人可以操作，重复标记不报错
func (s *NotificationService) MarkRead(notificationID, byUserID uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.First(&n, notificationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFound("notification %d not found", notificationID)
		}
		return nil, err
	}
	if n.RecipientID != byUserID {
		return nil, errs.Forbidden("notification belongs to another user")
	}
	if n.IsRead {
		return &n, nil
	}
	if err := s.db.Model(&n).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	return &n, nil
}

// MarkAllRead 全部标记已读，返回本次更新的条数
func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	res := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Delete 收件人删除自己的通知
func (s *NotificationService) Delete(notificationID, byUserID uint) error {
	var n models.Notification
	if err := s.db.First(&n, notificationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errs.NotFound("notification %d not found", notificationID)
		}
		return err
	}
	if n.RecipientID != byUserID {
		return errs.Forbidden("notification belongs to another user")
	}
	return s.db.Delete(&n).Error
}

// SyncRelatedStatus 请求进入终态后刷新引用它的通知上的冗余状态，
// 收件箱不用再查请求表就知道按钮还能不能点
func (s *NotificationService) SyncRelatedStatus(relatedID, relatedType, status string) error {
	return s.db.Model(&models.Notification{}).
		Where("related_id = ? AND related_type = ?", relatedID, relatedType).
		Update("related_status", status).Error
}
