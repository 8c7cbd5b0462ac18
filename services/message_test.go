package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"letter-connect/errs"
	"letter-connect/models"
)

// 建好一对用户和一个活跃会话
func setupConversation(t *testing.T, db *gorm.DB, conns *ConnectionService) (*models.User, *models.User, *models.Conversation) {
	t.Helper()
	a := createUser(t, db, fmt.Sprintf("an-%d", time.Now().UnixNano()), 1)
	b := createUser(t, db, fmt.Sprintf("binh-%d", time.Now().UnixNano()), 0)
	req, _, err := conns.CreateRequest(a.ID, b.ID, "hi")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := conns.RespondToRequest(req.ID, b.ID, models.RequestAccepted, ""); err != nil {
		t.Fatalf("RespondToRequest: %v", err)
	}
	var conv models.Conversation
	if err := db.First(&conv, "request_id = ?", req.ID).Error; err != nil {
		t.Fatalf("conversation missing: %v", err)
	}
	return a, b, &conv
}

func TestAppendBroadcastAfterPersist(t *testing.T) {
	db, rt, _, conns, _, msgs, _ := newTestStack(t)
	a, _, conv := setupConversation(t, db, conns)

	// 广播回调时消息必须已经能从存储读到
	var visibleAtBroadcast bool
	rt.onMessage = func(m *models.Message) {
		var stored models.Message
		visibleAtBroadcast = db.First(&stored, m.ID).Error == nil
	}

	msg, err := msgs.Append(conv.ID, a.ID, "Cảm ơn bạn")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(rt.messages) != 1 || rt.messages[0].ID != msg.ID {
		t.Fatalf("broadcasts = %+v", rt.messages)
	}
	if !visibleAtBroadcast {
		t.Error("message was broadcast before it was durably stored")
	}
	if msg.IsRead {
		t.Error("new message should start unread")
	}
}

func TestAppendUpdatesSnapshotAndNotifiesAbsentPeer(t *testing.T) {
	db, rt, _, conns, _, msgs, _ := newTestStack(t)
	a, b, conv := setupConversation(t, db, conns)

	if _, err := msgs.Append(conv.ID, a.ID, "Cảm ơn bạn"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var updated models.Conversation
	if err := db.First(&updated, "id = ?", conv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.LastMessage.Content != "Cảm ơn bạn" || updated.LastMessage.SenderID != a.ID {
		t.Errorf("snapshot = %+v", updated.LastMessage)
	}
	if updated.LastMessage.IsRead {
		t.Error("snapshot should start unread")
	}
	if !updated.UpdatedAt.After(conv.UpdatedAt) {
		t.Error("updated_at not bumped")
	}

	// 对方不在房间，收到 new_message 通知
	var n models.Notification
	if err := db.First(&n, "recipient_id = ? AND type = ?", b.ID, models.NotifyNewMessage).Error; err != nil {
		t.Fatalf("peer notification missing: %v", err)
	}

	// 对方进了房间就不再发收件箱通知
	rt.setInRoom(conv.ID, b.ID)
	if _, err := msgs.Append(conv.ID, a.ID, "còn đó không?"); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.Model(&models.Notification{}).Where("recipient_id = ? AND type = ?", b.ID, models.NotifyNewMessage).Count(&count)
	if count != 1 {
		t.Errorf("in-room peer still notified, count = %d", count)
	}
}

func TestAppendValidation(t *testing.T) {
	db, _, _, conns, _, msgs, _ := newTestStack(t)
	a, _, conv := setupConversation(t, db, conns)
	stranger := createUser(t, db, "chi", 0)

	if _, err := msgs.Append(conv.ID, a.ID, "   "); !errs.Is(err, errs.CodeValidation) {
		t.Errorf("empty content err = %v", err)
	}
	if _, err := msgs.Append(conv.ID, a.ID, strings.Repeat("x", 2001)); !errs.Is(err, errs.CodeValidation) {
		t.Errorf("oversize content err = %v", err)
	}
	if _, err := msgs.Append(conv.ID, stranger.ID, "hi"); !errs.Is(err, errs.CodeForbidden) {
		t.Errorf("non-participant err = %v", err)
	}
	if _, err := msgs.Append("missing", a.ID, "hi"); !errs.Is(err, errs.CodeNotFound) {
		t.Errorf("missing conversation err = %v", err)
	}

	// 已关闭的会话拒绝新消息
	if err := db.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.Append(conv.ID, a.ID, "hi"); !errs.Is(err, errs.CodeConflict) {
		t.Errorf("closed conversation err = %v", err)
	}
}

func TestListForConversationOrderAndPaging(t *testing.T) {
	db, _, _, conns, _, msgs, _ := newTestStack(t)
	a, b, conv := setupConversation(t, db, conns)

	for i := 0; i < 5; i++ {
		sender := a.ID
		if i%2 == 1 {
			sender = b.ID
		}
		if _, err := msgs.Append(conv.ID, sender, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	page1, total, totalPages, err := msgs.ListForConversation(conv.ID, a.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListForConversation: %v", err)
	}
	if total != 5 || totalPages != 3 {
		t.Errorf("total=%d totalPages=%d, want 5/3", total, totalPages)
	}
	if len(page1) != 2 || page1[0].Content != "msg 0" || page1[1].Content != "msg 1" {
		t.Errorf("page1 = %+v", page1)
	}

	page3, _, _, err := msgs.ListForConversation(conv.ID, a.ID, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3) != 1 || page3[0].Content != "msg 4" {
		t.Errorf("page3 = %+v", page3)
	}

	// 升序且 created_at 相同按插入顺序（ID 递增）
	all, _, _, err := msgs.ListForConversation(conv.ID, a.ID, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Errorf("createdAt out of order at %d", i)
		}
		if all[i].ID <= all[i-1].ID {
			t.Errorf("id out of order at %d", i)
		}
	}

	// 非参与者不能拉消息
	stranger := createUser(t, db, "chi", 0)
	if _, _, _, err := msgs.ListForConversation(conv.ID, stranger.ID, 1, 10); !errs.Is(err, errs.CodeForbidden) {
		t.Errorf("stranger list err = %v", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	db, rt, _, conns, _, msgs, _ := newTestStack(t)
	a, b, conv := setupConversation(t, db, conns)

	for i := 0; i < 3; i++ {
		if _, err := msgs.Append(conv.ID, a.ID, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatal(err)
		}
	}
	// b 自己发的消息不在标记范围内
	if _, err := msgs.Append(conv.ID, b.ID, "reply"); err != nil {
		t.Fatal(err)
	}

	count, err := msgs.MarkRead(conv.ID, b.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if count != 3 {
		t.Errorf("first MarkRead = %d, want 3", count)
	}
	if len(rt.reads) != 3 {
		t.Errorf("read receipts = %d, want 3", len(rt.reads))
	}
	for _, r := range rt.reads {
		if r.ReadBy != b.ID {
			t.Errorf("receipt readBy = %d", r.ReadBy)
		}
	}

	// 第二次是空操作
	count, err = msgs.MarkRead(conv.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("second MarkRead = %d, want 0", count)
	}

	// 已读状态单调：没有消息被翻回未读
	var unread int64
	db.Model(&models.Message{}).Where("conversation_id = ? AND sender_id = ? AND is_read = ?", conv.ID, a.ID, false).Count(&unread)
	if unread != 0 {
		t.Errorf("unread after MarkRead = %d", unread)
	}

	// a 标记时只翻 b 发的那条
	count, err = msgs.MarkRead(conv.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("a MarkRead = %d, want 1", count)
	}
}

func TestMarkReadUpdatesSnapshot(t *testing.T) {
	db, _, _, conns, _, msgs, _ := newTestStack(t)
	a, b, conv := setupConversation(t, db, conns)

	if _, err := msgs.Append(conv.ID, a.ID, "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.MarkRead(conv.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	var updated models.Conversation
	if err := db.First(&updated, "id = ?", conv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !updated.LastMessage.IsRead {
		t.Error("snapshot is_read not flipped by MarkRead")
	}
}

func TestMarkMessageReadSingle(t *testing.T) {
	db, rt, _, conns, _, msgs, _ := newTestStack(t)
	a, b, conv := setupConversation(t, db, conns)

	msg, err := msgs.Append(conv.ID, a.ID, "hi")
	if err != nil {
		t.Fatal(err)
	}

	if err := msgs.MarkMessageRead(conv.ID, msg.ID, b.ID); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	var stored models.Message
	if err := db.First(&stored, msg.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !stored.IsRead {
		t.Error("message not marked read")
	}
	if len(rt.reads) != 1 || rt.reads[0].MessageID != msg.ID || rt.reads[0].ReadBy != b.ID {
		t.Errorf("receipts = %+v", rt.reads)
	}

	// 重复标记是空操作，不再广播
	if err := msgs.MarkMessageRead(conv.ID, msg.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if len(rt.reads) != 1 {
		t.Errorf("duplicate mark broadcast again, receipts = %d", len(rt.reads))
	}

	// 发送者不能把自己的消息标成已读
	msg2, err := msgs.Append(conv.ID, a.ID, "hello?")
	if err != nil {
		t.Fatal(err)
	}
	if err := msgs.MarkMessageRead(conv.ID, msg2.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	var stored2 models.Message
	if err := db.First(&stored2, msg2.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored2.IsRead {
		t.Error("sender marked own message as read")
	}
}

func TestMarkMessageReadUpdatesSnapshot(t *testing.T) {
	db, _, _, conns, _, msgs, _ := newTestStack(t)
	a, b, conv := setupConversation(t, db, conns)

	msg1, err := msgs.Append(conv.ID, a.ID, "hi")
	if err != nil {
		t.Fatal(err)
	}
	msg2, err := msgs.Append(conv.ID, a.ID, "còn đó không?")
	if err != nil {
		t.Fatal(err)
	}

	// 读旧消息不动快照，后面还有未读的新消息
	if err := msgs.MarkMessageRead(conv.ID, msg1.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	var updated models.Conversation
	if err := db.First(&updated, "id = ?", conv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.LastMessage.IsRead {
		t.Error("snapshot flipped while the latest message is still unread")
	}

	// 读到最新一条时快照跟着翻，会话列表不再显示未读
	if err := msgs.MarkMessageRead(conv.ID, msg2.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.First(&updated, "id = ?", conv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !updated.LastMessage.IsRead {
		t.Error("snapshot is_read not flipped by single-message read")
	}
}
