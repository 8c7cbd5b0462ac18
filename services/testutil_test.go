package services

import (
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"letter-connect/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, tickets uint) *models.User {
	t.Helper()
	user := models.User{Username: username, Password: "x", Role: models.RoleUser, TicketBalance: tickets}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return &user
}

func ticketBalance(t *testing.T, db *gorm.DB, userID uint) uint {
	t.Helper()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user %d: %v", userID, err)
	}
	return user.TicketBalance
}

// fakeBroadcaster 记录所有推送，替代真实 hub
type fakeBroadcaster struct {
	mu            sync.Mutex
	messages      []*models.Message
	reads         []readReceipt
	notifications []*models.Notification
	inRoom        map[string]map[uint]bool

	// onMessage 在广播时回调，用于断言广播发生在落库之后
	onMessage func(msg *models.Message)
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{inRoom: make(map[string]map[uint]bool)}
}

func (f *fakeBroadcaster) BroadcastNewMessage(msg *models.Message) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	cb := f.onMessage
	f.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

func (f *fakeBroadcaster) BroadcastMessageRead(conversationID string, messageID uint, readBy uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, readReceipt{MessageID: messageID, ReadBy: readBy})
}

func (f *fakeBroadcaster) PushNewNotification(n *models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *fakeBroadcaster) IsUserInRoom(conversationID string, userID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inRoom[conversationID][userID]
}

func (f *fakeBroadcaster) setInRoom(conversationID string, userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inRoom[conversationID] == nil {
		f.inRoom[conversationID] = make(map[uint]bool)
	}
	f.inRoom[conversationID][userID] = true
}

// newTestStack 一套接好线的服务，实时层用 fake
func newTestStack(t *testing.T) (*gorm.DB, *fakeBroadcaster, *TicketGate, *ConnectionService, *ConversationService, *MessageService, *NotificationService) {
	t.Helper()
	db := newTestDB(t)
	rt := newFakeBroadcaster()
	gate := NewTicketGate(db, "https://pay.test")
	notifs := NewNotificationService(db, rt)
	convs := NewConversationService(db)
	msgs := NewMessageService(db, convs, notifs, rt)
	conns := NewConnectionService(db, gate, convs, notifs, 20000)
	return db, rt, gate, conns, convs, msgs, notifs
}
