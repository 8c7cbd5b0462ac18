package services

import (
	"testing"

	"letter-connect/errs"
	"letter-connect/models"
)

func TestCreateForRequestIdempotent(t *testing.T) {
	db, _, _, _, convs, _, _ := newTestStack(t)
	a := createUser(t, db, "an", 0)
	b := createUser(t, db, "binh", 0)

	req := &models.ConnectionRequest{
		ID:         "req-1",
		SenderID:   a.ID,
		ReceiverID: b.ID,
		Message:    "hi",
		Status:     models.RequestAccepted,
		IsPaid:     true,
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatal(err)
	}

	first, err := convs.CreateForRequest(req)
	if err != nil {
		t.Fatalf("CreateForRequest: %v", err)
	}

	// 重复触发若干次，拿到的都是同一个会话，表里只有一行
	for i := 0; i < 5; i++ {
		again, err := convs.CreateForRequest(req)
		if err != nil {
			t.Fatalf("CreateForRequest #%d: %v", i, err)
		}
		if again.ID != first.ID {
			t.Fatalf("got a different conversation %s on trigger %d", again.ID, i)
		}
	}
	var count int64
	db.Model(&models.Conversation{}).Where("request_id = ?", req.ID).Count(&count)
	if count != 1 {
		t.Errorf("conversations for request = %d, want 1", count)
	}
}

func TestListForUserMostRecentFirst(t *testing.T) {
	db, _, _, conns, convs, msgs, _ := newTestStack(t)
	a := createUser(t, db, "an", 2)
	b := createUser(t, db, "binh", 0)
	c := createUser(t, db, "chi", 0)

	reqB, _, err := conns.CreateRequest(a.ID, b.ID, "hi b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conns.RespondToRequest(reqB.ID, b.ID, models.RequestAccepted, ""); err != nil {
		t.Fatal(err)
	}
	reqC, _, err := conns.CreateRequest(a.ID, c.ID, "hi c")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conns.RespondToRequest(reqC.ID, c.ID, models.RequestAccepted, ""); err != nil {
		t.Fatal(err)
	}

	// 给较早的会话发消息，它应当排到最前面
	var convB models.Conversation
	if err := db.First(&convB, "request_id = ?", reqB.ID).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.Append(convB.ID, a.ID, "xin chào"); err != nil {
		t.Fatal(err)
	}

	list, err := convs.ListForUser(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("conversations = %d, want 2", len(list))
	}
	if list[0].ID != convB.ID {
		t.Errorf("most recently active conversation not first")
	}
	if list[0].LastMessage.Content != "xin chào" {
		t.Errorf("snapshot = %+v", list[0].LastMessage)
	}

	// b 只看到自己的那个会话
	listB, err := convs.ListForUser(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listB) != 1 || listB[0].ID != convB.ID {
		t.Errorf("listB = %+v", listB)
	}
}

func TestGetAndIsParticipant(t *testing.T) {
	db, _, _, _, convs, _, _ := newTestStack(t)
	a := createUser(t, db, "an", 0)
	b := createUser(t, db, "binh", 0)
	stranger := createUser(t, db, "chi", 0)

	req := &models.ConnectionRequest{ID: "req-1", SenderID: a.ID, ReceiverID: b.ID, Status: models.RequestAccepted, IsPaid: true}
	if err := db.Create(req).Error; err != nil {
		t.Fatal(err)
	}
	conv, err := convs.CreateForRequest(req)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := convs.Get("missing"); !errs.Is(err, errs.CodeNotFound) {
		t.Errorf("Get missing err = %v", err)
	}

	for _, tc := range []struct {
		userID uint
		want   bool
	}{
		{a.ID, true},
		{b.ID, true},
		{stranger.ID, false},
	} {
		got, err := convs.IsParticipant(conv.ID, tc.userID)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("IsParticipant(%d) = %v, want %v", tc.userID, got, tc.want)
		}
	}

	// 会话不存在时返回 false 而不是错误，供房间加入检查使用
	ok, err := convs.IsParticipant("missing", a.ID)
	if err != nil || ok {
		t.Errorf("IsParticipant on missing conversation = (%v, %v)", ok, err)
	}

	if conv.PeerOf(a.ID) != b.ID || conv.PeerOf(b.ID) != a.ID {
		t.Error("PeerOf wrong")
	}
}
