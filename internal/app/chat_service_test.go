package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"chatcoach/internal/model"
	"chatcoach/internal/repository"
)

func newTestChatService(t *testing.T) (*ChatService, *fakeSessions, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	sessions := newFakeSessions()
	svc := NewChatService(
		repository.NewChatRoomRepository(db),
		repository.NewChatMessageRepository(db),
		repository.NewUserRepository(db),
		sessions,
	)
	return svc, sessions, db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "x", Name: "tester"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestCreateRoomBindsSession(t *testing.T) {
	svc, sessions, db := newTestChatService(t)
	user := seedUser(t, db, "rooms@example.com")

	room, err := svc.CreateRoom(context.Background(), user.ID, 3)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.ID == 0 {
		t.Fatalf("expected persisted room id")
	}

	bound, ok := sessions.get("room_id", user.Email)
	if !ok {
		t.Fatalf("session room_id key not set")
	}
	if want := fmt.Sprintf("%d", room.ID); bound != want {
		t.Fatalf("session room_id: got %q, want %q", bound, want)
	}
}

func TestSaveMessageRejectsForeignRoom(t *testing.T) {
	svc, _, db := newTestChatService(t)
	owner := seedUser(t, db, "owner@example.com")
	intruder := seedUser(t, db, "intruder@example.com")

	room, err := svc.CreateRoom(context.Background(), owner.ID, 1)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	_, err = svc.SaveMessage(intruder.ID, room.ID, model.MessageTypeUser, "hello")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound for foreign room, got %v", err)
	}

	if _, err := svc.SaveMessage(owner.ID, room.ID, model.MessageTypeUser, "hello"); err != nil {
		t.Fatalf("owner save message: %v", err)
	}
}

func TestSaveMessageValidatesType(t *testing.T) {
	svc, _, db := newTestChatService(t)
	user := seedUser(t, db, "types@example.com")

	room, err := svc.CreateRoom(context.Background(), user.ID, 1)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := svc.SaveMessage(user.ID, room.ID, "system", "nope"); !errors.Is(err, ErrInvalidMessageType) {
		t.Fatalf("expected ErrInvalidMessageType, got %v", err)
	}
}

func TestListMessagesOrdered(t *testing.T) {
	svc, _, db := newTestChatService(t)
	user := seedUser(t, db, "history@example.com")

	room, err := svc.CreateRoom(context.Background(), user.ID, 1)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	for _, m := range []struct{ typ, content string }{
		{model.MessageTypeUser, "first"},
		{model.MessageTypeAssistant, "second"},
		{model.MessageTypeUser, "third"},
	} {
		if _, err := svc.SaveMessage(user.ID, room.ID, m.typ, m.content); err != nil {
			t.Fatalf("save %q: %v", m.content, err)
		}
	}

	messages, err := svc.ListMessages(user.ID, room.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Content != "first" || messages[2].Content != "third" {
		t.Fatalf("messages out of order: %q .. %q", messages[0].Content, messages[2].Content)
	}
}

func TestDeleteRoomRemovesMessages(t *testing.T) {
	svc, _, db := newTestChatService(t)
	user := seedUser(t, db, "cleanup@example.com")

	room, err := svc.CreateRoom(context.Background(), user.ID, 1)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := svc.SaveMessage(user.ID, room.ID, model.MessageTypeUser, "hello"); err != nil {
		t.Fatalf("save message: %v", err)
	}

	other := seedUser(t, db, "other@example.com")
	if err := svc.DeleteRoom(other.ID, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound for foreign delete, got %v", err)
	}

	if err := svc.DeleteRoom(user.ID, room.ID); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	var messageCount int64
	if err := db.Model(&model.ChatMessage{}).Where("chat_room_id = ?", room.ID).Count(&messageCount).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if messageCount != 0 {
		t.Fatalf("expected messages deleted with room, got %d", messageCount)
	}
	if _, err := svc.ListMessages(user.ID, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room gone, got %v", err)
	}
}

func TestResultRoomsAndDelete(t *testing.T) {
	svc, _, db := newTestChatService(t)
	user := seedUser(t, db, "results@example.com")

	withResult, err := svc.CreateRoom(context.Background(), user.ID, 1)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := svc.CreateRoom(context.Background(), user.ID, 2); err != nil {
		t.Fatalf("create second room: %v", err)
	}

	if err := db.Model(&model.ChatRoom{}).
		Where("id = ?", withResult.ID).
		Update("result", "잘 하셨어요").Error; err != nil {
		t.Fatalf("seed result: %v", err)
	}

	rooms, err := svc.ResultRooms(user.ID)
	if err != nil {
		t.Fatalf("result rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != withResult.ID {
		t.Fatalf("expected only room %d with result, got %v", withResult.ID, rooms)
	}

	detail, err := svc.ResultDetailByRoom(user.ID, withResult.ID)
	if err != nil {
		t.Fatalf("result detail: %v", err)
	}
	if detail.Result != "잘 하셨어요" || detail.Name != "tester" {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	if err := svc.DeleteResult(user.ID, withResult.ID); err != nil {
		t.Fatalf("delete result: %v", err)
	}
	rooms, err = svc.ResultRooms(user.ID)
	if err != nil {
		t.Fatalf("result rooms after delete: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("expected no result rooms after delete, got %v", rooms)
	}
}
