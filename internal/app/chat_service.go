package app

import (
	"context"
	"errors"

	"chatcoach/internal/model"
	"chatcoach/internal/repository"
)

var (
	ErrRoomNotFound       = errors.New("chat room not found")
	ErrInvalidMessageType = errors.New("message type must be user or assistant")
)

// RoomSessionCache records which room the user's current session is
// bound to, so the final-result flow knows where to persist.
type RoomSessionCache interface {
	SetRoomID(ctx context.Context, email string, roomID uint) error
}

type ChatService struct {
	roomRepo    *repository.ChatRoomRepository
	messageRepo *repository.ChatMessageRepository
	userRepo    *repository.UserRepository
	sessions    RoomSessionCache
}

func NewChatService(
	roomRepo *repository.ChatRoomRepository,
	messageRepo *repository.ChatMessageRepository,
	userRepo *repository.UserRepository,
	sessions RoomSessionCache,
) *ChatService {
	return &ChatService{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		sessions:    sessions,
	}
}

// CreateRoom opens a conversation session with a character and binds
// the caller's session to the new room.
func (s *ChatService) CreateRoom(ctx context.Context, userID, characterID uint) (*model.ChatRoom, error) {
	if userID == 0 || characterID == 0 {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	room := &model.ChatRoom{
		UserID:      userID,
		CharacterID: characterID,
	}
	if err := s.roomRepo.Create(room); err != nil {
		return nil, err
	}
	if err := s.sessions.SetRoomID(ctx, user.Email, room.ID); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *ChatService) SaveMessage(userID, roomID uint, messageType, content string) (*model.ChatMessage, error) {
	if userID == 0 || roomID == 0 || content == "" {
		return nil, ErrInvalidInput
	}
	if !model.ValidMessageType(messageType) {
		return nil, ErrInvalidMessageType
	}

	room, err := s.roomRepo.GetByIDAndUserID(roomID, userID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	message := &model.ChatMessage{
		ChatRoomID: roomID,
		Type:       messageType,
		Content:    content,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *ChatService) ListRooms(userID uint) ([]model.ChatRoom, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.roomRepo.ListByUserID(userID)
}

func (s *ChatService) ListMessages(userID, roomID uint) ([]model.ChatMessage, error) {
	if userID == 0 || roomID == 0 {
		return nil, ErrInvalidInput
	}

	room, err := s.roomRepo.GetByIDAndUserID(roomID, userID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return s.messageRepo.ListByRoomID(roomID)
}

// ResultRooms lists the caller's rooms that already hold a final
// assessment.
func (s *ChatService) ResultRooms(userID uint) ([]model.ChatRoom, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.roomRepo.ListWithResultByUserID(userID)
}

type ResultDetail struct {
	RoomID uint   `json:"room_id"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

func (s *ChatService) ResultDetailByRoom(userID, roomID uint) (*ResultDetail, error) {
	if userID == 0 || roomID == 0 {
		return nil, ErrInvalidInput
	}

	room, err := s.roomRepo.GetByIDAndUserID(roomID, userID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	name := ""
	if user != nil {
		name = user.Name
	}

	return &ResultDetail{RoomID: room.ID, Name: name, Result: room.Result}, nil
}

// DeleteRoom removes a room and its messages in one transaction.
func (s *ChatService) DeleteRoom(userID, roomID uint) error {
	if userID == 0 || roomID == 0 {
		return ErrInvalidInput
	}

	room, err := s.roomRepo.GetByIDAndUserID(roomID, userID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}
	return s.roomRepo.DeleteWithMessages(roomID, userID)
}

func (s *ChatService) DeleteResult(userID, roomID uint) error {
	if userID == 0 || roomID == 0 {
		return ErrInvalidInput
	}

	room, err := s.roomRepo.GetByIDAndUserID(roomID, userID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}

	_, err = s.roomRepo.ClearResult(roomID, userID)
	return err
}
