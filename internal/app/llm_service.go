package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"chatcoach/internal/model"
	"chatcoach/internal/repository"
	"chatcoach/internal/task"
)

var (
	ErrRoomStateMissing = errors.New("no room bound to the current session")
	ErrTaskEnqueue      = errors.New("task enqueue failed")
)

// TaskPublisher hands a validated task envelope to the broker.
type TaskPublisher interface {
	Publish(ctx context.Context, env task.Envelope) error
}

// LLMSessionCache is the slice of the session cache the request layer
// touches when gluing an HTTP call to its background task.
type LLMSessionCache interface {
	SetEpisodeID(ctx context.Context, email string, episodeID uint) error
	SetCharacterID(ctx context.Context, email string, characterID uint) error
	IncrementCount(ctx context.Context, email string) (int64, error)
	GetRoomID(ctx context.Context, email string) (string, bool, error)
	PurgeUserKeys(ctx context.Context, email string) error
	AwaitTaskReply(ctx context.Context, taskID string, timeout time.Duration) (string, error)
}

// LLMService enqueues the three background task kinds. Message and
// feedback are fire-and-forget; the final result is enqueued and then
// awaited on its reply mailbox, blocking the request but never a
// worker.
type LLMService struct {
	userRepo   *repository.UserRepository
	roomRepo   *repository.ChatRoomRepository
	taskRepo   *repository.TaskRepository
	sessions   LLMSessionCache
	publisher  TaskPublisher
	resultWait time.Duration
}

type SubmitMessageInput struct {
	UserID      uint
	EpisodeID   uint
	CharacterID uint
	Message     string
}

type ResultOutput struct {
	Result string `json:"result"`
	Name   string `json:"name"`
	RoomID uint   `json:"room_id"`
}

func NewLLMService(
	userRepo *repository.UserRepository,
	roomRepo *repository.ChatRoomRepository,
	taskRepo *repository.TaskRepository,
	sessions LLMSessionCache,
	publisher TaskPublisher,
	resultWait time.Duration,
) *LLMService {
	if resultWait <= 0 {
		resultWait = 2 * time.Minute
	}
	return &LLMService{
		userRepo:   userRepo,
		roomRepo:   roomRepo,
		taskRepo:   taskRepo,
		sessions:   sessions,
		publisher:  publisher,
		resultWait: resultWait,
	}
}

// SubmitMessage records the session's episode/character selection,
// bumps the turn counter, and enqueues a generate-message task. The
// returned task id is the caller's job handle.
func (s *LLMService) SubmitMessage(ctx context.Context, input SubmitMessageInput) (string, error) {
	if input.EpisodeID == 0 || input.CharacterID == 0 {
		return "", ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	if err := s.sessions.SetEpisodeID(ctx, user.Email, input.EpisodeID); err != nil {
		return "", err
	}
	if _, err := s.sessions.IncrementCount(ctx, user.Email); err != nil {
		return "", err
	}
	if err := s.sessions.SetCharacterID(ctx, user.Email, input.CharacterID); err != nil {
		return "", err
	}

	env, err := task.NewEnvelope(task.KindGenerateMessage, uuid.NewString(), task.GenerateMessagePayload{
		CharacterID: input.CharacterID,
		EpisodeID:   input.EpisodeID,
		UserID:      user.ID,
		UserEmail:   user.Email,
		UserMessage: input.Message,
	})
	if err != nil {
		return "", err
	}
	return s.enqueue(ctx, env, user.ID)
}

func (s *LLMService) RequestFeedback(ctx context.Context, userID uint) (string, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	env, err := task.NewEnvelope(task.KindGenerateFeedback, uuid.NewString(), task.GenerateFeedbackPayload{
		UserID:    user.ID,
		UserEmail: user.Email,
	})
	if err != nil {
		return "", err
	}
	return s.enqueue(ctx, env, user.ID)
}

// FetchResult runs the synchronous tail of a session: enqueue the
// synthesis task, await its reply, persist it into the caller's room,
// and purge the session keys. A second call finds no room_id key and
// fails with ErrRoomStateMissing.
func (s *LLMService) FetchResult(ctx context.Context, userID uint) (*ResultOutput, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	roomIDRaw, ok, err := s.sessions.GetRoomID(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomStateMissing
	}
	roomID64, err := strconv.ParseUint(roomIDRaw, 10, 64)
	if err != nil || roomID64 == 0 {
		return nil, ErrRoomStateMissing
	}
	roomID := uint(roomID64)

	env, err := task.NewEnvelope(task.KindGenerateResult, uuid.NewString(), task.GenerateResultPayload{
		UserID:    user.ID,
		UserEmail: user.Email,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.enqueue(ctx, env, user.ID); err != nil {
		return nil, err
	}

	resultText, err := s.sessions.AwaitTaskReply(ctx, env.ID, s.resultWait)
	if err != nil {
		return nil, err
	}

	updated, err := s.roomRepo.UpdateResult(roomID, user.ID, resultText)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrRoomNotFound
	}

	if err := s.sessions.PurgeUserKeys(ctx, user.Email); err != nil {
		return nil, err
	}

	return &ResultOutput{Result: resultText, Name: user.Name, RoomID: roomID}, nil
}

// TaskStatus resolves a job handle, scoped to its owner. Someone
// else's task looks like a missing one.
func (s *LLMService) TaskStatus(userID uint, taskID string) (*model.TaskRecord, error) {
	record, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != userID {
		return nil, nil
	}
	return record, nil
}

func (s *LLMService) enqueue(ctx context.Context, env task.Envelope, userID uint) (string, error) {
	record := &model.TaskRecord{
		ID:     env.ID,
		Kind:   string(env.Kind),
		UserID: userID,
		Status: model.TaskQueued,
	}
	if err := s.taskRepo.Create(record); err != nil {
		return "", err
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		return "", ErrTaskEnqueue
	}
	return env.ID, nil
}
