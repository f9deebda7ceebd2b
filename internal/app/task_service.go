package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chatcoach/internal/ai"
	"chatcoach/internal/cache"
	"chatcoach/internal/config"
	"chatcoach/internal/model"
	"chatcoach/internal/repository"
	"chatcoach/internal/task"
)

var (
	ErrEpisodeNotFound   = errors.New("episode not found")
	ErrCharacterNotFound = errors.New("character not found")
	ErrNoFeedback        = errors.New("no feedback collected for this session")
)

// LLMClient is the completion surface the task bodies need; the
// production implementation is ai.OpenAICompatibleClient.
type LLMClient interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
}

// MemoryStore is the per-user conversation transcript.
type MemoryStore interface {
	History(ctx context.Context, email string) ([]ai.ChatMessage, error)
	AppendTurn(ctx context.Context, email, userMessage, assistantMessage string) error
	Reset(ctx context.Context, email string) error
}

// TaskSessionCache is the slice of the session cache the task bodies
// mutate while running in the worker pool.
type TaskSessionCache interface {
	GetMemoryEpisode(ctx context.Context, email string) (string, bool, error)
	SetMemoryEpisode(ctx context.Context, email string, episodeID uint) error
	ClearTurnKeys(ctx context.Context, email string) error
	SetTalkContent(ctx context.Context, email, content string) error
	GetCharacterID(ctx context.Context, email string) (string, bool, error)
	AppendFeedback(ctx context.Context, email, feedback string) error
	Feedbacks(ctx context.Context, email string) ([]string, error)
	PublishStreamEvent(ctx context.Context, userID uint, event cache.StreamEvent) error
}

// TaskService holds the bodies of the three background task kinds.
// Errors are returned to the worker, which records the failure and
// leaves session state untouched.
type TaskService struct {
	episodeRepo   *repository.EpisodeRepository
	characterRepo *repository.CharacterRepository
	userRepo      *repository.UserRepository
	sessions      TaskSessionCache
	memory        MemoryStore
	llm           LLMClient
	prompts       config.PromptConfig
}

func NewTaskService(
	episodeRepo *repository.EpisodeRepository,
	characterRepo *repository.CharacterRepository,
	userRepo *repository.UserRepository,
	sessions TaskSessionCache,
	memory MemoryStore,
	llm LLMClient,
	prompts config.PromptConfig,
) *TaskService {
	return &TaskService{
		episodeRepo:   episodeRepo,
		characterRepo: characterRepo,
		userRepo:      userRepo,
		sessions:      sessions,
		memory:        memory,
		llm:           llm,
		prompts:       prompts,
	}
}

// GenerateMessage streams one in-character reply. Memory is reset
// exactly when the episode differs from the one the memory was last
// built for, so context never leaks across scenarios.
func (s *TaskService) GenerateMessage(ctx context.Context, p task.GenerateMessagePayload, correlationID string) (string, error) {
	episode, err := s.episodeRepo.GetByID(p.EpisodeID)
	if err != nil {
		return "", err
	}
	if episode == nil {
		return "", fmt.Errorf("%w: id=%d", ErrEpisodeNotFound, p.EpisodeID)
	}

	character, err := s.characterRepo.GetByID(p.CharacterID)
	if err != nil {
		return "", err
	}
	if character == nil {
		return "", fmt.Errorf("%w: id=%d", ErrCharacterNotFound, p.CharacterID)
	}

	storedEpisode, _, err := s.sessions.GetMemoryEpisode(ctx, p.UserEmail)
	if err != nil {
		return "", err
	}
	if storedEpisode != strconv.FormatUint(uint64(p.EpisodeID), 10) {
		if err := s.memory.Reset(ctx, p.UserEmail); err != nil {
			return "", err
		}
		if err := s.sessions.SetMemoryEpisode(ctx, p.UserEmail, p.EpisodeID); err != nil {
			return "", err
		}
	}

	history, err := s.memory.History(ctx, p.UserEmail)
	if err != nil {
		return "", err
	}

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: fmt.Sprintf(s.prompts.CharacterTemplate, character.Script, episode.Content),
	})
	messages = append(messages, history...)
	if p.UserMessage != "" {
		messages = append(messages, ai.ChatMessage{Role: "user", Content: p.UserMessage})
	}

	// Drop the previous turn's keys before streaming starts so a
	// racing reader never sees stale output as fresh.
	if err := s.sessions.ClearTurnKeys(ctx, p.UserEmail); err != nil {
		return "", err
	}

	full, err := s.llm.StreamComplete(ctx, messages, func(chunk string) error {
		return s.sessions.PublishStreamEvent(ctx, p.UserID, cache.StreamEvent{
			Type:          cache.EventTypeTalkMessage,
			Message:       chunk,
			CorrelationID: correlationID,
		})
	})
	if err != nil {
		return "", err
	}

	if err := s.sessions.SetTalkContent(ctx, p.UserEmail, full); err != nil {
		return "", err
	}
	if p.UserMessage != "" && full != "" {
		if err := s.memory.AppendTurn(ctx, p.UserEmail, p.UserMessage, full); err != nil {
			return "", err
		}
	}
	return full, nil
}

// GenerateFeedback critiques the user's side of the transcript so far
// and appends the critique to the session's feedback list.
func (s *TaskService) GenerateFeedback(ctx context.Context, p task.GenerateFeedbackPayload, correlationID string) (string, error) {
	user, err := s.userRepo.GetByEmail(p.UserEmail)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	character, err := s.sessionCharacter(ctx, p.UserEmail)
	if err != nil {
		return "", err
	}

	history, err := s.memory.History(ctx, p.UserEmail)
	if err != nil {
		return "", err
	}
	transcript := flattenTranscript(history)

	critique, err := s.llm.Complete(ctx, []ai.ChatMessage{{
		Role:    "user",
		Content: fmt.Sprintf(s.prompts.FeedbackTemplate, character.Script, transcript),
	}})
	if err != nil {
		return "", err
	}

	if err := s.sessions.AppendFeedback(ctx, p.UserEmail, critique); err != nil {
		return "", err
	}
	if err := s.sessions.PublishStreamEvent(ctx, user.ID, cache.StreamEvent{
		Type:          cache.EventTypeFeedbackMessage,
		Message:       critique,
		CorrelationID: correlationID,
	}); err != nil {
		return "", err
	}
	return critique, nil
}

// GenerateResult synthesizes the collected feedback into one final
// assessment. An empty feedback list is an error, never an empty
// synthesis.
func (s *TaskService) GenerateResult(ctx context.Context, p task.GenerateResultPayload) (string, error) {
	character, err := s.sessionCharacter(ctx, p.UserEmail)
	if err != nil {
		return "", err
	}

	feedbacks, err := s.sessions.Feedbacks(ctx, p.UserEmail)
	if err != nil {
		return "", err
	}
	if len(feedbacks) == 0 {
		return "", ErrNoFeedback
	}

	return s.llm.Complete(ctx, []ai.ChatMessage{{
		Role:    "user",
		Content: fmt.Sprintf(s.prompts.ResultTemplate, character.Script, strings.Join(feedbacks, "\n")),
	}})
}

// sessionCharacter resolves the session's character selection, falling
// back to the configured default when the key is absent or garbled.
func (s *TaskService) sessionCharacter(ctx context.Context, email string) (*model.Character, error) {
	characterID := s.prompts.FallbackCharacterID
	raw, ok, err := s.sessions.GetCharacterID(ctx, email)
	if err != nil {
		return nil, err
	}
	if ok {
		if parsed, parseErr := strconv.ParseUint(raw, 10, 64); parseErr == nil && parsed > 0 {
			characterID = uint(parsed)
		}
	}

	character, err := s.characterRepo.GetByID(characterID)
	if err != nil {
		return nil, err
	}
	if character == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrCharacterNotFound, characterID)
	}
	return character, nil
}

func flattenTranscript(history []ai.ChatMessage) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}
