package cache

import (
	"context"
	"encoding/json"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"

	"chatcoach/internal/ai"
)

// ConversationMemory is the per-user running transcript used as LLM
// context. It lives in Redis so the request layer and the worker pool
// address the same backing store across process restarts.
type ConversationMemory struct {
	client *redisv9.Client
}

func NewConversationMemory(client *redisv9.Client) *ConversationMemory {
	return &ConversationMemory{client: client}
}

// History returns the ordered role-tagged turns, ready to drop into an
// LLM prompt. An absent key is an empty history, not an error.
func (m *ConversationMemory) History(ctx context.Context, email string) ([]ai.ChatMessage, error) {
	raw, err := m.client.LRange(ctx, memoryKey(email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read memory failed: %w", err)
	}

	turns := make([]ai.ChatMessage, 0, len(raw))
	for _, entry := range raw {
		var turn ai.ChatMessage
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal memory turn failed: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// AppendTurn records one completed (user, assistant) exchange.
func (m *ConversationMemory) AppendTurn(ctx context.Context, email, userMessage, assistantMessage string) error {
	userTurn, err := json.Marshal(ai.ChatMessage{Role: "user", Content: userMessage})
	if err != nil {
		return fmt.Errorf("marshal user turn failed: %w", err)
	}
	assistantTurn, err := json.Marshal(ai.ChatMessage{Role: "assistant", Content: assistantMessage})
	if err != nil {
		return fmt.Errorf("marshal assistant turn failed: %w", err)
	}
	if err := m.client.RPush(ctx, memoryKey(email), userTurn, assistantTurn).Err(); err != nil {
		return fmt.Errorf("redis append memory turn failed: %w", err)
	}
	return nil
}

func (m *ConversationMemory) Reset(ctx context.Context, email string) error {
	if err := m.client.Del(ctx, memoryKey(email)).Err(); err != nil {
		return fmt.Errorf("redis reset memory failed: %w", err)
	}
	return nil
}

func memoryKey(email string) string {
	return "memory:" + email
}
