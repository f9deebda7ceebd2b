package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"chatcoach/internal/ai"
	"chatcoach/internal/cache"
	"chatcoach/internal/model"
	"chatcoach/internal/task"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Character{},
		&model.Episode{},
		&model.ChatRoom{},
		&model.ChatMessage{},
		&model.TaskRecord{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeSessions backs every session-cache interface with plain maps so
// services can be exercised without Redis.
type fakeSessions struct {
	values    map[string]string
	counts    map[string]int64
	feedbacks map[string][]string
	blacklist map[string]time.Duration
	replies   map[string]string
	events    []cache.StreamEvent
	purged    []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		values:    make(map[string]string),
		counts:    make(map[string]int64),
		feedbacks: make(map[string][]string),
		blacklist: make(map[string]time.Duration),
		replies:   make(map[string]string),
	}
}

func (f *fakeSessions) get(purpose, email string) (string, bool) {
	v, ok := f.values[purpose+":"+email]
	return v, ok
}

func (f *fakeSessions) set(purpose, email, value string) {
	f.values[purpose+":"+email] = value
}

func (f *fakeSessions) SetEpisodeID(_ context.Context, email string, episodeID uint) error {
	f.set("episode_id", email, fmt.Sprintf("%d", episodeID))
	return nil
}

func (f *fakeSessions) SetCharacterID(_ context.Context, email string, characterID uint) error {
	f.set("character_id", email, fmt.Sprintf("%d", characterID))
	return nil
}

func (f *fakeSessions) GetCharacterID(_ context.Context, email string) (string, bool, error) {
	v, ok := f.get("character_id", email)
	return v, ok, nil
}

func (f *fakeSessions) IncrementCount(_ context.Context, email string) (int64, error) {
	f.counts[email]++
	return f.counts[email], nil
}

func (f *fakeSessions) SetTalkContent(_ context.Context, email, content string) error {
	f.set("talk_content", email, content)
	return nil
}

func (f *fakeSessions) ClearTurnKeys(_ context.Context, email string) error {
	delete(f.values, "episode_id:"+email)
	delete(f.values, "talk_content:"+email)
	return nil
}

func (f *fakeSessions) GetMemoryEpisode(_ context.Context, email string) (string, bool, error) {
	v, ok := f.get("memory_episode", email)
	return v, ok, nil
}

func (f *fakeSessions) SetMemoryEpisode(_ context.Context, email string, episodeID uint) error {
	f.set("memory_episode", email, fmt.Sprintf("%d", episodeID))
	return nil
}

func (f *fakeSessions) AppendFeedback(_ context.Context, email, feedback string) error {
	f.feedbacks[email] = append(f.feedbacks[email], feedback)
	return nil
}

func (f *fakeSessions) Feedbacks(_ context.Context, email string) ([]string, error) {
	return f.feedbacks[email], nil
}

func (f *fakeSessions) SetRoomID(_ context.Context, email string, roomID uint) error {
	f.set("room_id", email, fmt.Sprintf("%d", roomID))
	return nil
}

func (f *fakeSessions) GetRoomID(_ context.Context, email string) (string, bool, error) {
	v, ok := f.get("room_id", email)
	return v, ok, nil
}

func (f *fakeSessions) PurgeUserKeys(_ context.Context, email string) error {
	f.purged = append(f.purged, email)
	for key := range f.values {
		if strings.Contains(key, email) {
			delete(f.values, key)
		}
	}
	delete(f.counts, email)
	delete(f.feedbacks, email)
	return nil
}

func (f *fakeSessions) BlacklistRefreshToken(_ context.Context, token string, ttl time.Duration) error {
	f.blacklist[token] = ttl
	return nil
}

func (f *fakeSessions) IsRefreshTokenBlacklisted(_ context.Context, token string) (bool, error) {
	_, ok := f.blacklist[token]
	return ok, nil
}

func (f *fakeSessions) PublishStreamEvent(_ context.Context, _ uint, event cache.StreamEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSessions) PushTaskReply(_ context.Context, taskID, text string) error {
	f.replies[taskID] = text
	return nil
}

func (f *fakeSessions) AwaitTaskReply(_ context.Context, taskID string, _ time.Duration) (string, error) {
	reply, ok := f.replies[taskID]
	if !ok {
		return "", fmt.Errorf("task reply wait timed out: %s", taskID)
	}
	return reply, nil
}

type fakeMemory struct {
	turns  map[string][]ai.ChatMessage
	resets []string
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{turns: make(map[string][]ai.ChatMessage)}
}

func (m *fakeMemory) History(_ context.Context, email string) ([]ai.ChatMessage, error) {
	return m.turns[email], nil
}

func (m *fakeMemory) AppendTurn(_ context.Context, email, userMessage, assistantMessage string) error {
	m.turns[email] = append(m.turns[email],
		ai.ChatMessage{Role: "user", Content: userMessage},
		ai.ChatMessage{Role: "assistant", Content: assistantMessage},
	)
	return nil
}

func (m *fakeMemory) Reset(_ context.Context, email string) error {
	m.resets = append(m.resets, email)
	delete(m.turns, email)
	return nil
}

// fakeLLM replays a canned reply, streamed rune by rune, and records
// the prompt it was handed.
type fakeLLM struct {
	reply   string
	prompts [][]ai.ChatMessage
}

func (l *fakeLLM) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	l.prompts = append(l.prompts, messages)
	return l.reply, nil
}

func (l *fakeLLM) StreamComplete(_ context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	l.prompts = append(l.prompts, messages)
	for _, r := range l.reply {
		if err := onChunk(string(r)); err != nil {
			return "", err
		}
	}
	return l.reply, nil
}

// fakePublisher records envelopes. When a reply is preset, publishing a
// result task drops that reply straight into the mailbox so awaiting
// callers return immediately.
type fakePublisher struct {
	sessions    *fakeSessions
	resultReply string
	published   []task.Envelope
}

func (p *fakePublisher) Publish(_ context.Context, env task.Envelope) error {
	p.published = append(p.published, env)
	if env.Kind == task.KindGenerateResult && p.resultReply != "" {
		p.sessions.replies[env.ID] = p.resultReply
	}
	return nil
}
