package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"chatcoach/internal/cache"
	"chatcoach/internal/config"
	"chatcoach/internal/model"
	"chatcoach/internal/repository"
	"chatcoach/internal/task"
)

func testPrompts() config.PromptConfig {
	return config.PromptConfig{
		CharacterTemplate:   "character: %s scenario: %s",
		FeedbackTemplate:    "critique %s transcript:\n%s",
		ResultTemplate:      "synthesize %s from:\n%s",
		FallbackCharacterID: 1,
	}
}

func newTestTaskService(t *testing.T, llm *fakeLLM) (*TaskService, *fakeSessions, *fakeMemory, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	sessions := newFakeSessions()
	memory := newFakeMemory()
	svc := NewTaskService(
		repository.NewEpisodeRepository(db),
		repository.NewCharacterRepository(db),
		repository.NewUserRepository(db),
		sessions,
		memory,
		llm,
		testPrompts(),
	)
	return svc, sessions, memory, db
}

func seedScenario(t *testing.T, db *gorm.DB) (*model.Character, *model.Episode) {
	t.Helper()
	character := &model.Character{Name: "부장님", Script: "깐깐한 상사"}
	if err := db.Create(character).Error; err != nil {
		t.Fatalf("seed character: %v", err)
	}
	episode := &model.Episode{Content: "보고서가 늦었다", TimeLabel: "오전"}
	if err := db.Create(episode).Error; err != nil {
		t.Fatalf("seed episode: %v", err)
	}
	return character, episode
}

func TestGenerateMessageStreamsAndStoresTurn(t *testing.T) {
	llm := &fakeLLM{reply: "왜 늦었나"}
	svc, sessions, memory, db := newTestTaskService(t, llm)
	character, episode := seedScenario(t, db)
	ctx := context.Background()

	full, err := svc.GenerateMessage(ctx, task.GenerateMessagePayload{
		CharacterID: character.ID,
		EpisodeID:   episode.ID,
		UserID:      7,
		UserEmail:   "talk@example.com",
		UserMessage: "죄송합니다",
	}, "corr-1")
	if err != nil {
		t.Fatalf("generate message: %v", err)
	}
	if full != "왜 늦었나" {
		t.Fatalf("unexpected reply: %q", full)
	}

	// Every published chunk carries the correlation id, and the chunks
	// concatenate to the stored talk content.
	var streamed strings.Builder
	for _, ev := range sessions.events {
		if ev.Type != cache.EventTypeTalkMessage {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
		if ev.CorrelationID != "corr-1" {
			t.Fatalf("chunk missing correlation id: %+v", ev)
		}
		streamed.WriteString(ev.Message)
	}
	stored, _ := sessions.get("talk_content", "talk@example.com")
	if streamed.String() != stored || stored != full {
		t.Fatalf("streamed %q, stored %q, full %q", streamed.String(), stored, full)
	}

	turns := memory.turns["talk@example.com"]
	if len(turns) != 2 || turns[0].Content != "죄송합니다" || turns[1].Content != "왜 늦었나" {
		t.Fatalf("unexpected memory turns: %+v", turns)
	}

	prompt := llm.prompts[0]
	if prompt[0].Role != "system" || !strings.Contains(prompt[0].Content, character.Script) ||
		!strings.Contains(prompt[0].Content, episode.Content) {
		t.Fatalf("system prompt not built from script and scenario: %+v", prompt[0])
	}
}

func TestGenerateMessageResetsMemoryOnEpisodeChange(t *testing.T) {
	llm := &fakeLLM{reply: "알겠네"}
	svc, sessions, memory, db := newTestTaskService(t, llm)
	character, episode := seedScenario(t, db)
	second := &model.Episode{Content: "회식 자리", TimeLabel: "저녁"}
	if err := db.Create(second).Error; err != nil {
		t.Fatalf("seed second episode: %v", err)
	}
	ctx := context.Background()
	email := "memory@example.com"

	base := task.GenerateMessagePayload{
		CharacterID: character.ID,
		EpisodeID:   episode.ID,
		UserID:      7,
		UserEmail:   email,
		UserMessage: "안녕하세요",
	}
	if _, err := svc.GenerateMessage(ctx, base, ""); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if len(memory.resets) != 1 {
		t.Fatalf("first turn must reset empty memory, got %d resets", len(memory.resets))
	}

	// Same episode again keeps the transcript.
	if _, err := svc.GenerateMessage(ctx, base, ""); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if len(memory.resets) != 1 {
		t.Fatalf("same episode must not reset, got %d resets", len(memory.resets))
	}
	if len(memory.turns[email]) != 4 {
		t.Fatalf("expected 4 memory entries after two turns, got %d", len(memory.turns[email]))
	}

	// Switching episodes drops the transcript before generating.
	base.EpisodeID = second.ID
	if _, err := svc.GenerateMessage(ctx, base, ""); err != nil {
		t.Fatalf("third turn: %v", err)
	}
	if len(memory.resets) != 2 {
		t.Fatalf("episode change must reset, got %d resets", len(memory.resets))
	}
	if len(memory.turns[email]) != 2 {
		t.Fatalf("expected only the fresh turn after reset, got %d entries", len(memory.turns[email]))
	}
	if v, _ := sessions.get("memory_episode", email); v == "" {
		t.Fatalf("memory_episode key not tracked")
	}
}

func TestGenerateFeedbackAppendsAndPublishes(t *testing.T) {
	llm := &fakeLLM{reply: "경청하는 태도가 좋았습니다"}
	svc, sessions, memory, db := newTestTaskService(t, llm)
	character, _ := seedScenario(t, db)
	user := seedUser(t, db, "critic@example.com")
	ctx := context.Background()

	if err := sessions.SetCharacterID(ctx, user.Email, character.ID); err != nil {
		t.Fatalf("set character: %v", err)
	}
	if err := memory.AppendTurn(ctx, user.Email, "죄송합니다", "왜 늦었나"); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	critique, err := svc.GenerateFeedback(ctx, task.GenerateFeedbackPayload{
		UserID:    user.ID,
		UserEmail: user.Email,
	}, "corr-2")
	if err != nil {
		t.Fatalf("generate feedback: %v", err)
	}

	if got := sessions.feedbacks[user.Email]; len(got) != 1 || got[0] != critique {
		t.Fatalf("feedback not appended: %v", got)
	}
	if len(sessions.events) != 1 || sessions.events[0].Type != cache.EventTypeFeedbackMessage {
		t.Fatalf("expected one feedback event, got %+v", sessions.events)
	}
	if !strings.Contains(llm.prompts[0][0].Content, "user: 죄송합니다") {
		t.Fatalf("transcript missing from prompt: %q", llm.prompts[0][0].Content)
	}
}

func TestGenerateResultRequiresFeedback(t *testing.T) {
	llm := &fakeLLM{reply: "전반적으로 훌륭합니다"}
	svc, sessions, _, db := newTestTaskService(t, llm)
	seedScenario(t, db)
	ctx := context.Background()
	email := "nofeedback@example.com"

	_, err := svc.GenerateResult(ctx, task.GenerateResultPayload{UserID: 7, UserEmail: email})
	if !errors.Is(err, ErrNoFeedback) {
		t.Fatalf("expected ErrNoFeedback, got %v", err)
	}

	if err := sessions.AppendFeedback(ctx, email, "첫 번째 피드백"); err != nil {
		t.Fatalf("append feedback: %v", err)
	}
	if err := sessions.AppendFeedback(ctx, email, "두 번째 피드백"); err != nil {
		t.Fatalf("append feedback: %v", err)
	}

	result, err := svc.GenerateResult(ctx, task.GenerateResultPayload{UserID: 7, UserEmail: email})
	if err != nil {
		t.Fatalf("generate result: %v", err)
	}
	if result != llm.reply {
		t.Fatalf("unexpected result: %q", result)
	}
	prompt := llm.prompts[len(llm.prompts)-1][0].Content
	if !strings.Contains(prompt, "첫 번째 피드백") || !strings.Contains(prompt, "두 번째 피드백") {
		t.Fatalf("feedback entries missing from prompt: %q", prompt)
	}
}

func TestGenerateResultFallsBackToDefaultCharacter(t *testing.T) {
	llm := &fakeLLM{reply: "수고했습니다"}
	svc, sessions, _, db := newTestTaskService(t, llm)
	character, _ := seedScenario(t, db)
	if character.ID != testPrompts().FallbackCharacterID {
		t.Fatalf("fallback character fixture mismatch: %d", character.ID)
	}
	ctx := context.Background()
	email := "fallback@example.com"

	// No character_id key recorded; the configured default applies.
	if err := sessions.AppendFeedback(ctx, email, "피드백"); err != nil {
		t.Fatalf("append feedback: %v", err)
	}
	if _, err := svc.GenerateResult(ctx, task.GenerateResultPayload{UserID: 7, UserEmail: email}); err != nil {
		t.Fatalf("generate result: %v", err)
	}
	if !strings.Contains(llm.prompts[0][0].Content, character.Script) {
		t.Fatalf("fallback character script missing from prompt")
	}
}
