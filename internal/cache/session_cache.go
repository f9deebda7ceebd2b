package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// StreamEvent is one message on a user's broadcast channel. Type
// discriminates in-character chunks from critique notices.
type StreamEvent struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

const (
	EventTypeTalkMessage     = "llm_talk_message"
	EventTypeFeedbackMessage = "llm_feedback_message"
)

// SessionCache holds the per-user transient session keys coordinating
// the request layer and the background tasks, and doubles as the
// pub/sub broadcaster for streamed output. Keys are named
// "<purpose>:<email>"; that naming is the only isolation between users.
type SessionCache struct {
	client *redisv9.Client
}

func NewSessionCache(client *redisv9.Client) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) SetEpisodeID(ctx context.Context, email string, episodeID uint) error {
	key := sessionKey("episode_id", email)
	if err := c.client.Set(ctx, key, episodeID, 0).Err(); err != nil {
		return fmt.Errorf("redis set episode id failed: %w", err)
	}
	return nil
}

func (c *SessionCache) GetEpisodeID(ctx context.Context, email string) (string, bool, error) {
	return c.getString(ctx, sessionKey("episode_id", email))
}

func (c *SessionCache) SetCharacterID(ctx context.Context, email string, characterID uint) error {
	key := sessionKey("character_id", email)
	if err := c.client.Set(ctx, key, characterID, 0).Err(); err != nil {
		return fmt.Errorf("redis set character id failed: %w", err)
	}
	return nil
}

func (c *SessionCache) GetCharacterID(ctx context.Context, email string) (string, bool, error) {
	return c.getString(ctx, sessionKey("character_id", email))
}

func (c *SessionCache) IncrementCount(ctx context.Context, email string) (int64, error) {
	count, err := c.client.Incr(ctx, sessionKey("count", email)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr count failed: %w", err)
	}
	return count, nil
}

func (c *SessionCache) SetTalkContent(ctx context.Context, email, content string) error {
	if err := c.client.Set(ctx, sessionKey("talk_content", email), content, 0).Err(); err != nil {
		return fmt.Errorf("redis set talk content failed: %w", err)
	}
	return nil
}

func (c *SessionCache) GetTalkContent(ctx context.Context, email string) (string, bool, error) {
	return c.getString(ctx, sessionKey("talk_content", email))
}

// ClearTurnKeys drops the episode_id and talk_content keys before a new
// turn streams, so a racing reader cannot observe the previous turn's
// values as fresh.
func (c *SessionCache) ClearTurnKeys(ctx context.Context, email string) error {
	keys := []string{sessionKey("episode_id", email), sessionKey("talk_content", email)}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear turn keys failed: %w", err)
	}
	return nil
}

func (c *SessionCache) GetMemoryEpisode(ctx context.Context, email string) (string, bool, error) {
	return c.getString(ctx, sessionKey("memory_episode", email))
}

func (c *SessionCache) SetMemoryEpisode(ctx context.Context, email string, episodeID uint) error {
	if err := c.client.Set(ctx, sessionKey("memory_episode", email), episodeID, 0).Err(); err != nil {
		return fmt.Errorf("redis set memory episode failed: %w", err)
	}
	return nil
}

func (c *SessionCache) AppendFeedback(ctx context.Context, email, feedback string) error {
	if err := c.client.RPush(ctx, sessionKey("feedbacks", email), feedback).Err(); err != nil {
		return fmt.Errorf("redis append feedback failed: %w", err)
	}
	return nil
}

func (c *SessionCache) Feedbacks(ctx context.Context, email string) ([]string, error) {
	entries, err := c.client.LRange(ctx, sessionKey("feedbacks", email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read feedbacks failed: %w", err)
	}
	return entries, nil
}

func (c *SessionCache) SetRoomID(ctx context.Context, email string, roomID uint) error {
	if err := c.client.Set(ctx, sessionKey("room_id", email), roomID, 0).Err(); err != nil {
		return fmt.Errorf("redis set room id failed: %w", err)
	}
	return nil
}

func (c *SessionCache) GetRoomID(ctx context.Context, email string) (string, bool, error) {
	return c.getString(ctx, sessionKey("room_id", email))
}

// PurgeUserKeys scan-deletes every key containing the user's email,
// which covers all session keys and the conversation memory at once.
func (c *SessionCache) PurgeUserKeys(ctx context.Context, email string) error {
	iter := c.client.Scan(ctx, 0, "*"+email+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis purge user keys failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan user keys failed: %w", err)
	}
	return nil
}

func (c *SessionCache) BlacklistRefreshToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := "blacklist:refresh:" + token
	if err := c.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis blacklist token failed: %w", err)
	}
	return nil
}

func (c *SessionCache) IsRefreshTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := c.client.Exists(ctx, "blacklist:refresh:"+token).Result()
	if err != nil {
		return false, fmt.Errorf("redis check blacklist failed: %w", err)
	}
	return exists > 0, nil
}

func (c *SessionCache) PublishStreamEvent(ctx context.Context, userID uint, event StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event failed: %w", err)
	}
	if err := c.client.Publish(ctx, channelName(userID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish stream event failed: %w", err)
	}
	return nil
}

// SubscribeStream returns a channel of events published for the user
// and a close function the caller must invoke when done listening.
func (c *SessionCache) SubscribeStream(ctx context.Context, userID uint) (<-chan StreamEvent, func() error) {
	pubsub := c.client.Subscribe(ctx, channelName(userID))
	events := make(chan StreamEvent, 16)

	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var event StreamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, pubsub.Close
}

// PushTaskReply delivers an awaited task's result to its mailbox. The
// mailbox expires on its own in case the awaiting request gave up.
func (c *SessionCache) PushTaskReply(ctx context.Context, taskID, text string) error {
	key := replyKey(taskID)
	if err := c.client.RPush(ctx, key, text).Err(); err != nil {
		return fmt.Errorf("redis push task reply failed: %w", err)
	}
	if err := c.client.Expire(ctx, key, 5*time.Minute).Err(); err != nil {
		return fmt.Errorf("redis expire task reply failed: %w", err)
	}
	return nil
}

// AwaitTaskReply blocks until the task's reply arrives or the timeout
// elapses. This is the synchronous half of the enqueue/await split.
func (c *SessionCache) AwaitTaskReply(ctx context.Context, taskID string, timeout time.Duration) (string, error) {
	values, err := c.client.BLPop(ctx, timeout, replyKey(taskID)).Result()
	if err == redisv9.Nil {
		return "", fmt.Errorf("task %s reply timed out after %s", taskID, timeout)
	}
	if err != nil {
		return "", fmt.Errorf("redis await task reply failed: %w", err)
	}
	if len(values) != 2 {
		return "", fmt.Errorf("unexpected blpop reply shape for task %s", taskID)
	}
	return values[1], nil
}

func (c *SessionCache) getString(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redisv9.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	return value, true, nil
}

func sessionKey(purpose, email string) string {
	return fmt.Sprintf("%s:%s", purpose, email)
}

func channelName(userID uint) string {
	return fmt.Sprintf("chat_%d", userID)
}

func replyKey(taskID string) string {
	return "task:reply:" + taskID
}
