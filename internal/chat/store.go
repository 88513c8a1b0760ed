package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// conversationTTL bounds how long an idle conversation survives in Redis.
const conversationTTL = 1 * time.Hour

// ErrConversationNotFound is returned by Load for unknown conversation IDs.
var ErrConversationNotFound = errors.New("conversation not found")

// Store persists conversations between gateway requests.
type Store interface {
	Load(ctx context.Context, id string) (*Context, error)
	Save(ctx context.Context, c *Context) error
}

// NewConversationID returns a fresh random conversation identifier.
func NewConversationID() string {
	return uuid.NewString()
}

// --- In-memory store ---

// MemoryStore keeps conversations in process memory. It is used when no
// Redis address is configured.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]Message)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return NewContext(id, msgs...), nil
}

func (s *MemoryStore) Save(_ context.Context, c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID()] = c.Messages()
	return nil
}

// --- Redis store ---

// RedisStore keeps each conversation as a Redis list of JSON-encoded
// messages under "conversation:<id>", refreshed on every save.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: conversationTTL}
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// Load reads the full message list of a conversation.
func (s *RedisStore) Load(ctx context.Context, id string) (*Context, error) {
	raw, err := s.rdb.LRange(ctx, conversationKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, ErrConversationNotFound
	}
	msgs := make([]Message, 0, len(raw))
	for i, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("corrupt message %d in conversation %s: %w", i, id, err)
		}
		msgs = append(msgs, m)
	}
	return NewContext(id, msgs...), nil
}

// Save replaces the stored conversation with the context's history.
func (s *RedisStore) Save(ctx context.Context, c *Context) error {
	msgs := c.Messages()
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		values = append(values, string(b))
	}

	key := conversationKey(c.ID())
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", c.ID(), err)
	}
	return nil
}
