package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/symptom-checker/internal/cache"
	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

// ErrStaleAnswer is returned when an answer names a question the session has moved past
var ErrStaleAnswer = errors.New("answer is for a question that is no longer current")

// State is everything one user's questionnaire needs between requests
type State struct {
	ID        string                 `json:"id"`
	Progress  questionnaire.Progress `json:"progress"`
	Result    *prediction.Result     `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewID returns a random session id
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Store persists session state
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process, each expiring ttl after its last save
type MemoryStore struct {
	items *cache.Cache[State]
}

// NewMemoryStore creates an in-process store; max bounds the number of live sessions, 0 means unbounded
func NewMemoryStore(ttl time.Duration, max int) *MemoryStore {
	return &MemoryStore{items: cache.New[State](ttl, max)}
}

// Run purges expired sessions every interval until ctx is done
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	s.items.Run(ctx, interval)
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	state, ok := s.items.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	if state == nil || state.ID == "" {
		return fmt.Errorf("session state has no id")
	}
	s.items.Set(state.ID, *state)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.items.Delete(id)
	return nil
}

// Len returns the number of stored sessions, expired or not
func (s *MemoryStore) Len() int {
	return s.items.Size()
}

const redisKeyPrefix = "session:"

// RedisStore keeps sessions as JSON under session:<id> with a sliding TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil || state.ID == "" {
		return fmt.Errorf("session state has no id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(state.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
