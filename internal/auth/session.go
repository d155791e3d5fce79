package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNoSession is returned when a token is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Sessions maps opaque login tokens to usernames.
type Sessions interface {
	Create(ctx context.Context, username string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type memorySession struct {
	username  string
	expiresAt time.Time
}

// MemorySessions keeps sessions in process memory. Expired entries are
// rejected on lookup and removed by Sweep.
type MemorySessions struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]memorySession

	// now is overridable in tests.
	now func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessions) Create(_ context.Context, username string) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{username: username, expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

func (s *MemorySessions) Lookup(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || !s.now().Before(sess.expiresAt) {
		return "", ErrNoSession
	}
	return sess.username, nil
}

func (s *MemorySessions) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemorySessions) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// RedisSessions stores sessions as keys with a TTL so several server
// processes can share logins.
type RedisSessions struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, prefix: "daybook:session:", ttl: ttl}
}

func (s *RedisSessions) Create(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+token, username, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisSessions) Lookup(ctx context.Context, token string) (string, error) {
	username, err := s.client.Get(ctx, s.prefix+token).Result()
	if err == redis.Nil {
		return "", ErrNoSession
	} else if err != nil {
		return "", err
	}
	return username, nil
}

func (s *RedisSessions) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.prefix+token).Err()
}
