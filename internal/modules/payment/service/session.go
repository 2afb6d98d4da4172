package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"anoa.com/runclub/internal/modules/payment/dto"
	"anoa.com/runclub/pkg/apperror"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "qr_session:"
	linkKeyPrefix    = "qr_session:link:"

	maxUpdateAttempts = 5
)

// Mutator edits the latest stored copy of a session. Returning false leaves
// the stored session untouched.
type Mutator func(session *dto.QRSession) bool

type SessionStore interface {
	Save(ctx context.Context, session *dto.QRSession) error
	Get(ctx context.Context, id string) (*dto.QRSession, error)
	FindByLink(ctx context.Context, linkID string) (*dto.QRSession, error)
	// Update applies mutate to the current session atomically, so a
	// concurrent writer is never overwritten with a stale copy. It returns
	// the session as stored afterwards.
	Update(ctx context.Context, id string, mutate Mutator) (*dto.QRSession, error)
}

type redisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore keeps sessions for ttl after their last update so a
// client can still read the terminal state.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) SessionStore {
	return &redisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *redisSessionStore) Save(ctx context.Context, session *dto.QRSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode qr session: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, s.ttl)
	pipe.Set(ctx, linkKeyPrefix+session.PaymentLinkID, session.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store qr session: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (*dto.QRSession, error) {
	return getSession(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getSession(ctx context.Context, c getter, id string) (*dto.QRSession, error) {
	payload, err := c.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NotFound("qr session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load qr session: %w", err)
	}

	var session dto.QRSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to decode qr session: %w", err)
	}
	return &session, nil
}

// Update runs an optimistic WATCH/MULTI transaction on the session key and
// retries when another writer got in first.
func (s *redisSessionStore) Update(ctx context.Context, id string, mutate Mutator) (*dto.QRSession, error) {
	key := sessionKeyPrefix + id
	var current *dto.QRSession

	txf := func(tx *redis.Tx) error {
		session, err := getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		current = session
		if !mutate(session) {
			return nil
		}

		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to encode qr session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			pipe.Set(ctx, linkKeyPrefix+session.PaymentLinkID, session.ID, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return current, nil
	}
	return nil, fmt.Errorf("failed to store qr session %s: concurrent updates", id)
}

func (s *redisSessionStore) FindByLink(ctx context.Context, linkID string) (*dto.QRSession, error) {
	id, err := s.rdb.Get(ctx, linkKeyPrefix+linkID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NotFound("qr session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load qr session: %w", err)
	}
	return s.Get(ctx, id)
}

// memorySessionStore is used when no Redis is configured.
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]dto.QRSession
	links    map[string]string
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		sessions: make(map[string]dto.QRSession),
		links:    make(map[string]string),
	}
}

func (s *memorySessionStore) Save(_ context.Context, session *dto.QRSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	s.links[session.PaymentLinkID] = session.ID
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, id string) (*dto.QRSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperror.NotFound("qr session not found")
	}
	return &session, nil
}

func (s *memorySessionStore) Update(_ context.Context, id string, mutate Mutator) (*dto.QRSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperror.NotFound("qr session not found")
	}
	if mutate(&session) {
		s.sessions[id] = session
		s.links[session.PaymentLinkID] = session.ID
	}
	return &session, nil
}

func (s *memorySessionStore) FindByLink(ctx context.Context, linkID string) (*dto.QRSession, error) {
	s.mu.Lock()
	id, ok := s.links[linkID]
	s.mu.Unlock()
	if !ok {
		return nil, apperror.NotFound("qr session not found")
	}
	return s.Get(ctx, id)
}
