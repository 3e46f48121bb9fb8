package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
)

// RedisInvoiceSessionStore keeps one invoice session per customer under a TTL.
// Saving always overwrites, which drops any decision recorded for the previous invoice.
type RedisInvoiceSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisInvoiceSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisInvoiceSessionStore {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "aurum"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisInvoiceSessionStore{client: client, prefix: trimmedPrefix, ttl: ttl}
}

func (s *RedisInvoiceSessionStore) key(userID string) string {
	return fmt.Sprintf("%s:invoice_session:%s", s.prefix, strings.TrimSpace(userID))
}

func (s *RedisInvoiceSessionStore) Save(ctx context.Context, userID string, session domain.InvoiceSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal invoice session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store invoice session: %w", err)
	}
	return nil
}

func (s *RedisInvoiceSessionStore) Get(ctx context.Context, userID string) (*domain.InvoiceSession, error) {
	payload, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvoiceSessionNotFound
		}
		return nil, fmt.Errorf("load invoice session: %w", err)
	}

	var session domain.InvoiceSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode invoice session: %w", err)
	}
	return &session, nil
}

func (s *RedisInvoiceSessionStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
