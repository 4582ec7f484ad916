package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/auth-service/internal/domain"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

type redisSessionRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionRepository stores sessions as JSON values that expire with the token.
func NewRedisSessionRepository(client *redis.Client) SessionRepository {
	return &redisSessionRepository{client: client, now: time.Now}
}

func sessionKey(id int64) string {
	return sessionKeyPrefix + strconv.FormatInt(id, 10)
}

func userSessionsKey(userID int64) string {
	return userSessionsKeyPrefix + strconv.FormatInt(userID, 10)
}

func (r *redisSessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	now := r.now()
	ttl := session.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	record := *session
	record.CreatedAt = now.UTC()
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	// SETNX leaves an existing session untouched. The per-user index lets
	// DeleteByUserID find sessions without scanning the keyspace; its TTL only
	// ever grows so it outlives every session it lists. GT skips keys without
	// a TTL, hence NX first for a fresh set.
	indexKey := userSessionsKey(session.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, sessionKey(session.ID), payload, ttl)
		pipe.SAdd(ctx, indexKey, session.ID)
		pipe.ExpireNX(ctx, indexKey, ttl)
		pipe.ExpireGT(ctx, indexKey, ttl)
		return nil
	})
	return err
}

func (r *redisSessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (r *redisSessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	indexKey := userSessionsKey(userID)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, indexKey)
	return r.client.Del(ctx, keys...).Err()
}
