// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/reactforge-auth/internal/platform/sec"
)

// RedisStore keeps sessions in Redis, shared by every server instance.
//
// # Keys
//
// Records are stored under prefix + SHA-256(token). The raw token never
// reaches Redis, so a dump of the keyspace cannot be replayed as cookies.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a [RedisStore] with the given key prefix and TTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime applied on create and on every touch.
func (store *RedisStore) TTL() time.Duration {
	return store.ttl
}

/*
Create issues a fresh token and stores a session for the given user.

Parameters:
  - ctx: context.Context
  - user: UserSummary

Returns:
  - string: The raw opaque token to hand to the client
  - *Session: The stored record
  - error: Token generation or storage failures
*/
func (store *RedisStore) Create(ctx context.Context, user UserSummary) (string, *Session, error) {

	// Generate an unguessable token
	token, err := sec.GenerateSecureToken(TokenLength)
	if err != nil {
		return "", nil, fmt.Errorf("redis_session_token_failed: %w", err)
	}

	now := store.now().UTC()
	sess := &Session{User: user, CreatedAt: now, LastAccessAt: now}

	payload, err := json.Marshal(sess)
	if err != nil {
		return "", nil, fmt.Errorf("redis_session_encode_failed: %w", err)
	}

	// SETNX so a colliding token can never overwrite another user's session
	created, err := store.client.SetNX(ctx, store.key(token), payload, store.ttl).Result()
	if err != nil {
		return "", nil, fmt.Errorf("redis_session_create_failed: %w", err)
	}
	if !created {
		return "", nil, errors.New("redis_session_create_failed: token collision")
	}

	return token, sess, nil
}

/*
Get reads a session without extending its lifetime.

Returns:
  - *Session: The stored record
  - error: [ErrNotFound] on a miss, or connectivity errors
*/
func (store *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := store.client.Get(ctx, store.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis_session_get_failed: %w", err)
	}
	return decode(payload)
}

/*
Touch reads a session and renews its TTL in a single MULTI/EXEC.

Description: The read and the renewal are atomic, so a concurrent destroy
either wins before the read (miss) or after the renewal (gone). The
returned LastAccessAt is the time of this touch.

Returns:
  - *Session: The stored record
  - error: [ErrNotFound] on a miss, or connectivity errors
*/
func (store *RedisStore) Touch(ctx context.Context, token string) (*Session, error) {
	key := store.key(token)

	var get *redis.StringCmd
	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pipe.PExpire(ctx, key, store.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis_session_touch_failed: %w", err)
	}

	payload, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis_session_touch_failed: %w", err)
	}

	sess, err := decode(payload)
	if err != nil {
		return nil, err
	}
	sess.LastAccessAt = store.now().UTC()
	return sess, nil
}

/*
Destroy deletes a session. Deleting a missing token is not an error.
*/
func (store *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := store.client.Del(ctx, store.key(token)).Err(); err != nil {
		return fmt.Errorf("redis_session_destroy_failed: %w", err)
	}
	return nil
}

// Ping checks that the session backend is reachable.
func (store *RedisStore) Ping(ctx context.Context) error {
	return store.client.Ping(ctx).Err()
}

func (store *RedisStore) key(token string) string {
	return store.prefix + sec.HashToken(token)
}

func decode(payload []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("redis_session_decode_failed: %w", err)
	}
	return &sess, nil
}
