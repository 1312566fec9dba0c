// Package cache keeps short-lived snapshots of patient aggregates in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain/patient"
)

// ErrMiss is returned by Get when no snapshot is stored for the patient.
var ErrMiss = errors.New("cache miss")

const keyPrefix = "patientrest:patient:"

func patientKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

type RedisPatientCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPatientCache(client *redis.Client, ttl time.Duration) *RedisPatientCache {
	return &RedisPatientCache{client: client, ttl: ttl}
}

// NewRedisClient connects and pings so a bad address fails at startup.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func (c *RedisPatientCache) Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	data, err := c.client.Get(ctx, patientKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var p patient.Patient
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding cached patient: %w", err)
	}
	return &p, nil
}

func (c *RedisPatientCache) Set(ctx context.Context, p *patient.Patient) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding patient: %w", err)
	}
	if err := c.client.Set(ctx, patientKey(p.UUID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisPatientCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, patientKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisPatientCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Nop is used when Redis is disabled. Every lookup misses.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID) (*patient.Patient, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, *patient.Patient) error              { return nil }
func (Nop) Delete(context.Context, uuid.UUID) error                  { return nil }
func (Nop) Ping(context.Context) error                               { return nil }
