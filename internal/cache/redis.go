package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitshopapp/storefront/internal/models"
)

const redisKeyPrefix = "storefront:"

// RedisProvider shares receipts between server instances as JSON.
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProvider(connectionString string, ttl time.Duration) (*RedisProvider, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisProvider{client: client, ttl: ttl}, nil
}

func (r *RedisProvider) GetReceipt(ctx context.Context, orderNo string) (*models.OrderReceipt, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+ReceiptKey(orderNo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt models.OrderReceipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		// Written by an older release; drop it and read through.
		_ = r.client.Del(ctx, redisKeyPrefix+ReceiptKey(orderNo)).Err()
		return nil, ErrNotFound
	}
	return &receipt, nil
}

func (r *RedisProvider) PutReceipt(ctx context.Context, receipt *models.OrderReceipt) error {
	if receipt == nil || receipt.OrderNumber == "" {
		return nil
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	return r.client.Set(ctx, redisKeyPrefix+ReceiptKey(receipt.OrderNumber), payload, r.ttl).Err()
}

func (r *RedisProvider) Invalidate(ctx context.Context, orderNo string) error {
	return r.client.Del(ctx, redisKeyPrefix+ReceiptKey(orderNo)).Err()
}

func (r *RedisProvider) Close() error {
	return r.client.Close()
}
