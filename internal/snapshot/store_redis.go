package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "examtabling:snapshot:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis; snapshots expire after the ttl, or never when it is zero
func NewRedisStore(address, password string, db int, ttl time.Duration) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{client: client, ttl: ttl}, nil
}

func (store *redisStore) Save(ctx context.Context, snapshot Snapshot) error {
	bytes, err := Encode(snapshot)
	if err != nil {
		return err
	}
	if err := store.client.Set(ctx, keyPrefix+snapshot.Id.String(), bytes, store.ttl).Err(); err != nil {
		return fmt.Errorf("cannot store snapshot %v: %w", snapshot.Id, err)
	}
	return nil
}

func (store *redisStore) Load(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	bytes, err := store.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrNotFound, id)
	} else if err != nil {
		return Snapshot{}, fmt.Errorf("cannot fetch snapshot %v: %w", id, err)
	}
	return Decode(bytes)
}
