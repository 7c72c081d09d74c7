package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"visitledger/internal/visitcard/models"
	id "visitledger/pkg/domain"
	"visitledger/pkg/platform/sentinel"
)

const (
	credentialKeyPrefix = "visitcard:cred:"
	ownerKeyPrefix      = "visitcard:owner:"
)

// RedisCache caches issued credentials. A credential never changes after
// issuance, so entries are written without expiry and never invalidated.
// Only positive lookups are cached; absence can change and always goes to the store.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, credentialID models.CredentialID) (*models.Credential, error) {
	payload, err := c.client.Get(ctx, credentialKeyPrefix+credentialID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached visit card: %w", err)
	}
	var credential models.Credential
	if err := json.Unmarshal(payload, &credential); err != nil {
		return nil, fmt.Errorf("decode cached visit card: %w", err)
	}
	return &credential, nil
}

func (c *RedisCache) GetByOwner(ctx context.Context, owner id.Address) (*models.Credential, error) {
	rawID, err := c.client.Get(ctx, ownerKeyPrefix+owner.Lower()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached owner index: %w", err)
	}
	credentialID, ok := models.ParseCredentialID(rawID)
	if !ok {
		return nil, fmt.Errorf("cached owner index holds invalid id %q", rawID)
	}
	return c.Get(ctx, credentialID)
}

func (c *RedisCache) Put(ctx context.Context, credential *models.Credential) error {
	payload, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("encode visit card: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, credentialKeyPrefix+credential.ID.String(), payload, 0)
		pipe.Set(ctx, ownerKeyPrefix+credential.Owner.Lower(), credential.ID.String(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache visit card: %w", err)
	}
	return nil
}
