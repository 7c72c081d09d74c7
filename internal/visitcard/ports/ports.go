// Package ports declares the storage contracts the visit card service depends on.
package ports

import (
	"context"

	"visitledger/internal/visitcard/models"
	id "visitledger/pkg/domain"
)

// Store is pure I/O over the registry state: the id counter, credentials keyed
// by id, and the owner index. Lookups of absent keys return sentinel.ErrNotFound;
// Create returns sentinel.ErrConflict when the owner already holds a credential.
type Store interface {
	NextID(ctx context.Context) (models.CredentialID, error)
	Create(ctx context.Context, credential *models.Credential) error
	FindByID(ctx context.Context, credentialID models.CredentialID) (*models.Credential, error)
	FindByOwner(ctx context.Context, owner id.Address) (*models.Credential, error)
}

// StoreTx provides the transactional boundary for issuance. Implementations
// wrap a database transaction or, in memory, a staged copy committed under a
// lock. fn sees a Store bound to the transaction; returning an error discards
// every write fn made.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Cache is an optional read-through cache. Credentials are immutable, so cached
// entries never need invalidation.
type Cache interface {
	Get(ctx context.Context, credentialID models.CredentialID) (*models.Credential, error)
	GetByOwner(ctx context.Context, owner id.Address) (*models.Credential, error)
	Put(ctx context.Context, credential *models.Credential) error
}
