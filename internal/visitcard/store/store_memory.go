package store

import (
	"context"
	"sync"

	"visitledger/internal/visitcard/models"
	"visitledger/internal/visitcard/ports"
	id "visitledger/pkg/domain"
	"visitledger/pkg/platform/sentinel"
)

// registryState is the whole registry: counter, credentials, owner index.
type registryState struct {
	nextID      models.CredentialID
	credentials map[models.CredentialID]models.Credential
	byOwner     map[id.Address]models.CredentialID
}

func newRegistryState() *registryState {
	return &registryState{
		nextID:      models.FirstCredentialID,
		credentials: make(map[models.CredentialID]models.Credential),
		byOwner:     make(map[id.Address]models.CredentialID),
	}
}

func (st *registryState) clone() *registryState {
	out := &registryState{
		nextID:      st.nextID,
		credentials: make(map[models.CredentialID]models.Credential, len(st.credentials)),
		byOwner:     make(map[id.Address]models.CredentialID, len(st.byOwner)),
	}
	for k, v := range st.credentials {
		out.credentials[k] = v
	}
	for k, v := range st.byOwner {
		out.byOwner[k] = v
	}
	return out
}

func (st *registryState) nextCredentialID() models.CredentialID {
	allocated := st.nextID
	st.nextID++
	return allocated
}

func (st *registryState) create(credential *models.Credential) error {
	if _, taken := st.byOwner[credential.Owner]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := st.credentials[credential.ID]; taken {
		return sentinel.ErrConflict
	}
	st.credentials[credential.ID] = *credential
	st.byOwner[credential.Owner] = credential.ID
	return nil
}

func (st *registryState) findByID(credentialID models.CredentialID) (*models.Credential, error) {
	credential, ok := st.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &credential, nil
}

func (st *registryState) findByOwner(owner id.Address) (*models.Credential, error) {
	credentialID, ok := st.byOwner[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return st.findByID(credentialID)
}

// InMemoryStore keeps registry state in process. Transactions run against a
// staged copy that replaces the live state only on success, so readers never
// see a half-applied issuance.
type InMemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *registryState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{state: newRegistryState()}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	staged := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &stagedStore{state: staged}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = staged
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) NextID(_ context.Context) (models.CredentialID, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.nextCredentialID(), nil
}

func (s *InMemoryStore) Create(_ context.Context, credential *models.Credential) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.create(credential)
}

func (s *InMemoryStore) FindByID(_ context.Context, credentialID models.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByID(credentialID)
}

func (s *InMemoryStore) FindByOwner(_ context.Context, owner id.Address) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByOwner(owner)
}

// stagedStore is the transaction-bound view. It is only reachable while the
// owning InMemoryStore holds txMu, so it needs no locking of its own.
type stagedStore struct {
	state *registryState
}

func (s *stagedStore) NextID(_ context.Context) (models.CredentialID, error) {
	return s.state.nextCredentialID(), nil
}

func (s *stagedStore) Create(_ context.Context, credential *models.Credential) error {
	return s.state.create(credential)
}

func (s *stagedStore) FindByID(_ context.Context, credentialID models.CredentialID) (*models.Credential, error) {
	return s.state.findByID(credentialID)
}

func (s *stagedStore) FindByOwner(_ context.Context, owner id.Address) (*models.Credential, error) {
	return s.state.findByOwner(owner)
}
