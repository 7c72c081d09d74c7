package store

import (
	"context"
	"errors"
	"sync"

	"visitledger/internal/collection/models"
	"visitledger/internal/collection/ports"
	id "visitledger/pkg/domain"
	"visitledger/pkg/platform/sentinel"
)

var errBalanceOverflow = errors.New("balance overflow")

type balanceKey struct {
	holder id.Address
	class  models.ClassID
}

type operatorKey struct {
	holder   id.Address
	operator id.Address
}

type ledgerState struct {
	initialized bool
	balances    map[balanceKey]uint64
	operators   map[operatorKey]struct{}
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		balances:  make(map[balanceKey]uint64),
		operators: make(map[operatorKey]struct{}),
	}
}

func (st *ledgerState) clone() *ledgerState {
	out := &ledgerState{
		initialized: st.initialized,
		balances:    make(map[balanceKey]uint64, len(st.balances)),
		operators:   make(map[operatorKey]struct{}, len(st.operators)),
	}
	for k, v := range st.balances {
		out.balances[k] = v
	}
	for k := range st.operators {
		out.operators[k] = struct{}{}
	}
	return out
}

func (st *ledgerState) markInitialized() error {
	if st.initialized {
		return sentinel.ErrAlreadyUsed
	}
	st.initialized = true
	return nil
}

func (st *ledgerState) balancesOf(holders []id.Address, classes []models.ClassID) []uint64 {
	out := make([]uint64, len(holders))
	for i := range holders {
		out[i] = st.balances[balanceKey{holder: holders[i], class: classes[i]}]
	}
	return out
}

func (st *ledgerState) totalSupply(class models.ClassID) uint64 {
	var total uint64
	for k, v := range st.balances {
		if k.class == class {
			total += v
		}
	}
	return total
}

func (st *ledgerState) credit(holder id.Address, class models.ClassID, amount uint64) error {
	key := balanceKey{holder: holder, class: class}
	current := st.balances[key]
	if current+amount < current {
		return errBalanceOverflow
	}
	if current+amount == 0 {
		return nil
	}
	st.balances[key] = current + amount
	return nil
}

func (st *ledgerState) debit(holder id.Address, class models.ClassID, amount uint64) error {
	key := balanceKey{holder: holder, class: class}
	current := st.balances[key]
	if current < amount {
		return sentinel.ErrInsufficient
	}
	if current == amount {
		delete(st.balances, key)
		return nil
	}
	st.balances[key] = current - amount
	return nil
}

func (st *ledgerState) isOperator(holder, operator id.Address) bool {
	_, ok := st.operators[operatorKey{holder: holder, operator: operator}]
	return ok
}

func (st *ledgerState) setOperator(holder, operator id.Address, approved bool) {
	key := operatorKey{holder: holder, operator: operator}
	if approved {
		st.operators[key] = struct{}{}
		return
	}
	delete(st.operators, key)
}

// InMemoryStore keeps the ledger in process. Transactions mutate a staged copy
// that replaces the live ledger only when fn succeeds, so a rejected batch
// leaves every balance untouched and readers never see half a batch.
type InMemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *ledgerState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{state: newLedgerState()}
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

func (s *InMemoryStore) Initialized(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.initialized, nil
}

func (s *InMemoryStore) MarkInitialized(_ context.Context) error {
	return s.write(func(st *ledgerState) error { return st.markInitialized() })
}

func (s *InMemoryStore) Balance(_ context.Context, holder id.Address, class models.ClassID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[balanceKey{holder: holder, class: class}], nil
}

func (s *InMemoryStore) Balances(_ context.Context, holders []id.Address, classes []models.ClassID) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balancesOf(holders, classes), nil
}

func (s *InMemoryStore) TotalSupply(_ context.Context, class models.ClassID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.totalSupply(class), nil
}

func (s *InMemoryStore) Credit(_ context.Context, holder id.Address, class models.ClassID, amount uint64) error {
	return s.write(func(st *ledgerState) error { return st.credit(holder, class, amount) })
}

func (s *InMemoryStore) Debit(_ context.Context, holder id.Address, class models.ClassID, amount uint64) error {
	return s.write(func(st *ledgerState) error { return st.debit(holder, class, amount) })
}

func (s *InMemoryStore) IsOperator(_ context.Context, holder, operator id.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.isOperator(holder, operator), nil
}

func (s *InMemoryStore) SetOperator(_ context.Context, holder, operator id.Address, approved bool) error {
	return s.write(func(st *ledgerState) error {
		st.setOperator(holder, operator, approved)
		return nil
	})
}

// write applies a single mutation outside RunInTx, serialized with transactions.
func (s *InMemoryStore) write(fn func(st *ledgerState) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// stagedStore is the transaction-bound view, reachable only under txMu.
type stagedStore struct {
	state *ledgerState
}

func (s *stagedStore) Initialized(_ context.Context) (bool, error) {
	return s.state.initialized, nil
}

func (s *stagedStore) MarkInitialized(_ context.Context) error {
	return s.state.markInitialized()
}

func (s *stagedStore) Balance(_ context.Context, holder id.Address, class models.ClassID) (uint64, error) {
	return s.state.balances[balanceKey{holder: holder, class: class}], nil
}

func (s *stagedStore) Balances(_ context.Context, holders []id.Address, classes []models.ClassID) ([]uint64, error) {
	return s.state.balancesOf(holders, classes), nil
}

func (s *stagedStore) TotalSupply(_ context.Context, class models.ClassID) (uint64, error) {
	return s.state.totalSupply(class), nil
}

func (s *stagedStore) Credit(_ context.Context, holder id.Address, class models.ClassID, amount uint64) error {
	return s.state.credit(holder, class, amount)
}

func (s *stagedStore) Debit(_ context.Context, holder id.Address, class models.ClassID, amount uint64) error {
	return s.state.debit(holder, class, amount)
}

func (s *stagedStore) IsOperator(_ context.Context, holder, operator id.Address) (bool, error) {
	return s.state.isOperator(holder, operator), nil
}

func (s *stagedStore) SetOperator(_ context.Context, holder, operator id.Address, approved bool) error {
	s.state.setOperator(holder, operator, approved)
	return nil
}
