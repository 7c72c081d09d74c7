// Package ports declares the storage contracts the collection service depends on.
package ports

import (
	"context"

	"visitledger/internal/collection/models"
	id "visitledger/pkg/domain"
)

// Store is pure I/O over the ledger: the initialization flag, balances and
// operator approvals. Absent balances read as zero. Debit returns
// sentinel.ErrInsufficient rather than going negative; MarkInitialized returns
// sentinel.ErrAlreadyUsed when the flag is already set.
type Store interface {
	Initialized(ctx context.Context) (bool, error)
	MarkInitialized(ctx context.Context) error

	Balance(ctx context.Context, holder id.Address, class models.ClassID) (uint64, error)
	Balances(ctx context.Context, holders []id.Address, classes []models.ClassID) ([]uint64, error)
	TotalSupply(ctx context.Context, class models.ClassID) (uint64, error)
	Credit(ctx context.Context, holder id.Address, class models.ClassID, amount uint64) error
	Debit(ctx context.Context, holder id.Address, class models.ClassID, amount uint64) error

	IsOperator(ctx context.Context, holder, operator id.Address) (bool, error)
	SetOperator(ctx context.Context, holder, operator id.Address, approved bool) error
}

// StoreTx runs fn as one all-or-nothing step against the ledger.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
