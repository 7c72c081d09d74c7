//go:build integration

package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"visitledger/internal/collection/models"
	"visitledger/internal/collection/ports"
	id "visitledger/pkg/domain"
	"visitledger/pkg/platform/sentinel"
	"visitledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(s.ctx))
}

func (s *PostgresStoreSuite) TestInitializationFlag() {
	initialized, err := s.store.Initialized(s.ctx)
	s.Require().NoError(err)
	s.False(initialized)

	s.Require().NoError(s.store.MarkInitialized(s.ctx))
	s.ErrorIs(s.store.MarkInitialized(s.ctx), sentinel.ErrAlreadyUsed)

	initialized, err = s.store.Initialized(s.ctx)
	s.Require().NoError(err)
	s.True(initialized)
}

func (s *PostgresStoreSuite) TestCreditDebit() {
	s.Require().NoError(s.store.Credit(s.ctx, holder(1), 2, 5))
	s.Require().NoError(s.store.Credit(s.ctx, holder(1), 2, 3))
	s.Require().NoError(s.store.Debit(s.ctx, holder(1), 2, 6))

	balance, err := s.store.Balance(s.ctx, holder(1), 2)
	s.Require().NoError(err)
	s.Equal(uint64(2), balance)

	s.ErrorIs(s.store.Debit(s.ctx, holder(1), 2, 3), sentinel.ErrInsufficient)
	s.ErrorIs(s.store.Debit(s.ctx, holder(9), 2, 1), sentinel.ErrInsufficient)
	s.NoError(s.store.Debit(s.ctx, holder(9), 2, 0))

	balance, err = s.store.Balance(s.ctx, holder(1), 2)
	s.Require().NoError(err)
	s.Equal(uint64(2), balance, "failed debit leaves balance unchanged")
}

func (s *PostgresStoreSuite) TestCreditOverflow() {
	s.Require().NoError(s.store.Credit(s.ctx, holder(1), 0, math.MaxInt64))
	s.Error(s.store.Credit(s.ctx, holder(1), 0, 1))
}

func (s *PostgresStoreSuite) TestBalancesAndTotalSupply() {
	s.Require().NoError(s.store.Credit(s.ctx, holder(1), 0, 1))
	s.Require().NoError(s.store.Credit(s.ctx, holder(2), 0, 4))
	s.Require().NoError(s.store.Credit(s.ctx, holder(2), 1, 7))

	balances, err := s.store.Balances(s.ctx,
		[]id.Address{holder(2), holder(1), holder(3), holder(2)},
		[]models.ClassID{1, 0, 0, 0},
	)
	s.Require().NoError(err)
	s.Equal([]uint64{7, 1, 0, 4}, balances)

	supply, err := s.store.TotalSupply(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(uint64(5), supply)

	supply, err = s.store.TotalSupply(s.ctx, 8)
	s.Require().NoError(err)
	s.Zero(supply)
}

func (s *PostgresStoreSuite) TestOperators() {
	approved, err := s.store.IsOperator(s.ctx, holder(1), holder(2))
	s.Require().NoError(err)
	s.False(approved)

	s.Require().NoError(s.store.SetOperator(s.ctx, holder(1), holder(2), true))
	s.Require().NoError(s.store.SetOperator(s.ctx, holder(1), holder(2), true))
	approved, err = s.store.IsOperator(s.ctx, holder(1), holder(2))
	s.Require().NoError(err)
	s.True(approved)

	approved, err = s.store.IsOperator(s.ctx, holder(2), holder(1))
	s.Require().NoError(err)
	s.False(approved, "approval is directional")

	s.Require().NoError(s.store.SetOperator(s.ctx, holder(1), holder(2), false))
	approved, err = s.store.IsOperator(s.ctx, holder(1), holder(2))
	s.Require().NoError(err)
	s.False(approved)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBack() {
	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, store ports.Store) error {
		s.Require().NoError(store.Credit(ctx, holder(1), 0, 10))
		s.Require().NoError(store.MarkInitialized(ctx))
		return boom
	})
	s.ErrorIs(err, boom)

	balance, err := s.store.Balance(s.ctx, holder(1), 0)
	s.Require().NoError(err)
	s.Zero(balance)
	initialized, err := s.store.Initialized(s.ctx)
	s.Require().NoError(err)
	s.False(initialized)
}

func (s *PostgresStoreSuite) TestConcurrentDebitsNeverOverspend() {
	s.Require().NoError(s.store.Credit(s.ctx, holder(1), 3, 10))

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(s.ctx, func(ctx context.Context, store ports.Store) error {
				balance, err := store.Balance(ctx, holder(1), 3)
				if err != nil {
					return err
				}
				if balance < 1 {
					return sentinel.ErrInsufficient
				}
				if err := store.Debit(ctx, holder(1), 3, 1); err != nil {
					return err
				}
				return store.Credit(ctx, holder(2), 3, 1)
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(10), succeeded.Load())
	supply, err := s.store.TotalSupply(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(uint64(10), supply)
}
