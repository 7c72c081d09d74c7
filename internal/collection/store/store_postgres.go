package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/lib/pq"

	"visitledger/internal/collection/models"
	"visitledger/internal/collection/ports"
	id "visitledger/pkg/domain"
	"visitledger/pkg/platform/sentinel"
	txcontext "visitledger/pkg/platform/tx"
)

var errAmountRange = errors.New("amount exceeds storable range")

// PostgresStore persists the collection ledger in PostgreSQL.
// This store is pure I/O; sufficiency and authorization are checked by the
// service, with the amount >= 0 CHECK constraint as the backstop.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed collection store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunInTx runs fn in one SQL transaction. The single collection_state row is
// locked first, which gives all ledger mutations one total order.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		var initialized bool
		err := txcontext.ExecutorFrom(ctx, s.db).
			QueryRowContext(ctx, `SELECT initialized FROM collection_state WHERE id = 1 FOR UPDATE`).
			Scan(&initialized)
		if err != nil {
			return fmt.Errorf("lock collection state: %w", err)
		}
		return fn(ctx, s)
	})
}

func (s *PostgresStore) Initialized(ctx context.Context) (bool, error) {
	var initialized bool
	err := txcontext.ExecutorFrom(ctx, s.db).
		QueryRowContext(ctx, `SELECT initialized FROM collection_state WHERE id = 1`).
		Scan(&initialized)
	if err != nil {
		return false, fmt.Errorf("read collection state: %w", err)
	}
	return initialized, nil
}

func (s *PostgresStore) MarkInitialized(ctx context.Context) error {
	result, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE collection_state
		SET initialized = TRUE, initialized_at = NOW()
		WHERE id = 1 AND NOT initialized
	`)
	if err != nil {
		return fmt.Errorf("mark collection initialized: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark collection initialized: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, holder id.Address, class models.ClassID) (uint64, error) {
	var amount int64
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT amount FROM collection_balances WHERE holder = $1 AND class_id = $2
	`, holder.Lower(), int64(class)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return uint64(amount), nil
}

// Balances reads every (holder, class) pair in one round trip.
func (s *PostgresStore) Balances(ctx context.Context, holders []id.Address, classes []models.ClassID) ([]uint64, error) {
	holderKeys := make([]string, len(holders))
	for i, h := range holders {
		holderKeys[i] = h.Lower()
	}
	classKeys := make([]int64, len(classes))
	for i, c := range classes {
		classKeys[i] = int64(c)
	}

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT holder, class_id, amount
		FROM collection_balances
		WHERE holder = ANY($1) AND class_id = ANY($2)
	`, pq.Array(holderKeys), pq.Array(classKeys))
	if err != nil {
		return nil, fmt.Errorf("read balances: %w", err)
	}
	defer rows.Close()

	type key struct {
		holder string
		class  int64
	}
	found := make(map[key]uint64)
	for rows.Next() {
		var (
			k      key
			amount int64
		)
		if err := rows.Scan(&k.holder, &k.class, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		found[k] = uint64(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}

	out := make([]uint64, len(holders))
	for i := range holders {
		out[i] = found[key{holder: holderKeys[i], class: classKeys[i]}]
	}
	return out, nil
}

func (s *PostgresStore) TotalSupply(ctx context.Context, class models.ClassID) (uint64, error) {
	var total int64
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM collection_balances WHERE class_id = $1
	`, int64(class)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("read total supply: %w", err)
	}
	return uint64(total), nil
}

func (s *PostgresStore) Credit(ctx context.Context, holder id.Address, class models.ClassID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if amount > math.MaxInt64 {
		return errAmountRange
	}
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO collection_balances (holder, class_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder, class_id) DO UPDATE SET
			amount = collection_balances.amount + EXCLUDED.amount
	`, holder.Lower(), int64(class), int64(amount))
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Debit subtracts amount only when the balance covers it, in one statement.
func (s *PostgresStore) Debit(ctx context.Context, holder id.Address, class models.ClassID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if amount > math.MaxInt64 {
		return sentinel.ErrInsufficient
	}
	result, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE collection_balances
		SET amount = amount - $3
		WHERE holder = $1 AND class_id = $2 AND amount >= $3
	`, holder.Lower(), int64(class), int64(amount))
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInsufficient
	}
	return nil
}

func (s *PostgresStore) IsOperator(ctx context.Context, holder, operator id.Address) (bool, error) {
	var exists bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM collection_operators WHERE holder = $1 AND operator = $2)
	`, holder.Lower(), operator.Lower()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("read operator approval: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SetOperator(ctx context.Context, holder, operator id.Address, approved bool) error {
	query := `DELETE FROM collection_operators WHERE holder = $1 AND operator = $2`
	if approved {
		query = `
			INSERT INTO collection_operators (holder, operator)
			VALUES ($1, $2)
			ON CONFLICT (holder, operator) DO NOTHING
		`
	}
	if _, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, holder.Lower(), operator.Lower()); err != nil {
		return fmt.Errorf("set operator approval: %w", err)
	}
	return nil
}
