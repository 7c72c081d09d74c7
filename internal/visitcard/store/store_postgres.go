package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"visitledger/internal/visitcard/models"
	"visitledger/internal/visitcard/ports"
	id "visitledger/pkg/domain"
	"visitledger/pkg/platform/sentinel"
	txcontext "visitledger/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists visit cards in PostgreSQL.
// This store is pure I/O; the uniqueness and lock rules live in the service,
// with the owner UNIQUE constraint as the backstop for concurrent issuers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed visit card store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunInTx runs fn in one SQL transaction. The counter row is locked first, so
// issuances are totally ordered.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store ports.Store) error) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		var current int64
		err := txcontext.ExecutorFrom(ctx, s.db).
			QueryRowContext(ctx, `SELECT next_id FROM visit_card_counter WHERE id = 1 FOR UPDATE`).
			Scan(&current)
		if err != nil {
			return fmt.Errorf("lock visit card counter: %w", err)
		}
		return fn(ctx, s)
	})
}

func (s *PostgresStore) NextID(ctx context.Context) (models.CredentialID, error) {
	var allocated int64
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		UPDATE visit_card_counter
		SET next_id = next_id + 1
		WHERE id = 1
		RETURNING next_id - 1
	`).Scan(&allocated)
	if err != nil {
		return 0, fmt.Errorf("allocate visit card id: %w", err)
	}
	return models.CredentialID(allocated), nil
}

func (s *PostgresStore) Create(ctx context.Context, credential *models.Credential) error {
	query := `
		INSERT INTO visit_cards (id, owner, metadata_uri, name, external_id, course, period, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		int64(credential.ID),
		credential.Owner.Lower(),
		credential.Fields.MetadataURI,
		credential.Fields.Name,
		credential.Fields.ExternalID,
		credential.Fields.Course,
		credential.Fields.Period,
		credential.IssuedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visit card: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID models.CredentialID) (*models.Credential, error) {
	query := `
		SELECT id, owner, metadata_uri, name, external_id, course, period, issued_at
		FROM visit_cards
		WHERE id = $1
	`
	credential, err := scanCredential(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, int64(credentialID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find visit card by id: %w", err)
	}
	return credential, nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, owner id.Address) (*models.Credential, error) {
	query := `
		SELECT id, owner, metadata_uri, name, external_id, course, period, issued_at
		FROM visit_cards
		WHERE owner = $1
	`
	credential, err := scanCredential(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, owner.Lower()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find visit card by owner: %w", err)
	}
	return credential, nil
}

func scanCredential(row *sql.Row) (*models.Credential, error) {
	var (
		rawID    int64
		owner    string
		fields   models.Fields
		issuedAt time.Time
	)
	if err := row.Scan(&rawID, &owner, &fields.MetadataURI, &fields.Name, &fields.ExternalID,
		&fields.Course, &fields.Period, &issuedAt); err != nil {
		return nil, err
	}
	ownerAddr, err := id.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("parse stored owner: %w", err)
	}
	return &models.Credential{
		ID:       models.CredentialID(rawID),
		Owner:    ownerAddr,
		Fields:   fields,
		IssuedAt: issuedAt.UTC(),
	}, nil
}
