package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"momo-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index guarding in-flight charges.
const uniqueViolation = "23505"

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByProviderReference(ctx context.Context, ref string) (*domain.Transaction, error)

	// FindInFlight returns a pending or successful transaction for the
	// owner, optionally narrowed to one purpose. A nil purpose matches any
	// purpose (onboarding fees guard owner-wide). Returns (nil, nil) when
	// no such row exists.
	FindInFlight(ctx context.Context, owner domain.OwnerRef, purpose *domain.Purpose) (*domain.Transaction, error)

	SetProviderReference(ctx context.Context, id, providerRef string, raw json.RawMessage) error
	SetRawCallback(ctx context.Context, id string, raw json.RawMessage) error

	// Transition moves a pending transaction to a terminal status. It is a
	// compare-and-swap on status='pending': a row already terminal yields
	// domain.ErrAlreadyFinal so duplicate notifications stay no-ops.
	Transition(ctx context.Context, id string, status domain.Status, raw json.RawMessage) error

	List(ctx context.Context, status *domain.Status, limit int) ([]*domain.Transaction, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `
	id, owner_type, owner_id, network, phone_number, amount, purpose,
	provider, provider_reference, status, raw_callback,
	created_at, updated_at, completed_at
`

func (r *transactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
        INSERT INTO momo_transactions (
            id, owner_type, owner_id, network, phone_number,
            amount, purpose, provider, status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `

	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.Owner.Type(),
		tx.Owner.ID(),
		tx.Network,
		tx.PhoneNumber,
		tx.Amount,
		tx.Purpose,
		tx.Provider,
		tx.Status,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateInProgress
	}
	return err
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM momo_transactions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *transactionRepo) GetByProviderReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM momo_transactions WHERE provider_reference = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, ref))
}

func (r *transactionRepo) FindInFlight(ctx context.Context, owner domain.OwnerRef, purpose *domain.Purpose) (*domain.Transaction, error) {
	query := `
        SELECT ` + transactionColumns + `
        FROM momo_transactions
        WHERE owner_type = $1 AND owner_id = $2
          AND status IN ('pending', 'successful')
          AND ($3::text IS NULL OR purpose = $3)
        ORDER BY created_at DESC
        LIMIT 1
    `

	tx, err := r.scanOne(r.db.QueryRow(ctx, query, owner.Type(), owner.ID(), purpose))
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, nil
	}
	return tx, err
}

func (r *transactionRepo) SetProviderReference(ctx context.Context, id, providerRef string, raw json.RawMessage) error {
	query := `
        UPDATE momo_transactions
        SET
            provider_reference = $2,
            raw_callback = COALESCE($3, raw_callback),
            updated_at = NOW()
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, id, providerRef, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepo) SetRawCallback(ctx context.Context, id string, raw json.RawMessage) error {
	query := `
        UPDATE momo_transactions
        SET raw_callback = $2, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepo) Transition(ctx context.Context, id string, status domain.Status, raw json.RawMessage) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot transition to non-terminal status %q", status)
	}

	query := `
        UPDATE momo_transactions
        SET
            status = $2,
            raw_callback = COALESCE($3, raw_callback),
            completed_at = NOW(),
            updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `

	tag, err := r.db.Exec(ctx, query, id, status, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the row does not exist or it already reached a terminal
		// state. Distinguish so notification handlers can ack duplicates.
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM momo_transactions WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrTransactionNotFound
		}
		return domain.ErrAlreadyFinal
	}
	return nil
}

func (r *transactionRepo) List(ctx context.Context, status *domain.Status, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT ` + transactionColumns + `
        FROM momo_transactions
        WHERE ($1::text IS NULL OR status = $1)
        ORDER BY created_at DESC
        LIMIT $2
    `

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *transactionRepo) scanOne(row pgx.Row) (*domain.Transaction, error) {
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx        domain.Transaction
		ownerType domain.OwnerType
		ownerID   string
	)

	err := row.Scan(
		&tx.ID,
		&ownerType,
		&ownerID,
		&tx.Network,
		&tx.PhoneNumber,
		&tx.Amount,
		&tx.Purpose,
		&tx.Provider,
		&tx.ProviderReference,
		&tx.Status,
		&tx.RawCallback,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	owner, err := domain.NewOwnerRef(ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("corrupt owner reference on transaction %s: %w", tx.ID, err)
	}
	tx.Owner = owner

	return &tx, nil
}
