package review

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentUniqueConstraint = "review_documents_owner_period_key"

type Store struct {
	DB        *pgxpool.Pool
	TxTimeout time.Duration
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// WithTx runs fn in a transaction and commits when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	if s.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.TxTimeout)
		defer cancel()
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// mapError turns driver errors into the package's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02":
			// malformed uuid in a lookup
			return ErrNotFound
		case "23503":
			return &InputError{Field: pgErr.ConstraintName, Reason: "references a record that does not exist"}
		case "23505":
			if pgErr.ConstraintName == documentUniqueConstraint {
				return ErrDuplicateDocument
			}
			return ErrConflict
		}
	}
	return err
}
