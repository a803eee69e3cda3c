package notifications

import "github.com/jackc/pgx/v5/pgxpool"

// Store keeps notifications and the per-tenant email settings in Postgres.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}
