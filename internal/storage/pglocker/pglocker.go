package pglocker

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db dbtx
}

type Storage struct {
	*queries
	pool *pgxpool.Pool
}

var _ storage.Store = (*Storage)(nil)

func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{queries: &queries{db: pool}, pool: pool}
	if err := s.InitSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.pool.Ping(ctx), "ping pg")
}

func (s *Storage) RunInTx(ctx context.Context, fn func(ctx context.Context, q storage.Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// wrap maps driver errors onto the storage sentinels and adds op context.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(models.ErrNotFound, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Wrapf(models.ErrDuplicate, "%s: %s", op, pgErr.ConstraintName)
	}
	return errors.Wrap(err, op)
}

// affected turns a zero-row update into ErrNotFound.
func affected(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return wrap(err, op)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(models.ErrNotFound, op)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
