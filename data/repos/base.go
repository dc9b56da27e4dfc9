package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	q "cpm/data/queries"
)

var ErrNotFound = errors.New("no results found")

type Postgres struct {
	db *pgxpool.Pool
}

// copier is implemented by both the pool and a transaction
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// GetPostgresConnection opens a pool and pings it, so a bad connection string fails at startup
// and not on the first simulation that needs the database
func GetPostgresConnection(ctx context.Context, connectionString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("error parsing pgx connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error making new pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error reaching postgres at %s:%d: %w", config.ConnConfig.Host, config.ConnConfig.Port, err)
	}

	log.WithFields(log.Fields{"host": config.ConnConfig.Host, "database": config.ConnConfig.Database}).Info("Connected to postgres")
	return &Postgres{pool}, nil
}

func (pg *Postgres) Ping(ctx context.Context) error {
	return pg.db.Ping(ctx)
}

func (pg *Postgres) Close() {
	pg.db.Close()
}

// CreateTables runs the embedded schema, every statement is idempotent
func (pg *Postgres) CreateTables(ctx context.Context) error {
	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Schema.CreateTables)); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}
	return nil
}

// InTransaction runs fn in a transaction, committing when fn returns nil and rolling back otherwise
func (pg *Postgres) InTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := pg.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// BulkInsert streams rows into a table through the copy protocol
func BulkInsert(ctx context.Context, db copier, tableName string, columns []string, rows [][]any) (int64, error) {
	n, err := db.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("error copying %d rows into %s: %w", len(rows), tableName, err)
	}
	return n, nil
}

func Query[T any](ctx context.Context, pg *Postgres, query string, args pgx.NamedArgs) ([]T, error) {
	rows, err := pg.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("unable to query: %w", err)
	}

	// CollectRows closes rows
	res, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("error occured while collecting rows in query: %w", err)
	}

	return res, nil
}

func QuerySingle[T any](ctx context.Context, pg *Postgres, query string, args pgx.NamedArgs) (*T, error) {
	res, err := Query[T](ctx, pg, query, args)
	if err != nil {
		return nil, err
	}
	switch len(res) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &res[0], nil
	default:
		return nil, fmt.Errorf("expected a single result, found %d", len(res))
	}
}
