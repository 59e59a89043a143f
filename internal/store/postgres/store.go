// Package postgres stores imported records in PostgreSQL.
//
// SQL is built with goqu's postgres dialect in prepared mode and executed
// through pgx, so values such as time.Time are encoded by pgx itself.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/clinicimport/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DefaultStatementTimeout bounds one query or insert when no timeout is configured.
const DefaultStatementTimeout = 10 * time.Second

var dialect = goqu.Dialect("postgres")

// Store implements core.Store over a pgx connection or pool.
type Store struct {
	db      DBTX
	tables  map[core.Kind]string
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithStatementTimeout sets the per-statement timeout. Zero or negative keeps the default.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a store writing each kind to the table named in tables.
func New(db DBTX, tables map[core.Kind]string, opts ...Option) *Store {
	s := &Store{
		db:      db,
		tables:  tables,
		timeout: DefaultStatementTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TablesFrom maps every kind in reg to its definition's table.
func TablesFrom(reg *core.Registry) map[core.Kind]string {
	tables := make(map[core.Kind]string)
	for _, def := range reg.All() {
		tables[def.Kind] = def.Table
	}
	return tables
}

func (s *Store) table(kind core.Kind) (string, error) {
	t, ok := s.tables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownKind, kind)
	}
	return t, nil
}

// QueryExisting returns every stored record of kind projected onto fields.
// NULL columns come back as nil values.
func (s *Store) QueryExisting(ctx context.Context, kind core.Kind, fields []string) ([]core.Record, error) {
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}

	cols := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = goqu.C(f)
	}

	query, args, err := dialect.From(table).Select(cols...).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select on %s: %w", table, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	records := make([]core.Record, len(maps))
	for i, m := range maps {
		records[i] = core.Record(m)
	}
	return records, nil
}

// InsertOne inserts rec as a single row. Database errors are returned
// unwrapped so their message reaches the row report as written.
func (s *Store) InsertOne(ctx context.Context, kind core.Kind, rec core.Record) error {
	table, err := s.table(kind)
	if err != nil {
		return err
	}

	query, args, err := dialect.Insert(table).Rows(goqu.Record(rec)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert into %s: %w", table, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.Exec(ctx, query, args...)
	return err
}
