// Package postgresstore implements the kvstore.Store interface on a Postgres
// table, so the engine's ledger snapshot lives in one database row.
//
// Expected schema (the table name is configurable via WithTableName):
//
//	CREATE TABLE snapshots (
//	    key        TEXT PRIMARY KEY,
//	    value      JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// Values must be valid JSON; the engine's snapshot blob always is.
package postgresstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore/postgresstore/internal/adapters"
)

var (
	// ErrNilDatabaseConnection is returned when a nil connection handle is supplied.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when an empty table name is configured.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrBuildingQueryFailed is returned when SQL generation fails.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrLoadingValueFailed is returned when reading a snapshot row fails.
	ErrLoadingValueFailed = errors.New("loading value failed")

	// ErrSavingValueFailed is returned when upserting a snapshot row fails.
	ErrSavingValueFailed = errors.New("saving value failed")
)

const (
	defaultTableName = "snapshots"

	colKey       = "key"
	colValue     = "value"
	colUpdatedAt = "updated_at"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
	exprNow         = "now()"

	logMsgValueLoaded      = "snapshot value loaded"
	logMsgValueSaved       = "snapshot value saved"
	logMsgDBQueryFailed    = "database query execution failed"
	logMsgDBExecFailed     = "database execution failed during save"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan database row"
	logAttrError           = "error"
	logAttrKey             = "store_key"
	logAttrValueSizeBytes  = "value_size_bytes"
)

// Logger interface for SQL logging, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store is a Postgres-backed key-value store for ledger snapshots.
// It leverages a database adapter and supports customizable logging and
// table configuration.
type Store struct {
	db        adapters.DBAdapter
	tableName string
	logger    Logger
}

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithTableName sets the table name for the Store.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStoreFromPGXPool creates a Store using a pgx pool with optional configuration.
func NewStoreFromPGXPool(pool *pgxpool.Pool, options ...Option) (Store, error) {
	if pool == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(pool), options...)
}

// NewStoreFromSQLX creates a Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	store := Store{
		db:        db,
		tableName: defaultTableName,
	}

	for _, option := range options {
		if err := option(&store); err != nil {
			return Store{}, err
		}
	}

	return store, nil
}

// Get reads the value stored under the key. A missing row reports
// found=false, not an error.
func (s Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colValue).
		Where(goqu.C(colKey).Eq(key)).
		ToSQL()
	if buildErr != nil {
		return nil, false, errors.Join(ErrBuildingQueryFailed, buildErr)
	}

	rows, queryErr := s.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrKey, key)
		}

		return nil, false, errors.Join(ErrLoadingValueFailed, queryErr)
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return nil, false, nil
	}

	var value []byte
	if scanErr := rows.Scan(&value); scanErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgScanRowFailed, logAttrError, scanErr.Error(), logAttrKey, key)
		}

		return nil, false, errors.Join(ErrLoadingValueFailed, scanErr)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgValueLoaded, logAttrKey, key, logAttrValueSizeBytes, len(value))
	}

	return value, true, nil
}

// Set upserts the value under the key.
func (s Store) Set(ctx context.Context, key string, value []byte) error {
	record := goqu.Record{
		colKey:       key,
		colValue:     goqu.L(castJsonb, string(value)),
		colUpdatedAt: goqu.L(exprNow),
	}

	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Rows(record).
		OnConflict(goqu.DoUpdate(colKey, goqu.Record{
			colValue:     goqu.L(castJsonb, string(value)),
			colUpdatedAt: goqu.L(exprNow),
		})).
		ToSQL()
	if buildErr != nil {
		return errors.Join(ErrBuildingQueryFailed, buildErr)
	}

	if _, execErr := s.db.Exec(ctx, sqlQuery); execErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrKey, key)
		}

		return errors.Join(ErrSavingValueFailed, execErr)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgValueSaved, logAttrKey, key, logAttrValueSizeBytes, len(value))
	}

	return nil
}

func (s Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// Ensure Store satisfies the engine's store interface.
var _ kvstore.Store = Store{}
