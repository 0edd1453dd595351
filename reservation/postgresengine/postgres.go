package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/postgresengine/internal/adapters"
)

const (
	defaultLockTimeout          = 2 * time.Second
	logMsgBuildQueryFailed      = "failed to build query"
	logMsgDBQueryFailed         = "database query execution failed"
	logMsgDBExecFailed          = "database statement execution failed"
	logMsgScanRowFailed         = "failed to scan database row"
	logMsgCloseRowsFailed       = "failed to close database rows"
	logMsgBeginTxFailed         = "failed to begin transaction"
	logMsgCommitFailed          = "failed to commit transaction"
	logMsgRollbackFailed        = "failed to roll back transaction"
	logMsgSetLockTimeoutFailed  = "failed to set lock timeout"
	logMsgAuditPayloadFailed    = "failed to marshal audit event payload"
	logMsgSQLExecuted           = "executed sql for: "
	logMsgOperation             = "reservation store operation: "
	logMsgTransactionCommitted  = "transaction committed"
	logMsgTransactionRolledBack = "transaction rolled back"
	logAttrError                = "error"
	logAttrQuery                = "query"
	logAttrDurationMS           = "duration_ms"
	logAttrRowsAffected         = "rows_affected"
	logActionLockTimeout        = "lock_timeout"
	logActionGetResource        = "get_resource"
	logActionLockResource       = "lock_resource"
	logActionFindByID           = "find_by_id"
	logActionLockReservation    = "lock_reservation"
	logActionFindByResource     = "find_by_resource"
	logActionFindByHolder       = "find_by_holder"
	logActionInsert             = "insert"
	logActionUpdateWindowEnd    = "update_window_end"
	logActionMarkClosed         = "mark_closed"
	logActionInsertAuditEvent   = "insert_audit_event"
	logActionUpsertResource     = "upsert_resource"
)

// Store is the PostgreSQL implementation of reservation.Store.
//
// Transactions run at READ COMMITTED. Serialisation of decisions on one resource comes from
// the row lock taken by LockResource, which the Resolver acquires before reading reservations.
type Store struct {
	db               adapters.DBAdapter
	lockTimeout      time.Duration
	auditTrail       bool
	logger           Logger
	contextualLogger ContextualLogger
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{
		db:          db,
		lockTimeout: defaultLockTimeout,
		auditTrail:  true,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// WithinTx runs fn in one database transaction. It commits iff fn returns nil,
// otherwise every statement executed through tx is rolled back.
func (s Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	start := time.Now()

	dbTx, err := s.db.BeginTx(ctx)
	if err != nil {
		s.logError(ctx, logMsgBeginTxFailed, err)
		return classifyError(errors.Join(ErrBeginTxFailed, err))
	}

	if s.lockTimeout > 0 {
		statement := buildSetLockTimeoutStatement(s.lockTimeout)
		if _, execErr := dbTx.Exec(ctx, statement); execErr != nil {
			s.logError(ctx, logMsgSetLockTimeoutFailed, execErr, logAttrQuery, statement)
			s.rollback(ctx, dbTx)

			return classifyError(errors.Join(ErrExecFailed, execErr))
		}
		s.logQueryWithDuration(ctx, statement, logActionLockTimeout, time.Since(start))
	}

	tx := &pgTx{store: s, dbTx: dbTx}

	if fnErr := fn(ctx, tx); fnErr != nil {
		tx.done = true
		s.rollback(ctx, dbTx)
		s.logOperation(ctx, logMsgTransactionRolledBack, logAttrDurationMS, toMilliseconds(time.Since(start)))

		return fnErr
	}

	tx.done = true

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		s.logError(ctx, logMsgCommitFailed, commitErr)

		return classifyError(errors.Join(ErrCommitFailed, commitErr))
	}

	s.logOperation(ctx, logMsgTransactionCommitted, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

// RegisterResource inserts the resource or updates its capacity.
// It is the catalog-side write used by fixtures and the simulation.
func (s Store) RegisterResource(ctx context.Context, resource reservation.Resource) error {
	if err := resource.Validate(); err != nil {
		return err
	}

	sqlQuery, err := buildUpsertResourceQuery(resource)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err)
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	return s.WithinTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		storeTx, ok := tx.(*pgTx)
		if !ok {
			return ErrExecFailed
		}

		_, execErr := storeTx.exec(ctx, sqlQuery, logActionUpsertResource)

		return execErr
	})
}

// rollback uses a context that survives cancellation of ctx, so a timed-out transaction is still closed.
func (s Store) rollback(ctx context.Context, dbTx adapters.DBTx) {
	if err := dbTx.Rollback(context.WithoutCancel(ctx)); err != nil {
		s.logError(ctx, logMsgRollbackFailed, err)
	}
}

var _ reservation.Store = Store{}
