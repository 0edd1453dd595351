package postgresengine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

var ErrNilDatabaseConnection = errors.New("database connection is nil")
var ErrNegativeLockTimeout = errors.New("lock timeout must not be negative")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingFailed = errors.New("querying reservations failed")
var ErrScanningRowFailed = errors.New("scanning db row failed")
var ErrExecFailed = errors.New("executing statement failed")
var ErrRowsAffectedFailed = errors.New("getting rows affected failed")
var ErrBeginTxFailed = errors.New("beginning transaction failed")
var ErrCommitFailed = errors.New("committing transaction failed")
var ErrDuplicateReservation = errors.New("reservation id already exists")
var ErrMarshalingAuditPayloadFailed = errors.New("marshaling audit event payload failed")

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
	sqlStateAdminShutdown        = "57P01"
	sqlStateCannotConnectNow     = "57P03"
	sqlClassConnectionException  = "08"
)

// classifyError attaches a reservation sentinel to a driver error so that callers can
// tell retryable infrastructure failures apart with reservation.IsRetryable.
// Both pgx and lib/pq errors are recognised.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, reservation.ErrStoreUnavailable) || errors.Is(err, reservation.ErrTransactionTimeout) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return errors.Join(reservation.ErrTransactionTimeout, err)
	}

	code := sqlState(err)

	switch {
	case code == sqlStateUniqueViolation:
		return errors.Join(ErrDuplicateReservation, err)
	case isTransientSQLState(code):
		return errors.Join(reservation.ErrStoreUnavailable, err)
	case code != "":
		return err
	}

	if isConnectionFailure(err) {
		return errors.Join(reservation.ErrStoreUnavailable, err)
	}

	return err
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

func isTransientSQLState(code string) bool {
	switch code {
	case sqlStateSerializationFailure,
		sqlStateDeadlockDetected,
		sqlStateLockNotAvailable,
		sqlStateQueryCanceled,
		sqlStateAdminShutdown,
		sqlStateCannotConnectNow:
		return true
	default:
		return strings.HasPrefix(code, sqlClassConnectionException)
	}
}

func isConnectionFailure(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}
