package postgresengine

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

const (
	dialectPostgres       = "postgres"
	tableResources        = "resources"
	tableReservations     = "reservations"
	tableReservationEvent = "reservation_events"
	colID                 = "id"
	colCapacity           = "capacity"
	colResourceID         = "resource_id"
	colHolderID           = "holder_id"
	colStartTime          = "start_time"
	colEndTime            = "end_time"
	colActive             = "active"
	colClosedAt           = "closed_at"
	colCreatedAt          = "created_at"
	colUpdatedAt          = "updated_at"
	colReservationID      = "reservation_id"
	colEventType          = "event_type"
	colOccurredAt         = "occurred_at"
	colPayload            = "payload"
	castJsonb             = "?::jsonb"
)

var reservationColumns = []any{
	colID,
	colResourceID,
	colHolderID,
	colStartTime,
	colEndTime,
	colActive,
	colClosedAt,
	colCreatedAt,
	colUpdatedAt,
}

func dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func buildSelectResourceQuery(resourceID reservation.ResourceID, forUpdate bool) (string, error) {
	builder := dialect().
		From(tableResources).
		Select(colID, colCapacity).
		Where(goqu.C(colID).Eq(resourceID.String()))

	if forUpdate {
		builder = builder.ForUpdate(exp.Wait)
	}

	sqlQuery, _, err := builder.ToSQL()

	return sqlQuery, err
}

func buildSelectReservationQuery(id reservation.ReservationID, forUpdate bool) (string, error) {
	builder := dialect().
		From(tableReservations).
		Select(reservationColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	if forUpdate {
		builder = builder.ForUpdate(exp.Wait)
	}

	sqlQuery, _, err := builder.ToSQL()

	return sqlQuery, err
}

func buildSelectByResourceQuery(resourceID reservation.ResourceID) (string, error) {
	sqlQuery, _, err := dialect().
		From(tableReservations).
		Select(reservationColumns...).
		Where(goqu.C(colResourceID).Eq(resourceID.String())).
		Order(goqu.C(colStartTime).Asc(), goqu.C(colID).Asc()).
		ToSQL()

	return sqlQuery, err
}

func buildSelectByHolderQuery(holderID reservation.HolderID) (string, error) {
	sqlQuery, _, err := dialect().
		From(tableReservations).
		Select(reservationColumns...).
		Where(goqu.C(colHolderID).Eq(holderID.String())).
		Order(goqu.C(colStartTime).Desc(), goqu.C(colID).Asc()).
		ToSQL()

	return sqlQuery, err
}

func buildInsertReservationQuery(r reservation.Reservation) (string, error) {
	var closedAt any
	if r.ClosedAt != nil {
		closedAt = r.ClosedAt.UTC()
	}

	sqlQuery, _, err := dialect().
		Insert(tableReservations).
		Rows(goqu.Record{
			colID:         r.ID.String(),
			colResourceID: r.ResourceID.String(),
			colHolderID:   r.HolderID.String(),
			colStartTime:  r.Window.Start.UTC(),
			colEndTime:    r.Window.End.UTC(),
			colActive:     r.Active,
			colClosedAt:   closedAt,
			colCreatedAt:  r.CreatedAt.UTC(),
			colUpdatedAt:  r.UpdatedAt.UTC(),
		}).
		ToSQL()

	return sqlQuery, err
}

func buildUpdateWindowEndQuery(id reservation.ReservationID, end time.Time, updatedAt time.Time) (string, error) {
	sqlQuery, _, err := dialect().
		Update(tableReservations).
		Set(goqu.Record{
			colEndTime:   end.UTC(),
			colUpdatedAt: updatedAt.UTC(),
		}).
		Where(
			goqu.C(colID).Eq(id.String()),
			goqu.C(colActive).IsTrue(),
		).
		ToSQL()

	return sqlQuery, err
}

func buildMarkClosedQuery(id reservation.ReservationID, closedAt time.Time, updatedAt time.Time) (string, error) {
	sqlQuery, _, err := dialect().
		Update(tableReservations).
		Set(goqu.Record{
			colActive:    false,
			colClosedAt:  closedAt.UTC(),
			colUpdatedAt: updatedAt.UTC(),
		}).
		Where(
			goqu.C(colID).Eq(id.String()),
			goqu.C(colActive).IsTrue(),
		).
		ToSQL()

	return sqlQuery, err
}

func buildInsertAuditEventQuery(
	reservationID reservation.ReservationID,
	eventType string,
	occurredAt time.Time,
	payload []byte,
) (string, error) {

	sqlQuery, _, err := dialect().
		Insert(tableReservationEvent).
		Rows(goqu.Record{
			colReservationID: reservationID.String(),
			colEventType:     eventType,
			colOccurredAt:    occurredAt.UTC(),
			colPayload:       goqu.L(castJsonb, string(payload)),
		}).
		ToSQL()

	return sqlQuery, err
}

func buildUpsertResourceQuery(resource reservation.Resource) (string, error) {
	sqlQuery, _, err := dialect().
		Insert(tableResources).
		Rows(goqu.Record{
			colID:       resource.ID.String(),
			colCapacity: resource.Capacity,
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{colCapacity: resource.Capacity})).
		ToSQL()

	return sqlQuery, err
}

// buildSetLockTimeoutStatement returns the statement that bounds lock waits for the current transaction.
// SET does not accept bind parameters, the value is formatted from an integer.
func buildSetLockTimeoutStatement(timeout time.Duration) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
}
