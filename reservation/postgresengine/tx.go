package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/postgresengine/internal/adapters"
)

var ErrTxDone = errors.New("transaction has already been committed or rolled back")

// pgTx implements reservation.Tx on top of one database transaction.
type pgTx struct {
	store Store
	dbTx  adapters.DBTx
	done  bool
}

func (tx *pgTx) GetResource(ctx context.Context, resourceID reservation.ResourceID) (reservation.Resource, error) {
	return tx.selectResource(ctx, resourceID, false, logActionGetResource)
}

// LockResource takes a FOR UPDATE lock on the resource row, held until the transaction ends.
func (tx *pgTx) LockResource(ctx context.Context, resourceID reservation.ResourceID) (reservation.Resource, error) {
	return tx.selectResource(ctx, resourceID, true, logActionLockResource)
}

func (tx *pgTx) FindByID(ctx context.Context, id reservation.ReservationID) (reservation.Reservation, error) {
	return tx.selectReservation(ctx, id, false, logActionFindByID)
}

// LockReservation takes a FOR UPDATE lock on the reservation row, held until the transaction ends.
func (tx *pgTx) LockReservation(ctx context.Context, id reservation.ReservationID) (reservation.Reservation, error) {
	return tx.selectReservation(ctx, id, true, logActionLockReservation)
}

func (tx *pgTx) FindByResource(ctx context.Context, resourceID reservation.ResourceID) (reservation.Reservations, error) {
	sqlQuery, err := buildSelectByResourceQuery(resourceID)
	if err != nil {
		return nil, tx.buildFailed(ctx, err)
	}

	return tx.queryReservations(ctx, sqlQuery, logActionFindByResource)
}

func (tx *pgTx) FindByHolder(ctx context.Context, holderID reservation.HolderID) (reservation.Reservations, error) {
	sqlQuery, err := buildSelectByHolderQuery(holderID)
	if err != nil {
		return nil, tx.buildFailed(ctx, err)
	}

	return tx.queryReservations(ctx, sqlQuery, logActionFindByHolder)
}

func (tx *pgTx) Insert(ctx context.Context, r reservation.Reservation) error {
	sqlQuery, err := buildInsertReservationQuery(r)
	if err != nil {
		return tx.buildFailed(ctx, err)
	}

	if _, execErr := tx.exec(ctx, sqlQuery, logActionInsert); execErr != nil {
		return execErr
	}

	return tx.appendAuditEvent(ctx, r.ID, auditEventReservationCreated, r.UpdatedAt, createdPayload(r))
}

func (tx *pgTx) UpdateWindowEnd(ctx context.Context, id reservation.ReservationID, end time.Time, updatedAt time.Time) error {
	sqlQuery, err := buildUpdateWindowEndQuery(id, end, updatedAt)
	if err != nil {
		return tx.buildFailed(ctx, err)
	}

	rowsAffected, execErr := tx.exec(ctx, sqlQuery, logActionUpdateWindowEnd)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return tx.missingOrClosed(ctx, id)
	}

	return tx.appendAuditEvent(ctx, id, auditEventReservationExtended, updatedAt, extendedPayload(id, end.UTC()))
}

func (tx *pgTx) MarkClosed(ctx context.Context, id reservation.ReservationID, closedAt time.Time, updatedAt time.Time) error {
	sqlQuery, err := buildMarkClosedQuery(id, closedAt, updatedAt)
	if err != nil {
		return tx.buildFailed(ctx, err)
	}

	rowsAffected, execErr := tx.exec(ctx, sqlQuery, logActionMarkClosed)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return tx.missingOrClosed(ctx, id)
	}

	return tx.appendAuditEvent(ctx, id, auditEventReservationClosed, updatedAt, closedPayload(id, closedAt.UTC()))
}

func (tx *pgTx) selectResource(
	ctx context.Context,
	resourceID reservation.ResourceID,
	forUpdate bool,
	action string,
) (reservation.Resource, error) {

	sqlQuery, err := buildSelectResourceQuery(resourceID, forUpdate)
	if err != nil {
		return reservation.Resource{}, tx.buildFailed(ctx, err)
	}

	rows, err := tx.query(ctx, sqlQuery, action)
	if err != nil {
		return reservation.Resource{}, err
	}
	defer tx.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return reservation.Resource{}, tx.queryFailed(ctx, rowsErr, sqlQuery)
		}

		return reservation.Resource{}, reservation.ErrResourceNotFound
	}

	var resource reservation.Resource
	if scanErr := rows.Scan(&resource.ID, &resource.Capacity); scanErr != nil {
		tx.store.logError(ctx, logMsgScanRowFailed, scanErr)
		return reservation.Resource{}, errors.Join(ErrScanningRowFailed, scanErr)
	}

	return resource, nil
}

func (tx *pgTx) selectReservation(
	ctx context.Context,
	id reservation.ReservationID,
	forUpdate bool,
	action string,
) (reservation.Reservation, error) {

	sqlQuery, err := buildSelectReservationQuery(id, forUpdate)
	if err != nil {
		return reservation.Reservation{}, tx.buildFailed(ctx, err)
	}

	found, err := tx.queryReservations(ctx, sqlQuery, action)
	if err != nil {
		return reservation.Reservation{}, err
	}

	if len(found) == 0 {
		return reservation.Reservation{}, reservation.ErrReservationNotFound
	}

	return found[0], nil
}

func (tx *pgTx) queryReservations(ctx context.Context, sqlQuery string, action string) (reservation.Reservations, error) {
	rows, err := tx.query(ctx, sqlQuery, action)
	if err != nil {
		return nil, err
	}
	defer tx.closeRows(ctx, rows)

	result := make(reservation.Reservations, 0)
	for rows.Next() {
		r, scanErr := scanReservation(rows)
		if scanErr != nil {
			tx.store.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ErrScanningRowFailed, scanErr)
		}

		result = append(result, r)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, tx.queryFailed(ctx, rowsErr, sqlQuery)
	}

	return result, nil
}

func scanReservation(rows adapters.DBRows) (reservation.Reservation, error) {
	var r reservation.Reservation
	var closedAt *time.Time

	err := rows.Scan(
		&r.ID,
		&r.ResourceID,
		&r.HolderID,
		&r.Window.Start,
		&r.Window.End,
		&r.Active,
		&closedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return reservation.Reservation{}, err
	}

	r.Window.Start = r.Window.Start.UTC()
	r.Window.End = r.Window.End.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()

	if closedAt != nil {
		utc := closedAt.UTC()
		r.ClosedAt = &utc
	}

	return r, nil
}

// missingOrClosed tells apart the two reasons a guarded update can touch no row.
func (tx *pgTx) missingOrClosed(ctx context.Context, id reservation.ReservationID) error {
	current, err := tx.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !current.Active {
		return reservation.ErrAlreadyClosed
	}

	return ErrExecFailed
}

func (tx *pgTx) appendAuditEvent(
	ctx context.Context,
	id reservation.ReservationID,
	eventType string,
	occurredAt time.Time,
	payload auditPayload,
) error {

	if !tx.store.auditTrail {
		return nil
	}

	data, err := marshalAuditPayload(payload)
	if err != nil {
		tx.store.logError(ctx, logMsgAuditPayloadFailed, err)
		return err
	}

	sqlQuery, err := buildInsertAuditEventQuery(id, eventType, occurredAt, data)
	if err != nil {
		return tx.buildFailed(ctx, err)
	}

	_, err = tx.exec(ctx, sqlQuery, logActionInsertAuditEvent)

	return err
}

func (tx *pgTx) query(ctx context.Context, sqlQuery string, action string) (adapters.DBRows, error) {
	if tx.done {
		return nil, ErrTxDone
	}

	start := time.Now()
	rows, err := tx.dbTx.Query(ctx, sqlQuery)
	tx.store.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if err != nil {
		return nil, tx.queryFailed(ctx, err, sqlQuery)
	}

	return rows, nil
}

func (tx *pgTx) exec(ctx context.Context, sqlQuery string, action string) (int64, error) {
	if tx.done {
		return 0, ErrTxDone
	}

	start := time.Now()
	result, err := tx.dbTx.Exec(ctx, sqlQuery)
	tx.store.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if err != nil {
		tx.store.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return 0, classifyError(errors.Join(ErrExecFailed, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(ErrRowsAffectedFailed, err)
	}

	tx.store.logOperation(ctx, logMsgOperation+action, logAttrRowsAffected, rowsAffected)

	return rowsAffected, nil
}

func (tx *pgTx) queryFailed(ctx context.Context, err error, sqlQuery string) error {
	tx.store.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
	return classifyError(errors.Join(ErrQueryingFailed, err))
}

func (tx *pgTx) buildFailed(ctx context.Context, err error) error {
	tx.store.logError(ctx, logMsgBuildQueryFailed, err)
	return errors.Join(ErrBuildingQueryFailed, err)
}

func (tx *pgTx) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		tx.store.logError(ctx, logMsgCloseRowsFailed, err)
	}
}

var _ reservation.Tx = (*pgTx)(nil)
