package postgresengine

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

const (
	auditEventReservationCreated  = "ReservationCreated"
	auditEventReservationClosed   = "ReservationClosedEarly"
	auditEventReservationExtended = "ReservationExtended"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// auditPayload is stored as jsonb in the reservation_events table.
// Only the fields that belong to the event type are set.
type auditPayload struct {
	ReservationID string     `json:"reservationId"`
	ResourceID    string     `json:"resourceId,omitempty"`
	HolderID      string     `json:"holderId,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

func createdPayload(r reservation.Reservation) auditPayload {
	start, end := r.Window.Start, r.Window.End

	return auditPayload{
		ReservationID: r.ID.String(),
		ResourceID:    r.ResourceID.String(),
		HolderID:      r.HolderID.String(),
		StartTime:     &start,
		EndTime:       &end,
	}
}

func extendedPayload(id reservation.ReservationID, end time.Time) auditPayload {
	return auditPayload{
		ReservationID: id.String(),
		EndTime:       &end,
	}
}

func closedPayload(id reservation.ReservationID, closedAt time.Time) auditPayload {
	return auditPayload{
		ReservationID: id.String(),
		ClosedAt:      &closedAt,
	}
}

func marshalAuditPayload(payload auditPayload) ([]byte, error) {
	data, err := jsonAPI.Marshal(payload)
	if err != nil {
		return nil, errors.Join(ErrMarshalingAuditPayloadFailed, err)
	}

	return data, nil
}
