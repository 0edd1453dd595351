package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/memengine"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/oteladapters"
	. "github.com/AntonStoeckl/reservation-engine-go/testutil/helper" //nolint:revive
)

func Test_Resolver_WithOTelAdapters_RecordsSpansMetricsAndLogs(t *testing.T) {
	// setup
	ctx := context.Background()
	tracer, exporter := newRecordingTracer(t)
	meter, reader := newManualMeter(t)
	var logs bytes.Buffer

	store, err := memengine.NewStore()
	require.NoError(t, err)

	resolver, err := reservation.NewResolver(
		store,
		reservation.WithClock(reservation.NewFixedClock(FixtureBaseTime())),
		reservation.WithTracing(oteladapters.NewTracingCollector(tracer)),
		reservation.WithMetrics(oteladapters.NewMetricsCollector(meter)),
		reservation.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler("reservations", slog.NewJSONHandler(&logs, nil))),
	)
	require.NoError(t, err)

	// arrange
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	window := GivenWindow(t, FixtureBaseTime(), 0, time.Hour)

	// act
	_, createErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), window.Start, window.End))
	_, rejectedErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), window.Start, window.End))

	// assert
	require.NoError(t, createErr)
	assert.ErrorIs(t, rejectedErr, reservation.ErrCapacityExceeded)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, reservation.SpanNameCreate, spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assertSpanHasAttribute(t, spans[1], reservation.AttrFailureKind, reservation.FailureCapacityExceeded.String())

	resourceMetrics := collect(t, reader)
	assert.Len(t, findCounterMetric(t, resourceMetrics, reservation.MetricOperations).DataPoints, 2, "one series per status")
	rejections := findCounterMetric(t, resourceMetrics, reservation.MetricRejections)
	require.Len(t, rejections.DataPoints, 1)
	assert.Equal(t, int64(1), rejections.DataPoints[0].Value)

	assert.Contains(t, logs.String(), `"msg":"reservation created"`)
	assert.Contains(t, logs.String(), `"msg":"reservation operation rejected"`)
}
