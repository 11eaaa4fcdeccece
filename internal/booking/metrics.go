package booking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/metinatakli/seat-booking/internal/booking"

type metrics struct {
	requests      metric.Int64Counter
	cancellations metric.Int64Counter
	promotions    metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentationName)

	requests, err := meter.Int64Counter("booking.requests",
		metric.WithDescription("Booking requests by outcome"))
	if err != nil {
		return nil, err
	}

	cancellations, err := meter.Int64Counter("booking.cancellations",
		metric.WithDescription("Cancelled bookings"))
	if err != nil {
		return nil, err
	}

	promotions, err := meter.Int64Counter("waitlist.promotions",
		metric.WithDescription("Waiting bookings confirmed after seats were freed"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		requests:      requests,
		cancellations: cancellations,
		promotions:    promotions,
	}, nil
}

func (m *metrics) recordRequest(ctx context.Context, outcome string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
