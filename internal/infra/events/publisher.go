// Package events publishes booking lifecycle events to the notification/CRM
// sink. Delivery is at-least-once and fire-and-forget from the engine's
// perspective; consumers dedupe by (bookingId, status, version).
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RKBookingCreated   = "booking.created"
	RKPaymentCaptured  = "booking.payment_captured"
	RKBookingConfirmed = "booking.confirmed"
	RKBookingReminded  = "booking.reminded"
	RKBookingCancelled = "booking.cancelled"
	RKBookingDelivered = "booking.delivered"
	RKBookingDisputed  = "booking.disputed"
	RKBookingNoShow    = "booking.no_show"
	RKCalendarConflict = "calendar.conflict"
)

// BookingSnapshot is the full booking projection carried on every event.
type BookingSnapshot struct {
	BookingID        uuid.UUID  `json:"booking_id"`
	ReferenceCode    string     `json:"reference_code"`
	ConsultantID     uuid.UUID  `json:"consultant_id"`
	ClientID         uuid.UUID  `json:"client_id"`
	StartAt          time.Time  `json:"start_at"`
	DurationMin      int32      `json:"duration_min"`
	ServiceType      string     `json:"service_type"`
	Status           string     `json:"status"`
	EscrowStatus     string     `json:"escrow_status"`
	AmountCents      int64      `json:"amount_cents"`
	Currency         string     `json:"currency"`
	PlatformFee      int64      `json:"platform_fee_cents"`
	ConsultantPayout int64      `json:"consultant_payout_cents"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	RescheduledFrom  *uuid.UUID `json:"rescheduled_from,omitempty"`
	Version          int64      `json:"version"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, snapshot BookingSnapshot)
}

// AMQPPublisher fans events out on a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish never fails the calling transaction: a broker outage loses nothing
// the consumer cannot recover from the next event, and booking state is the
// source of truth.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, snapshot BookingSnapshot) {
	body, err := marshalSnapshot(snapshot)
	if err != nil {
		slog.Error("failed to encode booking event", "routing_key", routingKey, "error", err.Error())
		return
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		slog.Error("failed to publish booking event",
			"routing_key", routingKey,
			"booking_id", snapshot.BookingID.String(),
			"error", err.Error())
	}
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, routingKey string, snapshot BookingSnapshot) {
	slog.Debug("booking event dropped (no broker configured)",
		"routing_key", routingKey,
		"booking_id", snapshot.BookingID.String())
}
