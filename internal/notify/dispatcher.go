package notify

import (
	"context"
	"fmt"

	"ms-coaching/internal/kafka"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"
	"ms-coaching/internal/notify/sse"
)

// Dispatcher bridges the booking event stream to the delivery channels:
// the SSE emitter for connected browsers and email for everyone else.
type Dispatcher struct {
	consumer *kafka.Consumer
	emitter  *sse.BookingEventEmitter
	email    *EmailNotifier
	log      *logger.Logger
}

func NewDispatcher(consumer *kafka.Consumer, emitter *sse.BookingEventEmitter, email *EmailNotifier, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		emitter:  emitter,
		email:    email,
		log:      log,
	}
}

// Run consumes booking events until the context is cancelled. Delivery is
// best effort on both channels; the booking record is the source of truth.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("NOTIFY", "Booking event dispatcher started")
	d.consumer.Start(ctx, d.handle)
	d.log.Info("NOTIFY", "Booking event dispatcher stopped")
}

func (d *Dispatcher) handle(event models.BookingEvent) {
	d.log.LogKafka("CONSUME", event.Type, fmt.Sprintf("booking=%s status=%s", event.BookingID, event.Status))

	d.emitter.EmitBookingEvent(event)

	if d.email != nil {
		if err := d.email.NotifyBookingEvent(event); err != nil {
			d.log.Warn("EMAIL", fmt.Sprintf("Failed to notify for booking %s: %v", event.BookingID, err))
		}
	}
}
