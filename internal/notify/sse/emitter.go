package sse

import (
	"context"
	"sync"

	"ms-coaching/internal/models"
)

// BookingEventEmitter manages SSE connections and event broadcasting for
// booking lifecycle events. Mentors subscribe to their own stream to see
// incoming requests live; clients subscribe per booking.
type BookingEventEmitter struct {
	// key: mentorID, value: slice of client channels
	mentorClients     map[string][]chan models.BookingEvent
	mentorClientMutex sync.RWMutex

	// key: bookingID, value: slice of client channels
	bookingClients     map[string][]chan models.BookingEvent
	bookingClientMutex sync.RWMutex
}

func NewBookingEventEmitter() *BookingEventEmitter {
	return &BookingEventEmitter{
		mentorClients:  make(map[string][]chan models.BookingEvent),
		bookingClients: make(map[string][]chan models.BookingEvent),
	}
}

// SubscribeToMentor adds a client to the mentor's booking event stream.
func (e *BookingEventEmitter) SubscribeToMentor(ctx context.Context, mentorID string) chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, 10)

	e.mentorClientMutex.Lock()
	e.mentorClients[mentorID] = append(e.mentorClients[mentorID], clientChan)
	e.mentorClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeMentorClient(mentorID, clientChan)
	}()

	return clientChan
}

// SubscribeToBooking adds a client to a single booking's event stream.
func (e *BookingEventEmitter) SubscribeToBooking(ctx context.Context, bookingID string) chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, 10)

	e.bookingClientMutex.Lock()
	e.bookingClients[bookingID] = append(e.bookingClients[bookingID], clientChan)
	e.bookingClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeBookingClient(bookingID, clientChan)
	}()

	return clientChan
}

// EmitBookingEvent broadcasts a lifecycle event to all subscribed clients.
// Sends stay under the read lock: removal closes channels under the write
// lock, so a send can never hit a channel mid-close. The sends are
// non-blocking, so holding the lock costs nothing.
func (e *BookingEventEmitter) EmitBookingEvent(event models.BookingEvent) {
	e.mentorClientMutex.RLock()
	for _, clientChan := range e.mentorClients[event.MentorID] {
		// Non-blocking send so a slow consumer never stalls the emitter
		select {
		case clientChan <- event:
		default:
		}
	}
	e.mentorClientMutex.RUnlock()

	e.bookingClientMutex.RLock()
	for _, clientChan := range e.bookingClients[event.BookingID] {
		select {
		case clientChan <- event:
		default:
		}
	}
	e.bookingClientMutex.RUnlock()
}

func (e *BookingEventEmitter) removeMentorClient(mentorID string, clientChan chan models.BookingEvent) {
	e.mentorClientMutex.Lock()
	defer e.mentorClientMutex.Unlock()

	clients := e.mentorClients[mentorID]
	for i, ch := range clients {
		if ch == clientChan {
			e.mentorClients[mentorID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.mentorClients[mentorID]) == 0 {
		delete(e.mentorClients, mentorID)
	}
}

func (e *BookingEventEmitter) removeBookingClient(bookingID string, clientChan chan models.BookingEvent) {
	e.bookingClientMutex.Lock()
	defer e.bookingClientMutex.Unlock()

	clients := e.bookingClients[bookingID]
	for i, ch := range clients {
		if ch == clientChan {
			e.bookingClients[bookingID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.bookingClients[bookingID]) == 0 {
		delete(e.bookingClients, bookingID)
	}
}

// GetMentorClientCount returns the number of live subscriptions for a mentor.
func (e *BookingEventEmitter) GetMentorClientCount(mentorID string) int {
	e.mentorClientMutex.RLock()
	defer e.mentorClientMutex.RUnlock()
	return len(e.mentorClients[mentorID])
}
