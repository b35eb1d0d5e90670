package notify_api

import (
	"encoding/json"
	"fmt"
	"ms-coaching/internal/auth"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"
	"ms-coaching/internal/notify/sse"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BookingReader resolves bookings for stream access checks.
type BookingReader interface {
	GetBookingByID(id string) (*models.Booking, error)
}

// SSEHandler manages Server-Sent Events endpoints for booking events
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.BookingEventEmitter
	Bookings     BookingReader
}

// NewSSEHandler creates a new SSE handler for booking events
func NewSSEHandler(logger *logger.Logger, emitter *sse.BookingEventEmitter, bookings BookingReader) *SSEHandler {
	return &SSEHandler{
		Logger:       logger,
		EventEmitter: emitter,
		Bookings:     bookings,
	}
}

// HandleMentorBookings streams booking events for a specific mentor
func (h *SSEHandler) HandleMentorBookings(w http.ResponseWriter, r *http.Request) {
	mentorID := chi.URLParam(r, "mentorID")
	if mentorID == "" {
		http.Error(w, "Mentor ID is required", http.StatusBadRequest)
		return
	}

	// Only the mentor may watch their own stream
	err := h.verifyMentorAccess(r, mentorID)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Mentor access verification failed: %v", err))
		http.Error(w, "Unauthorized access", http.StatusUnauthorized)
		return
	}

	h.setupSSEHeaders(w)

	// Context cancels when the client disconnects
	ctx := r.Context()

	eventChan := h.EventEmitter.SubscribeToMentor(ctx, mentorID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"mentorID\":\"%s\"}\n\n", mentorID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to booking events for mentor: %s", mentorID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for mentor: %s", mentorID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: booking\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from mentor booking events for: %s", mentorID))
			return
		}
	}
}

// HandleBookingEvents streams status events for a single booking
func (h *SSEHandler) HandleBookingEvents(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	if bookingID == "" {
		http.Error(w, "Booking ID is required", http.StatusBadRequest)
		return
	}

	// Either party of the booking may watch it
	err := h.verifyBookingAccess(r, bookingID)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Booking access verification failed: %v", err))
		http.Error(w, "Unauthorized access", http.StatusUnauthorized)
		return
	}

	h.setupSSEHeaders(w)

	ctx := r.Context()

	eventChan := h.EventEmitter.SubscribeToBooking(ctx, bookingID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"bookingID\":\"%s\"}\n\n", bookingID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to events for booking: %s", bookingID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for booking: %s", bookingID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: booking\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from events for booking: %s", bookingID))
			return
		}
	}
}

// Helper function to set up SSE headers
func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "0")
	w.Header().Set("Referrer-Policy", "no-referrer")
}

// Helper function to verify mentor access
func (h *SSEHandler) verifyMentorAccess(r *http.Request, mentorID string) error {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return fmt.Errorf("failed to extract token: %w", err)
	}

	userID, err := auth.ExtractUserIDFromJWT(token)
	if err != nil {
		return fmt.Errorf("failed to extract user ID: %w", err)
	}

	if userID != mentorID {
		return fmt.Errorf("user %s may not watch booking events for mentor %s", userID, mentorID)
	}

	return nil
}

// Helper function to verify booking access
func (h *SSEHandler) verifyBookingAccess(r *http.Request, bookingID string) error {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return fmt.Errorf("failed to extract token: %w", err)
	}

	userID, err := auth.ExtractUserIDFromJWT(token)
	if err != nil {
		return fmt.Errorf("failed to extract user ID: %w", err)
	}

	booking, err := h.Bookings.GetBookingByID(bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}

	if userID != booking.ClientID && userID != booking.MentorID {
		return fmt.Errorf("user %s is not a party of booking %s", userID, bookingID)
	}

	return nil
}
