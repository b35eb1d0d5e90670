package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/booking"
	"ms-coaching/internal/booking/qr"
	"ms-coaching/internal/models"
	"ms-coaching/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	BookingService *booking.Service
	QR             *qr.Generator
}

// CreateBooking is called by the payment service (or the programmatic
// checkout flow) once capture is confirmed. The caller identity comes from
// the verified token, never from the body.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	req.ClientID = auth.UserID(r.Context())

	b, err := h.BookingService.Create(req)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", b))
}

// CreateBookingInternal accepts booking writes from other services after
// payment capture. The caller holds an m2m token, so the client identity
// travels in the body, already verified against the payment intent.
func (h *Handler) CreateBookingInternal(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	b, err := h.BookingService.Create(req)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", b))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	b, err := h.BookingService.Get(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking", b))
}

func (h *Handler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	b, err := h.BookingService.Accept(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking confirmed", b))
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	b, err := h.BookingService.Reject(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking rejected", b))
}

// CancelBooking reports refund eligibility in the response body; the actual
// reversal is triggered by the billing caller, not here.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	result, err := h.BookingService.Cancel(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", result))
}

func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	b, err := h.BookingService.Complete(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking completed", b))
}

func (h *Handler) ListClientBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.BookingService.ListForClient(auth.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list bookings", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Bookings", bookings))
}

func (h *Handler) ListMentorBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.BookingService.ListForMentor(auth.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list bookings", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Bookings", bookings))
}

// ListPendingBookings returns the mentor's decision queue.
func (h *Handler) ListPendingBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.BookingService.PendingForMentor(auth.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list pending bookings", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Pending bookings", bookings))
}

// BookingCheckInQR returns a PNG QR code the client shows at the session.
func (h *Handler) BookingCheckInQR(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	b, err := h.BookingService.Get(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if b.Status != models.BookingConfirmed {
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Check-in unavailable", "check-in codes exist for confirmed bookings only"))
		return
	}

	png, err := h.QR.GenerateCheckInQR(*b)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not generate check-in code", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// writeBookingError maps each error class to its own status and message so
// the client can tell whether money moved, the record moved, or the input
// was bad.
func writeBookingError(w http.ResponseWriter, err error) {
	var recErr *booking.ReconciliationError
	switch {
	case errors.As(err, &recErr):
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse(
			"Payment succeeded but booking creation failed - contact support with this payment reference",
			recErr.PaymentIntentID))
	case errors.Is(err, booking.ErrSelfBooking),
		errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidPrice),
		errors.Is(err, booking.ErrInvalidSessionType):
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid booking request", err.Error()))
	case errors.Is(err, booking.ErrBookingNotFound):
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking not found", err.Error()))
	case errors.Is(err, booking.ErrNotBookingParty), errors.Is(err, booking.ErrNotMentor):
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Not allowed", err.Error()))
	case errors.Is(err, booking.ErrStaleTransition):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Booking changed underneath you, reload and retry", err.Error()))
	case errors.Is(err, booking.ErrAlreadyTerminal),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrSessionNotEnded):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Transition not allowed", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Booking operation failed", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
