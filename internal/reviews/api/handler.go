package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/models"
	"ms-coaching/internal/reviews"
	"ms-coaching/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	ReviewService *reviews.Service
}

// SubmitReview records a review; the reviewer is the authenticated caller.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	review, err := h.ReviewService.Submit(auth.UserID(r.Context()), req)
	if err != nil {
		writeReviewError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Review recorded", review))
}

// ListUserReviews returns everything a user has received. Public: rating
// history is what makes the marketplace searchable.
func (h *Handler) ListUserReviews(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	list, err := h.ReviewService.ListForUser(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not list reviews", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Reviews", list))
}

// GetUserRating returns the live aggregate for a user.
func (h *Handler) GetUserRating(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	summary, err := h.ReviewService.Summary(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not compute rating", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Rating", summary))
}

// ListBookingReviews returns the reviews on one booking to its parties.
func (h *Handler) ListBookingReviews(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	list, err := h.ReviewService.ListForBooking(bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeReviewError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Reviews", list))
}

func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reviews.ErrInvalidRating):
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid review", err.Error()))
	case errors.Is(err, reviews.ErrBookingNotFound), errors.Is(err, reviews.ErrReviewNotFound):
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	case errors.Is(err, reviews.ErrNotBookingParty):
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Not allowed", err.Error()))
	case errors.Is(err, reviews.ErrBookingNotEnded):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Review unavailable", err.Error()))
	case errors.Is(err, reviews.ErrDuplicateReview):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Already reviewed", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Review operation failed", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
