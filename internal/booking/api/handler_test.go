package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/booking"
	"ms-coaching/internal/booking/api"
	bookingdb "ms-coaching/internal/booking/db"
	"ms-coaching/internal/booking/qr"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupRouter(t *testing.T) chi.Router {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = bunDB.NewCreateTable().Model((*models.Booking)(nil)).Exec(context.Background())
	require.NoError(t, err)

	svc := booking.NewService(&bookingdb.DB{Bun: bunDB}, nil, logger.NewLogger())
	handler := &api.Handler{BookingService: svc, QR: qr.NewGenerator("test-secret")}

	r := chi.NewRouter()
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", handler.CreateBooking)
		r.Get("/{bookingId}", handler.GetBooking)
		r.Post("/{bookingId}/accept", handler.AcceptBooking)
	})
	return r
}

// authedRequest builds a request whose identity was already resolved, the
// way the OIDC middleware hands it down.
func authedRequest(t *testing.T, method, target, userID string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func decodeBooking(t *testing.T, body *bytes.Buffer) models.Booking {
	var resp struct {
		Success bool           `json:"success"`
		Data    models.Booking `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestCreateBookingTakesClientFromToken(t *testing.T) {
	router := setupRouter(t)

	req := authedRequest(t, http.MethodPost, "/bookings/", "client1", models.BookingRequest{
		ClientID:    "someone-else",
		MentorID:    "mentor1",
		SessionType: models.SessionSparring,
		Date:        time.Now().Add(72 * time.Hour),
		Location:    "Gracie Barra downtown",
		Price:       45,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	b := decodeBooking(t, rec.Body)
	assert.Equal(t, "client1", b.ClientID)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.NotEmpty(t, b.BookingID)
}

func TestGetBookingRestrictedToParties(t *testing.T) {
	router := setupRouter(t)

	req := authedRequest(t, http.MethodPost, "/bookings/", "client1", models.BookingRequest{
		MentorID:    "mentor1",
		SessionType: models.SessionSparring,
		Date:        time.Now().Add(72 * time.Hour),
		Location:    "Gracie Barra downtown",
		Price:       45,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBooking(t, rec.Body)

	for _, userID := range []string{"client1", "mentor1"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodGet, fmt.Sprintf("/bookings/%s", created.BookingID), userID, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodGet, fmt.Sprintf("/bookings/%s", created.BookingID), "outsider", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptBookingMentorOnly(t *testing.T) {
	router := setupRouter(t)

	req := authedRequest(t, http.MethodPost, "/bookings/", "client1", models.BookingRequest{
		MentorID:    "mentor1",
		SessionType: models.SessionSparring,
		Date:        time.Now().Add(72 * time.Hour),
		Location:    "Gracie Barra downtown",
		Price:       45,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBooking(t, rec.Body)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, fmt.Sprintf("/bookings/%s/accept", created.BookingID), "client1", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, fmt.Sprintf("/bookings/%s/accept", created.BookingID), "mentor1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.BookingConfirmed, decodeBooking(t, rec.Body).Status)
}
