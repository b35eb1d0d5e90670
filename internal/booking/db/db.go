package db

import (
	"context"
	"time"

	"ms-coaching/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreateBooking → insert new booking
func (d *DB) CreateBooking(booking models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&booking).Exec(context.Background())
	return err
}

// GetBookingByID → fetch one booking by its ID
func (d *DB) GetBookingByID(id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus applies a status transition with an optimistic guard:
// the row is only touched while it still holds the expected `from` status.
// Returns false when another writer got there first.
func (d *DB) UpdateBookingStatus(id string, from, to models.BookingStatus, updatedAt time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", updatedAt).
		Where("booking_id = ?", id).
		Where("status = ?", from).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetBookingsByClient → all bookings a client has paid for, newest session first
func (d *DB) GetBookingsByClient(clientID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("client_id = ?", clientID).
		Order("date DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// GetBookingsByMentor → all bookings addressed to a mentor, newest session first
func (d *DB) GetBookingsByMentor(mentorID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("mentor_id = ?", mentorID).
		Order("date DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// GetPendingBookingsByMentor feeds the mentor's live pending view.
func (d *DB) GetPendingBookingsByMentor(mentorID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("mentor_id = ?", mentorID).
		Where("status = ?", models.BookingPending).
		Order("date DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
