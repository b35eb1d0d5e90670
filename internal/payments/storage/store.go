package storage

import (
	"ms-coaching/internal/models"
)

type Store interface {
	// Profile operations
	SaveProfile(profile *models.Profile) error
	GetProfile(userID string) (*models.Profile, error)
	SetStripeAccount(userID, accountID string) error
	SetPayoutsReady(accountID string, ready bool) error

	// Health and maintenance
	Close() error
	HealthCheck() error
}
