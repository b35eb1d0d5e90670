package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"ms-coaching/internal/config"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	_ "github.com/lib/pq"
)

var ErrProfileNotFound = errors.New("profile not found")

// PostgreSQLStore persists payee profiles. The payment service runs as a
// standalone binary, so this store speaks database/sql directly instead
// of going through the booking core's ORM layer.
type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a store on an existing connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize profile tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize profile tables: %w", err)
	}

	log.Info("DATABASE", "Profile storage initialized with existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating profiles table if not exists")

	profilesQuery := `
    CREATE TABLE IF NOT EXISTS profiles (
        user_id VARCHAR(36) PRIMARY KEY,
        full_name VARCHAR(255) NOT NULL DEFAULT '',
        email VARCHAR(255),
        average_rating DECIMAL(3,1) NOT NULL DEFAULT 0,
        total_reviews INTEGER NOT NULL DEFAULT 0,
        stripe_account_id VARCHAR(64),
        payouts_ready BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(profilesQuery); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_profiles_stripe_account_id ON profiles(stripe_account_id);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Profile tables and indexes ready")
	return nil
}

// SaveProfile upserts a profile row.
func (s *PostgreSQLStore) SaveProfile(profile *models.Profile) error {
	s.log.LogDatabase("INSERT", "postgresql", fmt.Sprintf("Saving profile %s", profile.UserID))

	query := `
    INSERT INTO profiles (
        user_id, full_name, email, average_rating, total_reviews, stripe_account_id, payouts_ready, created_at
    ) VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8)
    ON CONFLICT (user_id) DO UPDATE SET
        full_name = EXCLUDED.full_name,
        email = EXCLUDED.email
    `

	_, err := s.db.Exec(query,
		profile.UserID, profile.FullName, profile.Email, profile.AverageRating,
		profile.TotalReviews, profile.StripeAccountID, profile.PayoutsReady, profile.CreatedAt,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save profile %s: %s", profile.UserID, err.Error()))
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

// GetProfile retrieves a profile by user id.
func (s *PostgreSQLStore) GetProfile(userID string) (*models.Profile, error) {
	query := `
    SELECT user_id, full_name, COALESCE(email, ''), average_rating, total_reviews,
           COALESCE(stripe_account_id, ''), payouts_ready, created_at
    FROM profiles WHERE user_id = $1
    `

	profile := &models.Profile{}
	err := s.db.QueryRow(query, userID).Scan(
		&profile.UserID, &profile.FullName, &profile.Email, &profile.AverageRating,
		&profile.TotalReviews, &profile.StripeAccountID, &profile.PayoutsReady, &profile.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "postgresql", fmt.Sprintf("Profile %s not found", userID))
			return nil, ErrProfileNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get profile %s: %s", userID, err.Error()))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// SetStripeAccount records the mentor's connected account id.
func (s *PostgreSQLStore) SetStripeAccount(userID, accountID string) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Setting payee account for profile %s", userID))

	result, err := s.db.Exec(`UPDATE profiles SET stripe_account_id = $1 WHERE user_id = $2`, accountID, userID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to set payee account for %s: %s", userID, err.Error()))
		return fmt.Errorf("failed to set payee account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// SetPayoutsReady flips the readiness flag, keyed by connected account id
// because that is all account.updated events carry.
func (s *PostgreSQLStore) SetPayoutsReady(accountID string, ready bool) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Setting payouts_ready=%t for account %s", ready, accountID))

	result, err := s.db.Exec(`UPDATE profiles SET payouts_ready = $1 WHERE stripe_account_id = $2`, ready, accountID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to set payouts_ready for account %s: %s", accountID, err.Error()))
		return fmt.Errorf("failed to set payouts readiness: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgresql", "Closing PostgreSQL connection")
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
