package db

import (
	"context"
	"database/sql"

	"ms-coaching/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetConversationByBookingID → fetch the conversation tied to a booking
func (d *DB) GetConversationByBookingID(bookingID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.Bun.NewSelect().
		Model(&conv).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversationByID → fetch one conversation by its ID
func (d *DB) GetConversationByID(id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.Bun.NewSelect().
		Model(&conv).
		Where("conversation_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation runs a select-then-insert in one transaction so a
// racing writer that slipped past the redis lock still converges on the
// existing row instead of violating the booking_id unique index.
func (d *DB) CreateConversation(conv models.Conversation) (*models.Conversation, error) {
	var out models.Conversation
	err := d.Bun.RunInTx(context.Background(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&out).
			Where("booking_id = ?", conv.BookingID).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		if _, err := tx.NewInsert().Model(&conv).Exec(ctx); err != nil {
			return err
		}
		out = conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMessage writes the message and bumps the conversation's last
// message atomically.
func (d *DB) CreateMessage(msg models.Message) error {
	return d.Bun.RunInTx(context.Background(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&msg).Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*models.Conversation)(nil)).
			Set("last_message = ?", msg.Body).
			Set("last_message_at = ?", msg.CreatedAt).
			Where("conversation_id = ?", msg.ConversationID).
			Exec(ctx)
		return err
	})
}

// GetMessagesByConversation → full history, oldest first
func (d *DB) GetMessagesByConversation(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := d.Bun.NewSelect().
		Model(&messages).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return messages, nil
}
