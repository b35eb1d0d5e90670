package kafka

import (
	"context"
	"encoding/json"

	"ms-coaching/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
	Topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Topic: topic}
}

// PublishBookingEvent streams a booking lifecycle event, keyed by booking id
// so all transitions for one booking land on the same partition in order.
func (p *Producer) PublishBookingEvent(event models.BookingEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(event.BookingID, msgBytes)
}

// PublishChatEvent streams a chat message, keyed by conversation id so
// every subscriber sees one conversation's messages in commit order.
func (p *Producer) PublishChatEvent(event models.ChatEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(event.ConversationID, msgBytes)
}

// Publish writes a raw message with an explicit key.
func (p *Producer) Publish(key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
