package notify

import (
	"fmt"

	"ms-coaching/internal/config"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"gopkg.in/gomail.v2"
)

// ProfileReader resolves a user id to the email address on file.
type ProfileReader interface {
	GetProfile(userID string) (*models.Profile, error)
}

// EmailNotifier sends booking lifecycle mail. Disabled configs turn every
// send into a logged no-op so local stacks run without an SMTP server.
type EmailNotifier struct {
	cfg      config.EmailConfig
	profiles ProfileReader
	log      *logger.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, profiles ProfileReader, log *logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:      cfg,
		profiles: profiles,
		log:      log,
	}
}

// NotifyBookingEvent mails the party who needs to act or know: the mentor
// on new requests, the client on everything else.
func (n *EmailNotifier) NotifyBookingEvent(event models.BookingEvent) error {
	recipientID := event.ClientID
	if event.Type == "booking.created" {
		recipientID = event.MentorID
	}

	subject, body := composeBookingMail(event)
	return n.send(recipientID, subject, body)
}

func composeBookingMail(event models.BookingEvent) (subject, body string) {
	switch event.Type {
	case "booking.created":
		subject = "New session request"
		body = fmt.Sprintf("You have a new session request (booking %s). Open the app to accept or decline.", event.BookingID)
	case "booking.accepted":
		subject = "Your session is confirmed"
		body = fmt.Sprintf("Your booking %s was accepted. Chat with your coach to settle the details.", event.BookingID)
	case "booking.rejected":
		subject = "Session request declined"
		body = fmt.Sprintf("Your booking %s was declined. Your payment will be refunded.", event.BookingID)
	case "booking.cancelled":
		subject = "Session cancelled"
		body = fmt.Sprintf("Booking %s has been cancelled.", event.BookingID)
	case "booking.completed":
		subject = "Session completed"
		body = fmt.Sprintf("Booking %s is complete. Leave a review to help others find good coaches.", event.BookingID)
	default:
		subject = "Booking update"
		body = fmt.Sprintf("Booking %s changed status to %s.", event.BookingID, event.Status)
	}
	return subject, body
}

func (n *EmailNotifier) send(recipientID, subject, body string) error {
	if !n.cfg.Enabled {
		n.log.Debug("EMAIL", fmt.Sprintf("Email disabled, skipping '%s' to %s", subject, recipientID))
		return nil
	}

	profile, err := n.profiles.GetProfile(recipientID)
	if err != nil {
		return fmt.Errorf("no profile for recipient %s: %w", recipientID, err)
	}
	if profile.Email == "" {
		n.log.Warn("EMAIL", fmt.Sprintf("Recipient %s has no email on file, skipping '%s'", recipientID, subject))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", profile.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUsername, n.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", profile.Email, err)
	}

	n.log.Info("EMAIL", fmt.Sprintf("Sent '%s' to %s", subject, profile.Email))
	return nil
}
