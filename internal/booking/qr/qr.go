package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"ms-coaching/internal/models"

	"github.com/skip2/go-qrcode"
)

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type checkInPayload struct {
	BookingID       string `json:"booking_id"`
	ClientID        string `json:"client_id"`
	MentorID        string `json:"mentor_id"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// GenerateCheckInQR encodes the booking's check-in payload, encrypted so a
// screenshot can't be forged from public booking data.
func (g *Generator) GenerateCheckInQR(b models.Booking) ([]byte, error) {
	data, err := json.Marshal(checkInPayload{
		BookingID:       b.BookingID,
		ClientID:        b.ClientID,
		MentorID:        b.MentorID,
		PaymentIntentID: b.PaymentIntentID,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
