package models

// PaymentIntentRequest carries the booking parameters a client submits when
// asking the payment service to open an intent. The booking itself is only
// created once the gateway confirms capture, so everything needed to build
// it later travels in the intent metadata.
type PaymentIntentRequest struct {
	ClientID    string  `json:"client_id"`
	MentorID    string  `json:"mentor_id"`
	SessionType string  `json:"session_type"`
	Date        string  `json:"date"` // RFC3339
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
}

type PaymentIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount_minor"`
	FeeMinor     int64  `json:"fee_minor"`
	// SplitApplied is false when the mentor has not finished payee
	// onboarding and the platform holds the full amount.
	SplitApplied bool `json:"split_applied"`
}

type ConfirmPaymentRequest struct {
	IntentID        string `json:"intent_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

type OnboardingLinkResponse struct {
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}
