package payments

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ms-coaching/internal/booking"
	"ms-coaching/internal/fees"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var (
	// ErrGatewayUnavailable is retryable: the processor could not be
	// reached or had an internal failure. No funds moved.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable, retry later")
	// ErrPaymentDeclined is terminal for this payment method: the user
	// must retry with a different card.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPayeeNotOnboarded means a payout split was requested for a
	// mentor without a ready connected account.
	ErrPayeeNotOnboarded = errors.New("mentor has not completed payee onboarding")
	// ErrUnauthenticated rejects payee operations not made by the mentor
	// they concern.
	ErrUnauthenticated = errors.New("caller is not authenticated as this mentor")

	ErrClientInitFailed = errors.New("failed to initialize payment gateway client")
)

// ProfileStore is the slice of profile persistence the gateway adapter
// needs: connected-account bookkeeping only.
type ProfileStore interface {
	GetProfile(userID string) (*models.Profile, error)
	SetStripeAccount(userID, accountID string) error
	SetPayoutsReady(accountID string, ready bool) error
}

// Service wraps the Stripe API behind the two capture flows the clients
// use: the delegated UI flow (intent + client secret, confirmation handled
// by Stripe's own component, outcome arrives on the webhook) and the
// programmatic flow (ConfirmIntent, synchronous outcome).
type Service struct {
	client   *client.API
	profiles ProfileStore
	currency string
	log      *logger.Logger
}

func NewService(secretKey, currency string, profiles ProfileStore, log *logger.Logger) (*Service, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY not set")
		return nil, ErrClientInitFailed
	}

	sc := client.New(secretKey, nil)
	log.Info("STRIPE", "Stripe client initialized")
	return &Service{
		client:   sc,
		profiles: profiles,
		currency: currency,
		log:      log,
	}, nil
}

// CreateBookingIntent opens a payment intent for a coaching session. The
// booking parameters ride in the intent metadata so the booking record can
// be created once capture is confirmed. When the mentor's connected account
// is ready, a marketplace split is attached; otherwise the platform holds
// the full amount and the split is settled manually later - the booking
// itself never fails on PayeeNotOnboarded.
func (s *Service) CreateBookingIntent(req models.PaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid session date: %w", err)
	}

	// Reject bookings that could never be created before charging anyone.
	bookingReq := models.BookingRequest{
		ClientID:    req.ClientID,
		MentorID:    req.MentorID,
		SessionType: models.SessionType(req.SessionType),
		Date:        date,
		Location:    req.Location,
		Price:       req.Price,
	}
	if err := booking.ValidateRequest(bookingReq, time.Now()); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	amountMinor := fees.AmountMinor(req.Price)
	feeMinor := fees.ApplicationFeeMinor(amountMinor)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("client_id", req.ClientID)
	params.AddMetadata("mentor_id", req.MentorID)
	params.AddMetadata("session_type", req.SessionType)
	params.AddMetadata("date", req.Date)
	params.AddMetadata("location", req.Location)
	params.AddMetadata("price", strconv.FormatFloat(req.Price, 'f', 2, 64))

	splitApplied := false
	if accountID, err := s.payeeAccountForSplit(req.MentorID); err == nil {
		params.ApplicationFeeAmount = stripe.Int64(feeMinor)
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(accountID),
		}
		splitApplied = true
	} else {
		s.log.LogPayment("SPLIT", req.MentorID, "no ready payee account, platform holds funds: "+err.Error())
	}

	intent, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("failed to create payment intent: %v", err))
		return nil, classifyStripeError(err)
	}

	s.log.LogPayment("INTENT", intent.ID, fmt.Sprintf("amount=%d %s split=%t", amountMinor, currency, splitApplied))
	return &models.PaymentIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  amountMinor,
		FeeMinor:     feeMinor,
		SplitApplied: splitApplied,
	}, nil
}

// ConfirmIntent drives the programmatic capture flow: the caller supplies a
// payment method and gets the outcome synchronously.
func (s *Service) ConfirmIntent(intentID, paymentMethodID string) error {
	intent, err := s.client.PaymentIntents.Confirm(intentID, &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	})
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("failed to confirm intent %s: %v", intentID, err))
		return classifyStripeError(err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		s.log.LogPayment("CONFIRM", intentID, "intent ended in status "+string(intent.Status))
		return ErrPaymentDeclined
	}

	s.log.LogPayment("CONFIRM", intentID, "capture succeeded")
	return nil
}

// GetIntent fetches the intent so callers can rebuild booking parameters
// from its metadata after a programmatic confirmation.
func (s *Service) GetIntent(intentID string) (*stripe.PaymentIntent, error) {
	intent, err := s.client.PaymentIntents.Get(intentID, nil)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	return intent, nil
}

// payeeAccountForSplit returns the mentor's connected account id when it
// can receive funds.
func (s *Service) payeeAccountForSplit(mentorID string) (string, error) {
	profile, err := s.profiles.GetProfile(mentorID)
	if err != nil {
		return "", fmt.Errorf("no profile for mentor %s: %w", mentorID, err)
	}
	if profile.StripeAccountID == "" || !profile.PayoutsReady {
		return "", ErrPayeeNotOnboarded
	}
	return profile.StripeAccountID, nil
}

// CreatePayeeAccount creates or fetches the mentor's connected account.
// Idempotent per mentor: a stored account id is returned as-is.
func (s *Service) CreatePayeeAccount(callerID, mentorID string) (string, error) {
	if callerID == "" || callerID != mentorID {
		return "", ErrUnauthenticated
	}

	profile, err := s.profiles.GetProfile(mentorID)
	if err != nil {
		return "", fmt.Errorf("no profile for mentor %s: %w", mentorID, err)
	}
	if profile.StripeAccountID != "" {
		return profile.StripeAccountID, nil
	}

	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
	}
	params.AddMetadata("mentor_id", mentorID)

	account, err := s.client.Accounts.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("failed to create payee account for %s: %v", mentorID, err))
		return "", classifyStripeError(err)
	}

	if err := s.profiles.SetStripeAccount(mentorID, account.ID); err != nil {
		return "", fmt.Errorf("failed to store payee account id: %w", err)
	}

	s.log.LogPayment("PAYEE", account.ID, "created payee account for mentor "+mentorID)
	return account.ID, nil
}

// CreateOnboardingLink returns a time-limited URL the mentor completes
// out-of-band. The readiness flip arrives later on account.updated.
func (s *Service) CreateOnboardingLink(callerID, mentorID, refreshURL, returnURL string) (*models.OnboardingLinkResponse, error) {
	accountID, err := s.CreatePayeeAccount(callerID, mentorID)
	if err != nil {
		return nil, err
	}

	link, err := s.client.AccountLinks.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("failed to create onboarding link for %s: %v", accountID, err))
		return nil, classifyStripeError(err)
	}

	return &models.OnboardingLinkResponse{AccountID: accountID, URL: link.URL}, nil
}

// classifyStripeError buckets gateway failures into retryable vs terminal.
// Card errors mean the user must try another payment method; API and
// connection failures are safe to retry because nothing was captured.
func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			return fmt.Errorf("%w: %s", ErrPaymentDeclined, stripeErr.Msg)
		case stripe.ErrorTypeAPI:
			return fmt.Errorf("%w: %s", ErrGatewayUnavailable, stripeErr.Msg)
		default:
			return err
		}
	}
	// Non-Stripe errors here are transport failures
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
