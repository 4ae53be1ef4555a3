package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSignature is returned by ParseWebhook when the payload cannot be verified
var ErrInvalidSignature = errors.New("invalid webhook signature")

// SessionStatus is the payment outcome of a checkout session
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionPaid    SessionStatus = "paid"
	SessionFailed  SessionStatus = "failed"
)

// CheckoutRequest describes one hosted checkout for a booking
type CheckoutRequest struct {
	BookingID   string
	ProductName string
	UnitAmount  int64 // minor units (cents)
	Quantity    int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	ExpiresAt   time.Time
}

type CheckoutSession struct {
	ID        string
	URL       string
	BookingID string
	Status    SessionStatus
}

// EventType values understood by the payment service
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventAsyncSucceeded    = "checkout.session.async_payment_succeeded"
	EventAsyncFailed       = "checkout.session.async_payment_failed"
)

// WebhookEvent is a verified gateway notification. Session is nil for
// event types that do not carry a checkout session.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// Gateway is the payment provider used for hosted checkout
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// ExpireCheckoutSession closes an open session so it can no longer be paid
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
	Name() string
}
