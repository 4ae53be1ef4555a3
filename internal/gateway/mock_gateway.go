package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// alphanumericChars for generating Stripe-compatible IDs
const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomAlphanumeric generates a random alphanumeric string of given length
func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}

// MockGateway implements Gateway in memory for development and tests
type MockGateway struct {
	config   *MockGatewayConfig
	sessions sync.Map
	mu       sync.Mutex
	upstream error
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// AutoComplete marks sessions paid as soon as they are looked up
	AutoComplete bool

	// WebhookSecret signs mock webhook payloads
	WebhookSecret string

	// DelayMs is the simulated processing delay in milliseconds
	DelayMs int
}

type mockSession struct {
	CheckoutSession
	Request CheckoutRequest
}

// mockEvent is the wire format of mock webhook payloads
type mockEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// DefaultMockGatewayConfig returns default configuration
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{
		WebhookSecret: "whsec_mock",
	}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	return &MockGateway{config: config}
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout request is required")
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if err := g.upstreamErr(); err != nil {
		return nil, err
	}

	id := fmt.Sprintf("cs_mock_%s", randomAlphanumeric(24))
	s := &mockSession{
		CheckoutSession: CheckoutSession{
			ID:        id,
			URL:       fmt.Sprintf("https://checkout.mock.local/pay/%s", id),
			BookingID: req.BookingID,
			Status:    SessionPending,
		},
		Request: *req,
	}
	g.sessions.Store(id, s)

	out := s.CheckoutSession
	return &out, nil
}

func (g *MockGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if err := g.upstreamErr(); err != nil {
		return nil, err
	}

	v, ok := g.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("checkout session not found: %s", sessionID)
	}
	s := v.(*mockSession)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.config.AutoComplete && s.Status == SessionPending {
		s.Status = SessionPaid
	}
	out := s.CheckoutSession
	return &out, nil
}

// ExpireCheckoutSession fails a pending session; paid sessions stay paid
func (g *MockGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	if err := g.upstreamErr(); err != nil {
		return err
	}

	v, ok := g.sessions.Load(sessionID)
	if !ok {
		return fmt.Errorf("checkout session not found: %s", sessionID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if s := v.(*mockSession); s.Status == SessionPending {
		s.Status = SessionFailed
	}
	return nil
}

// ParseWebhook accepts payloads produced by SignedEvent
func (g *MockGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if !hmac.Equal([]byte(signature), []byte(g.Sign(payload))) {
		return nil, ErrInvalidSignature
	}

	var e mockEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decode mock event: %w", err)
	}

	out := &WebhookEvent{ID: e.ID, Type: e.Type}
	if e.SessionID == "" {
		return out, nil
	}

	v, ok := g.sessions.Load(e.SessionID)
	if !ok {
		out.Session = &CheckoutSession{ID: e.SessionID, Status: SessionPending}
		return out, nil
	}
	s := v.(*mockSession)

	g.mu.Lock()
	snapshot := s.CheckoutSession
	g.mu.Unlock()
	out.Session = &snapshot
	return out, nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

// Complete marks a session paid, as the hosted page would on success
func (g *MockGateway) Complete(sessionID string) error {
	return g.setStatus(sessionID, SessionPaid)
}

// Fail marks a session failed
func (g *MockGateway) Fail(sessionID string) error {
	return g.setStatus(sessionID, SessionFailed)
}

// SetUpstreamError makes every API call fail with err until cleared with nil
func (g *MockGateway) SetUpstreamError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upstream = err
}

// Sign returns the signature ParseWebhook expects for payload
func (g *MockGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.config.WebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedEvent builds a webhook payload and its signature for sessionID
func (g *MockGateway) SignedEvent(eventType, sessionID string) ([]byte, string) {
	payload, _ := json.Marshal(mockEvent{
		ID:        fmt.Sprintf("evt_mock_%s", randomAlphanumeric(16)),
		Type:      eventType,
		SessionID: sessionID,
	})
	return payload, g.Sign(payload)
}

// LastRequest returns the checkout request that created sessionID
func (g *MockGateway) LastRequest(sessionID string) (CheckoutRequest, bool) {
	v, ok := g.sessions.Load(sessionID)
	if !ok {
		return CheckoutRequest{}, false
	}
	return v.(*mockSession).Request, true
}

func (g *MockGateway) setStatus(sessionID string, status SessionStatus) error {
	v, ok := g.sessions.Load(sessionID)
	if !ok {
		return fmt.Errorf("checkout session not found: %s", sessionID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	v.(*mockSession).Status = status
	return nil
}

func (g *MockGateway) upstreamErr() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upstream
}

// Simulate processing delay
func (g *MockGateway) wait(ctx context.Context) error {
	if g.config.DelayMs <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(g.config.DelayMs) * time.Millisecond):
		return nil
	}
}
