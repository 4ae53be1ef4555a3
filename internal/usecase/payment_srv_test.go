package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/events"
	"movie-ticket-booking/internal/gateway"
	"movie-ticket-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentFixture struct {
	*bookingFixture
	gw   *gateway.MockGateway
	pays PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		bookingFixture: newBookingFixture(t, 100),
		gw:             gateway.NewMockGateway(nil),
	}
	f.pays = NewPaymentService(f.repo, f.svc, f.gw, PaymentConfig{
		Currency:   "usd",
		SessionTTL: 30 * time.Minute,
		ClientURL:  "http://localhost:5173",
	}, f.clock.Now, zap.NewNop())
	return f
}

func TestCreateCheckoutSession_ChargesBookedAmount(t *testing.T) {
	f := newPaymentFixture(t)
	b := f.book(t, "user_a", "A1", "A2")

	resp, err := f.pays.CreateCheckoutSession(context.Background(), "user_a", b.ID.String(), "https://cinema.example.com/")
	require.NoError(t, err)

	assert.Equal(t, b.ID.String(), resp.BookingID)
	assert.NotEmpty(t, resp.PaymentURL)

	req, ok := f.gw.LastRequest(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, int64(1500), req.UnitAmount)
	assert.Equal(t, int64(2), req.Quantity)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "https://cinema.example.com/loading/my-bookings?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "https://cinema.example.com/my-bookings", req.CancelURL)
	assert.Equal(t, baseTime.Add(30*time.Minute), req.ExpiresAt)
	assert.Contains(t, req.ProductName, "Fight Club")

	stored := f.store.booking(b.ID)
	require.NotNil(t, stored.PaymentSessionID)
	assert.Equal(t, resp.SessionID, *stored.PaymentSessionID)
	assert.Equal(t, resp.PaymentURL, *stored.PaymentLink)
}

func TestCreateCheckoutSession_ReusesOpenSession(t *testing.T) {
	f := newPaymentFixture(t)
	b := f.book(t, "user_a", "A1")

	first, err := f.pays.CreateCheckoutSession(context.Background(), "user_a", b.ID.String(), "")
	require.NoError(t, err)
	second, err := f.pays.CreateCheckoutSession(context.Background(), "user_a", b.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	// a failed session is replaced
	require.NoError(t, f.gw.Fail(first.SessionID))
	third, err := f.pays.CreateCheckoutSession(context.Background(), "user_a", b.ID.String(), "")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, third.SessionID)

	req, _ := f.gw.LastRequest(third.SessionID)
	assert.Equal(t, "http://localhost:5173/my-bookings", req.CancelURL)
}

func TestCreateCheckoutSession_Rejections(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	b := f.book(t, "user_a", "A1")

	_, err := f.pays.CreateCheckoutSession(ctx, "user_b", b.ID.String(), "")
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))

	_, err = f.pays.CreateCheckoutSession(ctx, "user_a", uuid.NewString(), "")
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.pays.CreateCheckoutSession(ctx, "user_a", "nope", "")
	assert.True(t, apperror.IsValidation(err))

	_, _, err = f.svc.MarkPaid(ctx, b.ID, "cs_paid")
	require.NoError(t, err)
	_, err = f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	assert.True(t, apperror.IsConflict(err))
}

func TestCreateCheckoutSession_GatewayDown(t *testing.T) {
	f := newPaymentFixture(t)
	b := f.book(t, "user_a", "A1")
	f.gw.SetUpstreamError(errors.New("stripe: connection refused"))

	_, err := f.pays.CreateCheckoutSession(context.Background(), "user_a", b.ID.String(), "")

	assert.Equal(t, apperror.KindUpstream, apperror.KindOf(err))
	stored := f.store.booking(b.ID)
	assert.Nil(t, stored.PaymentSessionID)
	assert.False(t, stored.IsPaid)
}

func TestConfirmPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	b := f.book(t, "user_a", "A1")
	checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)

	status, err := f.pays.ConfirmPayment(ctx, "user_a", checkout.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(gateway.SessionPending), status.Status)
	assert.False(t, status.IsPaid)

	require.NoError(t, f.gw.Complete(checkout.SessionID))

	_, err = f.pays.ConfirmPayment(ctx, "user_b", checkout.SessionID)
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))

	status, err = f.pays.ConfirmPayment(ctx, "user_a", checkout.SessionID)
	require.NoError(t, err)
	assert.True(t, status.IsPaid)
	assert.True(t, f.store.booking(b.ID).IsPaid)

	// verifying again changes nothing
	_, err = f.pays.ConfirmPayment(ctx, "user_a", checkout.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.pub.count(events.BookingPaid))
}

func TestHandleWebhook_ConvergesWithVerify(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	b := f.book(t, "user_a", "A1")
	checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)
	require.NoError(t, f.gw.Complete(checkout.SessionID))

	payload, sig := f.gw.SignedEvent(gateway.EventCheckoutCompleted, checkout.SessionID)
	require.NoError(t, f.pays.HandleWebhook(ctx, payload, sig))
	assert.True(t, f.store.booking(b.ID).IsPaid)

	// redelivery and a late verify are no-ops
	require.NoError(t, f.pays.HandleWebhook(ctx, payload, sig))
	_, err = f.pays.ConfirmPayment(ctx, "user_a", checkout.SessionID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.pub.count(events.BookingPaid))
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	payload, _ := f.gw.SignedEvent(gateway.EventCheckoutCompleted, "cs_x")

	err := f.pays.HandleWebhook(context.Background(), payload, "deadbeef")
	assert.True(t, apperror.IsValidation(err))
}

func TestHandleWebhook_IgnoresUnpaidAndOtherEvents(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	b := f.book(t, "user_a", "A1")
	checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)

	// completed but still pending (async payment method)
	payload, sig := f.gw.SignedEvent(gateway.EventCheckoutCompleted, checkout.SessionID)
	require.NoError(t, f.pays.HandleWebhook(ctx, payload, sig))

	payload, sig = f.gw.SignedEvent(gateway.EventCheckoutExpired, checkout.SessionID)
	require.NoError(t, f.pays.HandleWebhook(ctx, payload, sig))

	payload, sig = f.gw.SignedEvent("customer.created", "")
	require.NoError(t, f.pays.HandleWebhook(ctx, payload, sig))

	assert.False(t, f.store.booking(b.ID).IsPaid)
}

func TestHandleWebhook_PaymentAfterExpiryIsAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	b := f.book(t, "user_a", "A1")
	checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	result, err := f.svc.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.Expired)

	require.NoError(t, f.gw.Complete(checkout.SessionID))
	payload, sig := f.gw.SignedEvent(gateway.EventCheckoutCompleted, checkout.SessionID)
	require.NoError(t, f.pays.HandleWebhook(ctx, payload, sig))

	assert.Nil(t, f.store.booking(b.ID))
	assert.Empty(t, f.store.occupancy(f.show.ID))
	assert.Equal(t, 0, f.pub.count(events.BookingPaid))
}

func TestHandleWebhook_StorageFailureIsRetried(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	b := f.book(t, "user_a", "A1")
	checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)
	require.NoError(t, f.gw.Complete(checkout.SessionID))

	failing := *f.repo
	failing.Booking = &failingMarkPaid{BookingRepository: f.repo.Booking}
	bookings := NewBookingService(&failing, f.reserver, f.pub, nil, nil, BookingConfig{}, f.clock.Now, zap.NewNop())
	pays := NewPaymentService(&failing, bookings, f.gw, PaymentConfig{}, f.clock.Now, zap.NewNop())

	payload, sig := f.gw.SignedEvent(gateway.EventCheckoutCompleted, checkout.SessionID)
	assert.Error(t, pays.HandleWebhook(ctx, payload, sig))
	assert.False(t, f.store.booking(b.ID).IsPaid)
}

type failingMarkPaid struct {
	repository.BookingRepository
}

func (failingMarkPaid) MarkPaid(context.Context, uuid.UUID, string) (*entity.Booking, error) {
	return nil, errors.New("connection reset")
}

// closeSessionsOnRelease rebuilds the services so cancel and expiry close the
// booking's checkout session through the mock gateway
func (f *paymentFixture) closeSessionsOnRelease() {
	f.svc = NewBookingService(f.repo, f.reserver, f.pub, f.notifier, f.gw, BookingConfig{
		HoldTimeout:    10 * time.Minute,
		SweepBatchSize: 100,
	}, f.clock.Now, zap.NewNop())
	f.pays = NewPaymentService(f.repo, f.svc, f.gw, PaymentConfig{
		Currency:   "usd",
		SessionTTL: 31 * time.Minute,
		ClientURL:  "http://localhost:5173",
	}, f.clock.Now, zap.NewNop())
}

func TestReleasedBooking_ExpiresCheckoutSession(t *testing.T) {
	tests := []struct {
		name    string
		release func(f *paymentFixture, b *entity.Booking) error
	}{
		{"cancel", func(f *paymentFixture, b *entity.Booking) error {
			return f.svc.CancelBooking(context.Background(), b.ID.String(), "user_a")
		}},
		{"expiry", func(f *paymentFixture, b *entity.Booking) error {
			f.clock.Advance(11 * time.Minute)
			result, err := f.svc.ExpireStale(context.Background(), f.clock.Now())
			if err == nil && result.Expired != 1 {
				return fmt.Errorf("expired %d bookings", result.Expired)
			}
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			f.closeSessionsOnRelease()
			ctx := context.Background()

			b := f.book(t, "user_a", "A1")
			checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
			require.NoError(t, err)

			require.NoError(t, tt.release(f, b))

			s, err := f.gw.GetCheckoutSession(ctx, checkout.SessionID)
			require.NoError(t, err)
			assert.Equal(t, gateway.SessionFailed, s.Status)
		})
	}
}

func TestCancelBooking_GatewayDownStillCancels(t *testing.T) {
	f := newPaymentFixture(t)
	f.closeSessionsOnRelease()
	ctx := context.Background()

	b := f.book(t, "user_a", "A1")
	_, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)

	f.gw.SetUpstreamError(errors.New("stripe unavailable"))
	require.NoError(t, f.svc.CancelBooking(ctx, b.ID.String(), "user_a"))

	assert.Nil(t, f.store.booking(b.ID))
	assert.Empty(t, f.store.occupancy(f.show.ID))
}

func TestCancelBooking_PaidSessionLeftAlone(t *testing.T) {
	f := newPaymentFixture(t)
	f.closeSessionsOnRelease()
	ctx := context.Background()

	b := f.book(t, "user_a", "A1")
	checkout, err := f.pays.CreateCheckoutSession(ctx, "user_a", b.ID.String(), "")
	require.NoError(t, err)
	require.NoError(t, f.gw.Complete(checkout.SessionID))
	_, err = f.pays.ConfirmPayment(ctx, "user_a", checkout.SessionID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelBooking(ctx, b.ID.String(), "user_a"))

	s, err := f.gw.GetCheckoutSession(ctx, checkout.SessionID)
	require.NoError(t, err)
	assert.Equal(t, gateway.SessionPaid, s.Status)
}
