package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/events"
	"movie-ticket-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type bookingFixture struct {
	store    *memStore
	repo     *repository.Repository
	clock    *fakeClock
	pub      *mockPublisher
	notifier *recordingNotifier
	reserver SeatReserver
	svc      BookingService
	show     *entity.Show
}

func newBookingFixture(t *testing.T, batchSize int) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		store:    newMemStore(),
		clock:    &fakeClock{now: baseTime},
		pub:      newMockPublisher(),
		notifier: &recordingNotifier{},
	}
	f.repo = f.store.repository()
	f.store.addMovie(&entity.Movie{ID: "550", Title: "Fight Club"})
	f.show = f.addShow(48*time.Hour, entity.TierIMAX)

	f.reserver = NewSeatReserver(f.repo.Show, 5, f.clock.Now, zap.NewNop())
	f.svc = NewBookingService(f.repo, f.reserver, f.pub, f.notifier, nil, BookingConfig{
		HoldTimeout:    10 * time.Minute,
		SweepBatchSize: batchSize,
	}, f.clock.Now, zap.NewNop())
	return f
}

func (f *bookingFixture) addShow(in time.Duration, tier entity.TheaterTier) *entity.Show {
	show := &entity.Show{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: baseTime, UpdatedAt: baseTime},
		MovieID:      "550",
		ShowDateTime: f.clock.Now().Add(in),
		ShowPrice:    10,
		TheaterType:  tier,
	}
	f.store.addShow(show)
	return show
}

func (f *bookingFixture) book(t *testing.T, userID string, seats ...string) *entity.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), userID, &request.CreateBookingRequest{
		ShowID:        f.show.ID.String(),
		SelectedSeats: seats,
	})
	require.NoError(t, err)
	return b
}

func TestCreateBooking_ClaimsSeatsAndPricesTier(t *testing.T) {
	f := newBookingFixture(t, 100)

	b := f.book(t, "user_a", "A1", "A2")

	assert.Equal(t, 30.0, b.Amount) // (10 + 5) x 2
	assert.False(t, b.IsPaid)
	assert.Equal(t, entity.BookingStatusPending, b.Status())
	assert.Equal(t, entity.OccupancyMap{"A1": "user_a", "A2": "user_a"}, f.store.occupancy(f.show.ID))
	assert.Equal(t, 1, f.pub.count(events.BookingCreated))

	seats, err := f.svc.OccupiedSeats(context.Background(), f.show.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, seats)
}

func TestCreateBooking_PremiumTier(t *testing.T) {
	f := newBookingFixture(t, 100)
	f.show = f.addShow(24*time.Hour, entity.TierPremium)

	b := f.book(t, "user_a", "C3")
	assert.Equal(t, 25.0, b.Amount)
}

func TestCreateBooking_TooManySeatsHasNoSideEffects(t *testing.T) {
	f := newBookingFixture(t, 100)

	_, err := f.svc.CreateBooking(context.Background(), "user_a", &request.CreateBookingRequest{
		ShowID:        f.show.ID.String(),
		SelectedSeats: []string{"A1", "A2", "A3", "A4", "A5", "A6"},
	})

	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "up to 5 seats")
	assert.Empty(t, f.store.occupancy(f.show.ID))
	assert.Equal(t, 0, f.store.bookingCount())
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateBooking_RejectsBadSelections(t *testing.T) {
	f := newBookingFixture(t, 100)

	tests := []struct {
		name  string
		seats []string
	}{
		{"empty", nil},
		{"bad label", []string{"a1"}},
		{"row out of range", []string{"A0"}},
		{"duplicate", []string{"B2", "B2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(context.Background(), "user_a", &request.CreateBookingRequest{
				ShowID:        f.show.ID.String(),
				SelectedSeats: tt.seats,
			})
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}
	assert.Empty(t, f.store.occupancy(f.show.ID))
}

func TestCreateBooking_ConflictIsAllOrNothing(t *testing.T) {
	f := newBookingFixture(t, 100)
	f.book(t, "user_a", "A1")

	_, err := f.svc.CreateBooking(context.Background(), "user_b", &request.CreateBookingRequest{
		ShowID:        f.show.ID.String(),
		SelectedSeats: []string{"A1", "A2"},
	})

	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, []string{"A1"}, apperror.DetailsOf(err))
	assert.Equal(t, entity.OccupancyMap{"A1": "user_a"}, f.store.occupancy(f.show.ID))
	assert.Equal(t, 1, f.store.bookingCount())
}

func TestCreateBooking_UnknownAndStartedShows(t *testing.T) {
	f := newBookingFixture(t, 100)

	_, err := f.svc.CreateBooking(context.Background(), "user_a", &request.CreateBookingRequest{
		ShowID:        uuid.NewString(),
		SelectedSeats: []string{"A1"},
	})
	assert.True(t, apperror.IsNotFound(err), "got %v", err)

	started := f.addShow(-time.Minute, entity.TierStandard)
	_, err = f.svc.CreateBooking(context.Background(), "user_a", &request.CreateBookingRequest{
		ShowID:        started.ID.String(),
		SelectedSeats: []string{"A1"},
	})
	assert.True(t, apperror.IsValidation(err), "got %v", err)
	assert.Empty(t, f.store.occupancy(started.ID))
}

func TestCreateBooking_InsertFailureReleasesClaim(t *testing.T) {
	f := newBookingFixture(t, 100)
	f.store.createBookingErr = errors.New("insert failed")

	_, err := f.svc.CreateBooking(context.Background(), "user_a", &request.CreateBookingRequest{
		ShowID:        f.show.ID.String(),
		SelectedSeats: []string{"A1"},
	})

	require.Error(t, err)
	assert.Empty(t, f.store.occupancy(f.show.ID))
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateBooking_ConcurrentSameSeat(t *testing.T) {
	f := newBookingFixture(t, 100)

	const users = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := f.svc.CreateBooking(context.Background(), user, &request.CreateBookingRequest{
				ShowID:        f.show.ID.String(),
				SelectedSeats: []string{"A1"},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, user)
			case apperror.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("user_%d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, users-1, conflicts)
	assert.Equal(t, entity.OccupancyMap{"A1": winners[0]}, f.store.occupancy(f.show.ID))
	assert.Equal(t, 1, f.store.bookingCount())
}

func TestCreateBooking_ConcurrentDisjointSeats(t *testing.T) {
	f := newBookingFixture(t, 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	selections := [][]string{{"A1", "A2"}, {"B1", "B2"}}
	for i, seats := range selections {
		wg.Add(1)
		go func(i int, seats []string) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateBooking(context.Background(), fmt.Sprintf("user_%d", i), &request.CreateBookingRequest{
				ShowID:        f.show.ID.String(),
				SelectedSeats: seats,
			})
		}(i, seats)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, f.store.occupancy(f.show.ID), 4)
}

func TestCancelBooking_RestoresOccupancy(t *testing.T) {
	f := newBookingFixture(t, 100)
	f.book(t, "user_b", "C1")
	before := f.store.occupancy(f.show.ID)

	b := f.book(t, "user_a", "A1", "A2")
	require.NoError(t, f.svc.CancelBooking(context.Background(), b.ID.String(), "user_a"))

	assert.Equal(t, before, f.store.occupancy(f.show.ID))
	assert.Nil(t, f.store.booking(b.ID))
	assert.Equal(t, 1, f.pub.count(events.BookingCancelled))

	err := f.svc.CancelBooking(context.Background(), b.ID.String(), "user_a")
	assert.True(t, apperror.IsNotFound(err), "got %v", err)
}

func TestCancelBooking_OtherUserDenied(t *testing.T) {
	f := newBookingFixture(t, 100)
	b := f.book(t, "user_a", "A1")

	err := f.svc.CancelBooking(context.Background(), b.ID.String(), "user_b")

	require.Error(t, err)
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))
	assert.Equal(t, entity.OccupancyMap{"A1": "user_a"}, f.store.occupancy(f.show.ID))
	assert.NotNil(t, f.store.booking(b.ID))
}

func TestCancelBooking_InvalidID(t *testing.T) {
	f := newBookingFixture(t, 100)
	err := f.svc.CancelBooking(context.Background(), "not-a-uuid", "user_a")
	assert.True(t, apperror.IsValidation(err))
}

func TestMarkPaid_AppliesOnce(t *testing.T) {
	f := newBookingFixture(t, 100)
	require.NoError(t, f.repo.User.Upsert(context.Background(), &entity.User{ID: "user_a", Name: "Ana", Email: "ana@example.com"}))
	b := f.book(t, "user_a", "A1")

	paid, applied, err := f.svc.MarkPaid(context.Background(), b.ID, "cs_1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)

	_, applied, err = f.svc.MarkPaid(context.Background(), b.ID, "cs_1")
	require.NoError(t, err)
	assert.False(t, applied)

	_, _, err = f.svc.MarkPaid(context.Background(), b.ID, "cs_other")
	assert.True(t, apperror.IsConflict(err), "got %v", err)

	assert.Equal(t, 1, f.pub.count(events.BookingPaid))
	assert.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMarkPaid_ConcurrentConfirmations(t *testing.T) {
	f := newBookingFixture(t, 100)
	b := f.book(t, "user_a", "A1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.MarkPaid(context.Background(), b.ID, "cs_1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.pub.count(events.BookingPaid))
	assert.True(t, f.store.booking(b.ID).IsPaid)
}

func TestMarkPaid_MissingBooking(t *testing.T) {
	f := newBookingFixture(t, 100)
	_, _, err := f.svc.MarkPaid(context.Background(), uuid.New(), "cs_1")
	assert.True(t, apperror.IsNotFound(err))
}

func TestExpireStale_ReclaimsOnlyStaleUnpaid(t *testing.T) {
	f := newBookingFixture(t, 2)
	ctx := context.Background()

	stale := []*entity.Booking{
		f.book(t, "user_1", "A1"),
		f.book(t, "user_2", "A2"),
		f.book(t, "user_3", "A3"),
	}
	paid := f.book(t, "user_4", "B1")
	_, _, err := f.svc.MarkPaid(ctx, paid.ID, "cs_paid")
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	fresh := f.book(t, "user_5", "B2")

	result, err := f.svc.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Expired)
	assert.Equal(t, 0, result.Failed)
	for _, b := range stale {
		assert.Nil(t, f.store.booking(b.ID))
	}
	assert.NotNil(t, f.store.booking(paid.ID))
	assert.NotNil(t, f.store.booking(fresh.ID))
	assert.Equal(t, entity.OccupancyMap{"B1": "user_4", "B2": "user_5"}, f.store.occupancy(f.show.ID))
	assert.Equal(t, 3, f.pub.count(events.BookingExpired))

	// nothing left to do
	result, err = f.svc.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}

// stalledPublisher never delivers; it returns only when its ctx gives up
type stalledPublisher struct {
	calls atomic.Int32
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.BookingEvent) error {
	p.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (p *stalledPublisher) Close() {}

func TestExpireStale_StalledBrokerDoesNotBlockSweep(t *testing.T) {
	f := newBookingFixture(t, 100)
	pub := &stalledPublisher{}
	f.svc = NewBookingService(f.repo, f.reserver, pub, f.notifier, nil, BookingConfig{
		HoldTimeout:    10 * time.Minute,
		SweepBatchSize: 100,
		PublishTimeout: 20 * time.Millisecond,
	}, f.clock.Now, zap.NewNop())

	for i, seat := range []string{"A1", "A2", "A3"} {
		f.book(t, fmt.Sprintf("user_%d", i+1), seat)
	}
	f.clock.Advance(11 * time.Minute)

	done := make(chan SweepResult, 1)
	go func() {
		// the worker's ctx never ends on its own
		result, err := f.svc.ExpireStale(context.Background(), f.clock.Now())
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, 3, result.Expired)
	case <-time.After(5 * time.Second):
		t.Fatal("sweep blocked on event publishing")
	}

	assert.Empty(t, f.store.occupancy(f.show.ID))
	assert.Equal(t, 0, f.store.bookingCount())
	assert.Equal(t, int32(6), pub.calls.Load())
}

func TestExpireStale_HoldBoundary(t *testing.T) {
	f := newBookingFixture(t, 100)
	b := f.book(t, "user_1", "A1")

	f.clock.Advance(9 * time.Minute)
	result, err := f.svc.ExpireStale(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
	assert.NotNil(t, f.store.booking(b.ID))
}

func TestExpireStale_FailureIsIsolated(t *testing.T) {
	f := newBookingFixture(t, 100)
	ok := f.book(t, "user_1", "A1")

	broken := f.addShow(24*time.Hour, entity.TierStandard)
	f.show = broken
	bad := f.book(t, "user_2", "A1")
	f.store.releaseErr[broken.ID] = errors.New("connection reset")

	f.clock.Advance(11 * time.Minute)
	result, err := f.svc.ExpireStale(context.Background(), f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, 1, result.Failed)
	assert.Nil(t, f.store.booking(ok.ID))
	// rolled back, retried next sweep
	assert.NotNil(t, f.store.booking(bad.ID))
	assert.Equal(t, entity.OccupancyMap{"A1": "user_2"}, f.store.occupancy(broken.ID))
}

func TestExpireStale_StopsOnCancelledContext(t *testing.T) {
	f := newBookingFixture(t, 100)
	f.book(t, "user_1", "A1")
	f.clock.Advance(11 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.ExpireStale(ctx, f.clock.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetUserBookings_Denormalized(t *testing.T) {
	f := newBookingFixture(t, 100)
	ctx := context.Background()
	require.NoError(t, f.repo.User.Upsert(ctx, &entity.User{ID: "user_a", Name: "Ana", Email: "ana@example.com"}))

	f.book(t, "user_a", "A1")
	f.clock.Advance(time.Minute)
	latest := f.book(t, "user_a", "A2", "A3")
	f.book(t, "user_b", "B1")

	page, err := f.svc.GetUserBookings(ctx, "user_a", &request.PaginatedRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)

	require.Len(t, page.Data, 2)
	assert.Equal(t, int64(2), page.Pagination.Total)
	assert.Equal(t, latest.ID.String(), page.Data[0].ID)
	require.NotNil(t, page.Data[0].Show.Movie)
	assert.Equal(t, "Fight Club", page.Data[0].Show.Movie.Title)
	require.NotNil(t, page.Data[0].User)
	assert.Equal(t, "ana@example.com", page.Data[0].User.Email)

	all, err := f.svc.GetAllBookings(ctx, &request.PaginatedRequest{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, all.Data, 2)
	assert.Equal(t, int64(3), all.Pagination.Total)
	assert.Equal(t, 2, all.Pagination.TotalPages)
}
