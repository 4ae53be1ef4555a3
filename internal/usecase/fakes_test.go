package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/events"
	"movie-ticket-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory stand-in for Postgres. Transactions are
// serialized and rolled back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	shows    map[uuid.UUID]*entity.Show
	bookings map[uuid.UUID]*entity.Booking
	movies   map[string]*entity.Movie
	users    map[string]*entity.User

	// movie ids per user, oldest first
	favorites map[string][]string

	// failure injection
	createBookingErr error
	releaseErr       map[uuid.UUID]error
}

type inTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		shows:      map[uuid.UUID]*entity.Show{},
		bookings:   map[uuid.UUID]*entity.Booking{},
		movies:     map[string]*entity.Movie{},
		users:      map[string]*entity.User{},
		favorites:  map[string][]string{},
		releaseErr: map[uuid.UUID]error{},
	}
}

func (s *memStore) repository() *repository.Repository {
	return &repository.Repository{
		Tx:       s,
		Show:     &memShowRepo{s},
		Booking:  &memBookingRepo{s},
		Movie:    &memMovieRepo{s},
		User:     &memUserRepo{s},
		Favorite: &memFavoriteRepo{s},
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// write runs a single statement; outside a transaction it is its own transaction
func (s *memStore) write(ctx context.Context, fn func()) {
	if ctx.Value(inTxKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

type memSnapshot struct {
	shows    map[uuid.UUID]*entity.Show
	bookings map[uuid.UUID]*entity.Booking
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		shows:    make(map[uuid.UUID]*entity.Show, len(s.shows)),
		bookings: make(map[uuid.UUID]*entity.Booking, len(s.bookings)),
	}
	for id, sh := range s.shows {
		snap.shows[id] = cloneShow(sh)
	}
	for id, b := range s.bookings {
		snap.bookings[id] = cloneBooking(b)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows = snap.shows
	s.bookings = snap.bookings
}

func (s *memStore) addMovie(m *entity.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
}

func (s *memStore) addShow(sh *entity.Show) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh.OccupiedSeats == nil {
		sh.OccupiedSeats = entity.OccupancyMap{}
	}
	s.shows[sh.ID] = cloneShow(sh)
}

func (s *memStore) addBooking(b *entity.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = cloneBooking(b)
}

func (s *memStore) occupancy(showID uuid.UUID) entity.OccupancyMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shows[showID].OccupiedSeats.Clone()
}

func (s *memStore) booking(id uuid.UUID) *entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		return cloneBooking(b)
	}
	return nil
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func cloneShow(sh *entity.Show) *entity.Show {
	c := *sh
	c.OccupiedSeats = sh.OccupiedSeats.Clone()
	return &c
}

func cloneBooking(b *entity.Booking) *entity.Booking {
	c := *b
	c.BookedSeats = append([]string(nil), b.BookedSeats...)
	if b.PaymentSessionID != nil {
		v := *b.PaymentSessionID
		c.PaymentSessionID = &v
	}
	if b.PaymentLink != nil {
		v := *b.PaymentLink
		c.PaymentLink = &v
	}
	if b.PaidAt != nil {
		v := *b.PaidAt
		c.PaidAt = &v
	}
	return &c
}

// ---- shows ----

type memShowRepo struct{ s *memStore }

func (r *memShowRepo) Create(ctx context.Context, show *entity.Show) error {
	r.s.write(ctx, func() {
		c := cloneShow(show)
		if c.OccupiedSeats == nil {
			c.OccupiedSeats = entity.OccupancyMap{}
		}
		r.s.shows[show.ID] = c
	})
	return nil
}

func (r *memShowRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Show, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sh, ok := r.s.shows[id]; ok {
		return cloneShow(sh), nil
	}
	return nil, nil
}

func (r *memShowRepo) upcoming(from time.Time) []*entity.ShowWithMovie {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ShowWithMovie
	for _, sh := range r.s.shows {
		if sh.ShowDateTime.Before(from) {
			continue
		}
		m, ok := r.s.movies[sh.MovieID]
		if !ok {
			continue
		}
		out = append(out, &entity.ShowWithMovie{Show: *cloneShow(sh), Movie: *m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShowDateTime.Before(out[j].ShowDateTime) })
	return out
}

func (r *memShowRepo) FindUpcoming(_ context.Context, from time.Time) ([]*entity.ShowWithMovie, error) {
	return r.upcoming(from), nil
}

func (r *memShowRepo) FindUpcomingByMovie(_ context.Context, movieID string, from time.Time) ([]*entity.Show, error) {
	var out []*entity.Show
	for _, sh := range r.upcoming(from) {
		if sh.MovieID == movieID {
			show := sh.Show
			out = append(out, &show)
		}
	}
	return out, nil
}

func (r *memShowRepo) FindAll(_ context.Context, limit, offset int) ([]*entity.ShowWithMovie, error) {
	all := r.upcoming(time.Time{})
	sort.SliceStable(all, func(i, j int) bool { return all[i].ShowDateTime.After(all[j].ShowDateTime) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memShowRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(r.upcoming(time.Time{}))), nil
}

func (r *memShowRepo) OccupiedSeats(_ context.Context, showID uuid.UUID) (entity.OccupancyMap, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh, ok := r.s.shows[showID]
	if !ok {
		return nil, nil
	}
	return sh.OccupiedSeats.Clone(), nil
}

func (r *memShowRepo) ClaimSeats(ctx context.Context, showID uuid.UUID, labels []string, userID string) (entity.OccupancyMap, error) {
	var (
		out entity.OccupancyMap
		err error
	)
	r.s.write(ctx, func() {
		sh, ok := r.s.shows[showID]
		if !ok {
			err = apperror.NotFound("show %s not found", showID)
			return
		}
		if err = sh.OccupiedSeats.Claim(labels, userID); err != nil {
			return
		}
		out = sh.OccupiedSeats.Clone()
	})
	return out, err
}

func (r *memShowRepo) ReleaseSeats(ctx context.Context, showID uuid.UUID, labels []string, userID string) (entity.OccupancyMap, error) {
	var (
		out entity.OccupancyMap
		err error
	)
	r.s.write(ctx, func() {
		if injected := r.s.releaseErr[showID]; injected != nil {
			err = injected
			return
		}
		sh, ok := r.s.shows[showID]
		if !ok {
			err = apperror.NotFound("show %s not found", showID)
			return
		}
		sh.OccupiedSeats.Release(labels, userID)
		out = sh.OccupiedSeats.Clone()
	})
	return out, err
}

// ---- bookings ----

type memBookingRepo struct{ s *memStore }

func (r *memBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	var err error
	r.s.write(ctx, func() {
		if r.s.createBookingErr != nil {
			err = r.s.createBookingErr
			return
		}
		r.s.bookings[booking.ID] = cloneBooking(booking)
	})
	return err
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.s.booking(id), nil
}

func (r *memBookingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	if ctx.Value(inTxKey{}) == nil {
		return nil, errors.New("FOR UPDATE outside transaction")
	}
	return r.s.booking(id), nil
}

func (r *memBookingRepo) FindByPaymentSession(_ context.Context, sessionID string) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.PaymentSessionID != nil && *b.PaymentSessionID == sessionID {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r *memBookingRepo) details(filter func(*entity.Booking) bool) []*entity.BookingDetail {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.BookingDetail
	for _, b := range r.s.bookings {
		if !filter(b) {
			continue
		}
		d := &entity.BookingDetail{Booking: *cloneBooking(b)}
		if sh, ok := r.s.shows[b.ShowID]; ok {
			d.Show = *cloneShow(sh)
			if m, ok := r.s.movies[sh.MovieID]; ok {
				d.Movie = *m
			}
		}
		if u, ok := r.s.users[b.UserID]; ok {
			user := *u
			d.User = &user
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (r *memBookingRepo) FindDetailsByUser(_ context.Context, userID string, limit, offset int) ([]*entity.BookingDetail, error) {
	return page(r.details(func(b *entity.Booking) bool { return b.UserID == userID }), limit, offset), nil
}

func (r *memBookingRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	return int64(len(r.details(func(b *entity.Booking) bool { return b.UserID == userID }))), nil
}

func (r *memBookingRepo) FindAllDetails(_ context.Context, limit, offset int) ([]*entity.BookingDetail, error) {
	return page(r.details(func(*entity.Booking) bool { return true }), limit, offset), nil
}

func (r *memBookingRepo) CountAll(_ context.Context) (int64, error) {
	return int64(r.s.bookingCount()), nil
}

func (r *memBookingRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	r.s.write(ctx, func() {
		if _, ok := r.s.bookings[id]; ok {
			delete(r.s.bookings, id)
			deleted = true
		}
	})
	return deleted, nil
}

func (r *memBookingRepo) AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID, link string) error {
	var err error
	r.s.write(ctx, func() {
		b, ok := r.s.bookings[id]
		if !ok || b.IsPaid {
			err = errors.New("no rows")
			return
		}
		b.PaymentSessionID = &sessionID
		b.PaymentLink = &link
	})
	return err
}

func (r *memBookingRepo) MarkPaid(ctx context.Context, id uuid.UUID, sessionID string) (*entity.Booking, error) {
	var out *entity.Booking
	r.s.write(ctx, func() {
		b, ok := r.s.bookings[id]
		if !ok || b.IsPaid {
			return
		}
		now := time.Now()
		b.IsPaid = true
		b.PaymentSessionID = &sessionID
		b.PaidAt = &now
		out = cloneBooking(b)
	})
	return out, nil
}

func (r *memBookingRepo) FindExpiredUnpaid(_ context.Context, cutoff time.Time, limit int) ([]*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if !b.IsPaid && b.CreatedAt.Before(cutoff) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memBookingRepo) DeleteUnpaid(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var out *entity.Booking
	r.s.write(ctx, func() {
		b, ok := r.s.bookings[id]
		if !ok || b.IsPaid {
			return
		}
		delete(r.s.bookings, id)
		out = cloneBooking(b)
	})
	return out, nil
}

// ---- movies & users ----

type memMovieRepo struct{ s *memStore }

func (r *memMovieRepo) Upsert(_ context.Context, movie *entity.Movie) error {
	r.s.addMovie(movie)
	return nil
}

func (r *memMovieRepo) FindByID(_ context.Context, id string) (*entity.Movie, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.movies[id]; ok {
		c := *m
		return &c, nil
	}
	return nil, nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Upsert(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	return nil
}

type memFavoriteRepo struct{ s *memStore }

func (r *memFavoriteRepo) Toggle(_ context.Context, userID, movieID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := r.s.favorites[userID]
	for i, id := range ids {
		if id == movieID {
			r.s.favorites[userID] = append(ids[:i:i], ids[i+1:]...)
			return false, nil
		}
	}
	r.s.favorites[userID] = append(ids, movieID)
	return true, nil
}

func (r *memFavoriteRepo) ListMovies(_ context.Context, userID string) ([]*entity.Movie, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := r.s.favorites[userID]
	var movies []*entity.Movie
	for i := len(ids) - 1; i >= 0; i-- {
		if m, ok := r.s.movies[ids[i]]; ok {
			c := *m
			movies = append(movies, &c)
		}
	}
	return movies, nil
}

func (r *memFavoriteRepo) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.favorites, userID)
	return nil
}

// ---- collaborators ----

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() {}

func newMockPublisher() *mockPublisher {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	return pub
}

// count returns how many events of type t were published
func (m *mockPublisher) count(t events.Type) int {
	n := 0
	for _, c := range m.Calls {
		if c.Method == "Publish" && c.Arguments.Get(1).(events.BookingEvent).Type == t {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*entity.BookingDetail
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, d *entity.BookingDetail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, d)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
