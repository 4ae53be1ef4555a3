package usecase

import (
	"context"
	"fmt"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MovieProvider fetches metadata for movies not yet in the catalog
type MovieProvider interface {
	FetchMovie(ctx context.Context, movieID string) (*entity.Movie, error)
	NowPlaying(ctx context.Context) ([]*entity.Movie, error)
}

type ShowService interface {
	AddShows(ctx context.Context, req *request.AddShowRequest) (*response.AddShowResponse, error)
	ListNowShowing(ctx context.Context) ([]response.MovieResponse, error)
	GetMovieShows(ctx context.Context, movieID string) (*response.MovieShowsResponse, error)

	// Admin
	NowPlaying(ctx context.Context) ([]response.MovieResponse, error)
	ListAllShows(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ShowResponse], error)
}

type showService struct {
	repo     *repository.Repository
	provider MovieProvider
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger
}

func NewShowService(repo *repository.Repository, provider MovieProvider, loc *time.Location, now func() time.Time, log *zap.Logger) ShowService {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &showService{
		repo:     repo,
		provider: provider,
		loc:      loc,
		now:      now,
		log:      log.With(zap.String("service", "show")),
	}
}

func (s *showService) AddShows(ctx context.Context, req *request.AddShowRequest) (*response.AddShowResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Add show validation failed", zap.Any("errors", errs))
		return nil, &apperror.Error{
			Kind:    apperror.KindValidation,
			Message: "validation failed: " + utils.FormatValidationErrors(errs),
			Details: errs,
		}
	}

	tier := entity.TheaterTier(req.TheaterType)
	if tier == "" {
		tier = entity.TierStandard
	}
	if !tier.Valid() {
		return nil, apperror.Validation("unknown theater type %q", req.TheaterType)
	}

	now := s.now()
	var starts []time.Time
	for _, slot := range req.ShowInput {
		for _, t := range slot.Times {
			start, err := time.ParseInLocation("2006-01-02 15:04", slot.Date+" "+t, s.loc)
			if err != nil {
				return nil, apperror.Validation("invalid show time %s %s", slot.Date, t)
			}
			if !start.After(now) {
				return nil, apperror.Validation("show time %s %s is in the past", slot.Date, t)
			}
			starts = append(starts, start)
		}
	}

	if err := s.ensureMovie(ctx, req.MovieID); err != nil {
		return nil, err
	}

	resp := &response.AddShowResponse{MovieID: req.MovieID}
	err := s.repo.Tx.InTx(ctx, func(ctx context.Context) error {
		for _, start := range starts {
			show := &entity.Show{
				BaseNoDelete: entity.BaseNoDelete{
					ID:        uuid.New(),
					CreatedAt: now,
					UpdatedAt: now,
				},
				MovieID:       req.MovieID,
				ShowDateTime:  start,
				ShowPrice:     utils.RoundMoney(req.ShowPrice),
				TheaterType:   tier,
				OccupiedSeats: entity.OccupancyMap{},
			}
			if err := s.repo.Show.Create(ctx, show); err != nil {
				return err
			}
			resp.ShowIDs = append(resp.ShowIDs, show.ID.String())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add shows: %w", err)
	}

	s.log.Info("Shows added",
		zap.String("movie_id", req.MovieID),
		zap.Int("count", len(resp.ShowIDs)),
		zap.String("theater_type", string(tier)),
	)

	return resp, nil
}

// ensureMovie stores the movie's metadata on first use
func (s *showService) ensureMovie(ctx context.Context, movieID string) error {
	movie, err := s.repo.Movie.FindByID(ctx, movieID)
	if err != nil {
		return err
	}
	if movie != nil {
		return nil
	}

	if s.provider == nil {
		return apperror.Validation("movie %s is not in the catalog", movieID)
	}

	movie, err = s.provider.FetchMovie(ctx, movieID)
	if err != nil {
		s.log.Error("Failed to fetch movie metadata", zap.Error(err), zap.String("movie_id", movieID))
		if apperror.KindOf(err) != apperror.KindInternal {
			return err
		}
		return apperror.Upstream(err, "movie provider unavailable")
	}

	return s.repo.Movie.Upsert(ctx, movie)
}

// ListNowShowing returns each movie with an upcoming show once, in show order
func (s *showService) ListNowShowing(ctx context.Context) ([]response.MovieResponse, error) {
	shows, err := s.repo.Show.FindUpcoming(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list now showing: %w", err)
	}

	seen := make(map[string]bool)
	movies := make([]response.MovieResponse, 0)
	for _, sh := range shows {
		if seen[sh.Movie.ID] {
			continue
		}
		seen[sh.Movie.ID] = true
		movies = append(movies, response.MovieToResponse(&sh.Movie))
	}

	return movies, nil
}

// GetMovieShows returns a movie with its upcoming showtimes grouped by date
func (s *showService) GetMovieShows(ctx context.Context, movieID string) (*response.MovieShowsResponse, error) {
	var (
		movie *entity.Movie
		shows []*entity.Show
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		movie, err = s.repo.Movie.FindByID(gctx, movieID)
		return err
	})
	g.Go(func() error {
		var err error
		shows, err = s.repo.Show.FindUpcomingByMovie(gctx, movieID, s.now())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get movie shows: %w", err)
	}

	if movie == nil {
		return nil, apperror.NotFound("movie %s not found", movieID)
	}

	dateTimes := make(map[string][]response.ShowTime)
	for _, sh := range shows {
		local := sh.ShowDateTime.In(s.loc)
		day := local.Format("2006-01-02")
		dateTimes[day] = append(dateTimes[day], response.ShowTime{
			ShowID:      sh.ID.String(),
			Time:        local,
			TheaterType: string(sh.TheaterType),
			SeatPrice:   sh.SeatPrice(),
		})
	}

	return &response.MovieShowsResponse{
		Movie:     response.MovieToResponse(movie),
		DateTimes: dateTimes,
	}, nil
}

// NowPlaying lists movies in theaters at the provider, for picking what to schedule
func (s *showService) NowPlaying(ctx context.Context) ([]response.MovieResponse, error) {
	if s.provider == nil {
		return nil, apperror.Upstream(nil, "movie provider not configured")
	}

	movies, err := s.provider.NowPlaying(ctx)
	if err != nil {
		s.log.Error("Failed to fetch now playing movies", zap.Error(err))
		if apperror.KindOf(err) != apperror.KindInternal {
			return nil, err
		}
		return nil, apperror.Upstream(err, "movie provider unavailable")
	}

	out := make([]response.MovieResponse, len(movies))
	for i, m := range movies {
		out[i] = response.MovieToResponse(m)
	}
	return out, nil
}

func (s *showService) ListAllShows(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ShowResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	shows, err := s.repo.Show.FindAll(ctx, limit, offset)
	if err != nil {
		s.log.Error("Failed to list shows", zap.Error(err))
		return nil, fmt.Errorf("list shows: %w", err)
	}

	total, err := s.repo.Show.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count shows: %w", err)
	}

	out := make([]response.ShowResponse, len(shows))
	for i, sh := range shows {
		out[i] = response.ShowToResponse(&sh.Show, &sh.Movie)
	}

	return response.NewPaginatedResponse(out, req.Page, limit, total), nil
}
