package usecase

import (
	"context"
	"strings"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

// UserService mirrors identity provider accounts locally and keeps each
// user's favorite movies.
type UserService interface {
	SyncUser(ctx context.Context, event *request.IdentityEvent) error
	ToggleFavorite(ctx context.Context, userID string, req *request.FavoriteRequest) (*response.FavoriteResponse, error)
	Favorites(ctx context.Context, userID string) ([]response.MovieResponse, error)
}

type userService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewUserService(repo *repository.Repository, log *zap.Logger) UserService {
	return &userService{
		repo: repo,
		log:  log.With(zap.String("service", "user")),
	}
}

func (us *userService) SyncUser(ctx context.Context, event *request.IdentityEvent) error {
	if errs := utils.ValidateStruct(event); len(errs) > 0 {
		return &apperror.Error{
			Kind:    apperror.KindValidation,
			Message: "validation failed: " + utils.FormatValidationErrors(errs),
			Details: errs,
		}
	}

	switch event.Type {
	case "user.deleted":
		if err := us.repo.User.Delete(ctx, event.Data.ID); err != nil {
			return err
		}
		if err := us.repo.Favorite.DeleteByUser(ctx, event.Data.ID); err != nil {
			return err
		}
		us.log.Info("User deleted", zap.String("user_id", event.Data.ID))
		return nil

	default:
		user := &entity.User{
			ID:   event.Data.ID,
			Name: strings.TrimSpace(event.Data.FirstName + " " + event.Data.LastName),
		}
		if len(event.Data.EmailAddresses) > 0 {
			user.Email = event.Data.EmailAddresses[0].EmailAddress
		}
		if event.Data.ImageURL != "" {
			image := event.Data.ImageURL
			user.ImageURL = &image
		}

		if err := us.repo.User.Upsert(ctx, user); err != nil {
			return err
		}
		us.log.Info("User synced", zap.String("user_id", user.ID), zap.String("event", event.Type))
		return nil
	}
}

func (us *userService) ToggleFavorite(ctx context.Context, userID string, req *request.FavoriteRequest) (*response.FavoriteResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &apperror.Error{
			Kind:    apperror.KindValidation,
			Message: "validation failed: " + utils.FormatValidationErrors(errs),
			Details: errs,
		}
	}

	movie, err := us.repo.Movie.FindByID(ctx, req.MovieID)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, apperror.NotFound("movie %s not found", req.MovieID)
	}

	added, err := us.repo.Favorite.Toggle(ctx, userID, movie.ID)
	if err != nil {
		return nil, err
	}

	us.log.Info("Favorite toggled",
		zap.String("user_id", userID),
		zap.String("movie_id", movie.ID),
		zap.Bool("favorite", added),
	)

	return &response.FavoriteResponse{MovieID: movie.ID, IsFavorite: added}, nil
}

// Favorites lists the user's favorite movies, most recently added first
func (us *userService) Favorites(ctx context.Context, userID string) ([]response.MovieResponse, error) {
	movies, err := us.repo.Favorite.ListMovies(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]response.MovieResponse, 0, len(movies))
	for _, m := range movies {
		result = append(result, response.MovieToResponse(m))
	}
	return result, nil
}
