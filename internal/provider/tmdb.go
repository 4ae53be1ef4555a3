package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const imageBaseURL = "https://image.tmdb.org/t/p/original"

// TMDBClient fetches movie metadata from The Movie Database
type TMDBClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	group      singleflight.Group
	log        *zap.Logger
}

func NewTMDBClient(config utils.TMDBConfig, log *zap.Logger) *TMDBClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	return &TMDBClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With(zap.String("provider", "tmdb")),
	}
}

type tmdbMovie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	Runtime      int     `json:"runtime"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func (m *tmdbMovie) toEntity() *entity.Movie {
	movie := &entity.Movie{
		ID:           fmt.Sprint(m.ID),
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   imageURL(m.PosterPath),
		BackdropPath: imageURL(m.BackdropPath),
		ReleaseDate:  m.ReleaseDate,
		Runtime:      m.Runtime,
		VoteAverage:  m.VoteAverage,
		Genres:       make([]string, 0, len(m.Genres)),
	}
	for _, g := range m.Genres {
		movie.Genres = append(movie.Genres, g.Name)
	}
	return movie
}

func imageURL(path string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + path
}

// FetchMovie loads one movie's details. Concurrent calls for the same id
// share a single request.
func (c *TMDBClient) FetchMovie(ctx context.Context, movieID string) (*entity.Movie, error) {
	v, err, _ := c.group.Do(movieID, func() (interface{}, error) {
		var m tmdbMovie
		if err := c.get(ctx, "/movie/"+url.PathEscape(movieID), &m); err != nil {
			return nil, err
		}
		return m.toEntity(), nil
	})
	if err != nil {
		return nil, err
	}

	// callers may modify the result
	movie := *v.(*entity.Movie)
	movie.Genres = append([]string(nil), movie.Genres...)
	return &movie, nil
}

// NowPlaying lists movies currently in theaters
func (c *TMDBClient) NowPlaying(ctx context.Context) ([]*entity.Movie, error) {
	var page struct {
		Results []tmdbMovie `json:"results"`
	}
	if err := c.get(ctx, "/movie/now_playing", &page); err != nil {
		return nil, err
	}

	movies := make([]*entity.Movie, 0, len(page.Results))
	for i := range page.Results {
		movies = append(movies, page.Results[i].toEntity())
	}
	return movies, nil
}

func (c *TMDBClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("TMDB request failed", zap.Error(err), zap.String("path", path))
		return apperror.Upstream(err, "movie provider unavailable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("movie not found at provider: %s", path)
	case resp.StatusCode != http.StatusOK:
		c.log.Warn("TMDB unexpected status", zap.Int("status", resp.StatusCode), zap.String("path", path))
		return apperror.Upstream(fmt.Errorf("unexpected status code: %d", resp.StatusCode), "movie provider unavailable")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Upstream(fmt.Errorf("failed to decode response: %w", err), "movie provider unavailable")
	}
	return nil
}
