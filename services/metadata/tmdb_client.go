package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"cinescope/models"
)

const (
	defaultTMDBBaseURL      = "https://api.themoviedb.org/3"
	defaultTMDBImageBaseURL = "https://image.tmdb.org/t/p"
	// Optimized sizes instead of "original" to keep pages light
	tmdbPosterSize   = "w500"
	tmdbBackdropSize = "w1280"
	tmdbProfileSize  = "w185"
)

// APIError is a non-2xx answer from TMDB. Message carries the
// human-readable status_message when TMDB sent one.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tmdb request failed: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("tmdb request failed: %s", e.Status)
}

// StatusMessage returns the remote-supplied message, possibly empty.
func (e *APIError) StatusMessage() string {
	return e.Message
}

type tmdbClient struct {
	apiKey       string
	language     string
	baseURL      string
	imageBaseURL string
	httpc        *http.Client

	limiter  *rate.Limiter
	attempts uint
	backoff  time.Duration
}

func newTMDBClient(apiKey, lang, baseURL, imageBaseURL string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(imageBaseURL) == "" {
		imageBaseURL = defaultTMDBImageBaseURL
	}
	return &tmdbClient{
		apiKey:       strings.TrimSpace(apiKey),
		language:     normalizeLanguage(lang),
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		httpc:        httpc,
		limiter:      rate.NewLimiter(rate.Every(20*time.Millisecond), 1), // TMDB has generous rate limits
		attempts:     3,
		backoff:      300 * time.Millisecond,
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a throttled GET against the TMDB API and decodes the JSON
// body into v. 429 and 5xx answers are retried with exponential backoff.
func (c *tmdbClient) doGET(ctx context.Context, params url.Values, v any, segments ...string) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}
	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if params.Get("language") == "" {
		params.Set("language", c.language)
	}
	endpoint += "?" + params.Encode()
	label := strings.Join(segments, "/")

	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpc.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return decodeAPIError(resp)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(decodeAPIError(resp))
			}
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tmdb %s: %w", label, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[tmdb] %s failed (attempt %d/%d): %v", label, n+1, c.attempts, err)
		}),
	)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = strings.TrimSpace(payload.StatusMessage)
	}
	return apiErr
}

type tmdbListItem struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	FirstAirDate string  `json:"first_air_date"`
	ReleaseDate  string  `json:"release_date"`
	MediaType    string  `json:"media_type"`
}

type tmdbListResponse struct {
	Page         int            `json:"page"`
	Results      []tmdbListItem `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

type tmdbGenresResponse struct {
	Genres []models.Genre `json:"genres"`
}

type tmdbDetailsResponse struct {
	tmdbListItem
	Tagline         string         `json:"tagline"`
	Runtime         int            `json:"runtime"`
	EpisodeRunTime  []int          `json:"episode_run_time"`
	NumberOfSeasons int            `json:"number_of_seasons"`
	Genres          []models.Genre `json:"genres"`
	Seasons         []struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		SeasonNumber int    `json:"season_number"`
		EpisodeCount int    `json:"episode_count"`
		AirDate      string `json:"air_date"`
		PosterPath   string `json:"poster_path"`
	} `json:"seasons"`
	Videos struct {
		Results []tmdbVideo `json:"results"`
	} `json:"videos"`
	Credits struct {
		Cast []struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			Character   string `json:"character"`
			Order       int    `json:"order"`
			ProfilePath string `json:"profile_path"`
		} `json:"cast"`
	} `json:"credits"`
	Recommendations tmdbListResponse `json:"recommendations"`
}

type tmdbVideo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

func (c *tmdbClient) trending(ctx context.Context, mediaType, window string) (*models.PagedResults, error) {
	var payload tmdbListResponse
	if err := c.doGET(ctx, nil, &payload, "trending", mediaType, window); err != nil {
		return nil, err
	}
	return c.toPaged(payload, mediaType), nil
}

// list fetches the fixed lists: popular, top_rated, upcoming, on_the_air.
func (c *tmdbClient) list(ctx context.Context, mediaType, list string, page int) (*models.PagedResults, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	var payload tmdbListResponse
	if err := c.doGET(ctx, params, &payload, mediaType, list); err != nil {
		return nil, err
	}
	return c.toPaged(payload, mediaType), nil
}

func (c *tmdbClient) genres(ctx context.Context, mediaType string) ([]models.Genre, error) {
	var payload tmdbGenresResponse
	if err := c.doGET(ctx, nil, &payload, "genre", mediaType, "list"); err != nil {
		return nil, err
	}
	if payload.Genres == nil {
		return []models.Genre{}, nil
	}
	return payload.Genres, nil
}

func (c *tmdbClient) discover(ctx context.Context, q DiscoverQuery) (*models.PagedResults, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("sort_by", "popularity.desc")
	params.Set("include_adult", "false")
	if q.GenreID > 0 {
		params.Set("with_genres", strconv.Itoa(q.GenreID))
	}
	if lang := strings.TrimSpace(q.OriginalLanguage); lang != "" {
		params.Set("with_original_language", lang)
	}
	var payload tmdbListResponse
	if err := c.doGET(ctx, params, &payload, "discover", q.MediaType); err != nil {
		return nil, err
	}
	return c.toPaged(payload, q.MediaType), nil
}

func (c *tmdbClient) searchMulti(ctx context.Context, query string, page int) (*models.PagedResults, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")
	var payload tmdbListResponse
	if err := c.doGET(ctx, params, &payload, "search", "multi"); err != nil {
		return nil, err
	}
	// People show up in multi search; only titles are browsable
	kept := payload.Results[:0]
	for _, item := range payload.Results {
		if item.MediaType == "movie" || item.MediaType == "tv" {
			kept = append(kept, item)
		}
	}
	payload.Results = kept
	return c.toPaged(payload, ""), nil
}

func (c *tmdbClient) details(ctx context.Context, mediaType string, id int64) (*models.Details, error) {
	params := url.Values{}
	params.Set("append_to_response", "videos,credits,recommendations")
	var payload tmdbDetailsResponse
	if err := c.doGET(ctx, params, &payload, mediaType, strconv.FormatInt(id, 10)); err != nil {
		return nil, err
	}

	details := &models.Details{
		ID:              payload.ID,
		MediaType:       mediaType,
		Title:           payload.Title,
		Name:            payload.Name,
		Tagline:         payload.Tagline,
		Overview:        payload.Overview,
		ReleaseDate:     payload.ReleaseDate,
		FirstAirDate:    payload.FirstAirDate,
		Runtime:         payload.Runtime,
		EpisodeRunTime:  payload.EpisodeRunTime,
		NumberOfSeasons: payload.NumberOfSeasons,
		VoteAverage:     payload.VoteAverage,
		Genres:          payload.Genres,
		Poster:          c.image(payload.PosterPath, tmdbPosterSize, "poster"),
		Backdrop:        c.image(payload.BackdropPath, tmdbBackdropSize, "backdrop"),
	}
	if details.Genres == nil {
		details.Genres = []models.Genre{}
	}

	for _, s := range payload.Seasons {
		details.Seasons = append(details.Seasons, models.Season{
			ID:           s.ID,
			Name:         s.Name,
			Number:       s.SeasonNumber,
			EpisodeCount: s.EpisodeCount,
			AirDate:      s.AirDate,
			Poster:       c.image(s.PosterPath, tmdbPosterSize, "poster"),
		})
	}
	for _, v := range payload.Videos.Results {
		if video, ok := buildVideo(v); ok {
			details.Videos = append(details.Videos, video)
		}
	}
	for _, member := range payload.Credits.Cast {
		cast := models.CastMember{
			ID:        member.ID,
			Name:      member.Name,
			Character: member.Character,
			Order:     member.Order,
		}
		if img := c.image(member.ProfilePath, tmdbProfileSize, "profile"); img != nil {
			cast.ProfileURL = img.URL
		}
		details.Cast = append(details.Cast, cast)
	}
	details.Recommendations = c.toPaged(payload.Recommendations, mediaType).Results
	return details, nil
}

func (c *tmdbClient) toPaged(payload tmdbListResponse, mediaType string) *models.PagedResults {
	paged := &models.PagedResults{
		Page:         payload.Page,
		TotalPages:   payload.TotalPages,
		TotalResults: payload.TotalResults,
		Results:      make([]models.MediaSummary, 0, len(payload.Results)),
	}
	for _, r := range payload.Results {
		kind := mediaType
		if r.MediaType == "movie" || r.MediaType == "tv" {
			kind = r.MediaType
		}
		date := r.ReleaseDate
		if date == "" {
			date = r.FirstAirDate
		}
		paged.Results = append(paged.Results, models.MediaSummary{
			ID:          r.ID,
			Title:       pickTMDBName(kind, r.Name, r.Title),
			Overview:    r.Overview,
			MediaType:   kind,
			Year:        parseTMDBYear(r.ReleaseDate, r.FirstAirDate),
			ReleaseDate: date,
			Rating:      r.VoteAverage,
			Popularity:  r.Popularity,
			Poster:      c.image(r.PosterPath, tmdbPosterSize, "poster"),
			Backdrop:    c.image(r.BackdropPath, tmdbBackdropSize, "backdrop"),
		})
	}
	return paged
}

func (c *tmdbClient) image(imagePath, size, imageType string) *models.Image {
	return buildTMDBImage(c.imageBaseURL, imagePath, size, imageType)
}

func buildVideo(v tmdbVideo) (models.Video, bool) {
	key := strings.TrimSpace(v.Key)
	if key == "" {
		return models.Video{}, false
	}
	video := models.Video{
		Key:      key,
		Name:     strings.TrimSpace(v.Name),
		Site:     strings.TrimSpace(v.Site),
		Type:     strings.TrimSpace(v.Type),
		Official: v.Official,
	}
	switch strings.ToLower(video.Site) {
	case "youtube":
		video.URL = fmt.Sprintf("https://www.youtube.com/watch?v=%s", key)
		video.EmbedURL = fmt.Sprintf("https://www.youtube.com/embed/%s", key)
		video.ThumbnailURL = fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", key)
	case "vimeo":
		video.URL = fmt.Sprintf("https://vimeo.com/%s", key)
		video.EmbedURL = fmt.Sprintf("https://player.vimeo.com/video/%s", key)
	default:
		video.URL = key
	}
	return video, true
}

func pickTMDBName(mediaType, seriesName, movieTitle string) string {
	if mediaType == "movie" && movieTitle != "" {
		return movieTitle
	}
	if seriesName != "" {
		return seriesName
	}
	return movieTitle
}

func parseTMDBYear(movieDate, seriesDate string) int {
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if date == "" {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func buildTMDBImage(baseURL, imagePath, size, imageType string) *models.Image {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return nil
	}
	fullPath := path.Join(size, strings.TrimPrefix(trimmed, "/"))
	return &models.Image{
		URL:  fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), fullPath),
		Type: imageType,
	}
}

// normalizeLanguage turns loose language settings (en, en_US, pt-br) into the
// ll-CC form TMDB expects. A bare language gets the US region.
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return "en-US"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "en-US"
	}
	base, _ := tag.Base()
	if region, conf := tag.Region(); conf == language.Exact {
		return base.String() + "-" + region.String()
	}
	return base.String() + "-US"
}

// isNotFound reports whether err is a TMDB 404.
func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
