// Package details shapes a TMDB title record into what the details page
// shows, including the season and episode picked for the player.
package details

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cinescope/models"
	"cinescope/services/metadata"
	"cinescope/services/stream"
	"cinescope/utils"
)

const (
	maxTrailers        = 10
	maxCast            = 15
	maxRecommendations = 15
)

// Fetcher is satisfied by the metadata service.
type Fetcher interface {
	Details(ctx context.Context, mediaType string, id int64) (*models.Details, error)
}

// Selection is the requested season/episode. Zero values mean "default".
type Selection struct {
	Season  int
	Episode int
}

type View struct {
	Kind      string `json:"kind"`      // route kind: movie, tv or anime
	MediaType string `json:"mediaType"` // what TMDB calls it
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`

	Title        string `json:"title"`
	ReleaseDate  string `json:"releaseDate,omitempty"`
	DateLabel    string `json:"dateLabel,omitempty"`
	Runtime      int    `json:"runtime,omitempty"`
	RuntimeLabel string `json:"runtimeLabel,omitempty"`

	Details         *models.Details       `json:"details"`
	Trailers        []models.Video        `json:"trailers"`
	Cast            []models.CastMember   `json:"cast"`
	Recommendations []models.MediaSummary `json:"recommendations"`

	Seasons  []models.Season `json:"seasons"` // only seasons the player can open
	Season   int             `json:"season"`
	Episode  int             `json:"episode"`
	Episodes []int           `json:"episodes"`
	EmbedURL string          `json:"embedUrl"`
	Playable bool            `json:"playable"`
}

// Load fetches the title and builds its view. Anime is fetched as tv.
func Load(ctx context.Context, fetcher Fetcher, embedder *stream.Embedder, kind string, id int64, sel Selection) (*View, error) {
	mediaType, err := metadata.NormalizeMediaType(kind)
	if err != nil {
		return nil, err
	}
	d, err := fetcher.Details(ctx, mediaType, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return Build(d, kind, sel, embedder), nil
}

// Build derives the view from an already fetched record.
func Build(d *models.Details, kind string, sel Selection, embedder *stream.Embedder) *View {
	kind = strings.ToLower(strings.TrimSpace(kind))
	mediaType := d.MediaType
	if mediaType == "" {
		mediaType, _ = metadata.NormalizeMediaType(kind)
	}

	v := &View{
		Kind:        kind,
		MediaType:   mediaType,
		ID:          d.ID,
		Title:       firstNonEmpty(d.Title, d.Name),
		ReleaseDate: firstNonEmpty(d.ReleaseDate, d.FirstAirDate),
		Details:     d,
	}
	v.Slug = utils.Slugify(v.Title)
	v.DateLabel = formatDate(v.ReleaseDate)
	v.Runtime = d.Runtime
	if v.Runtime == 0 && len(d.EpisodeRunTime) > 0 {
		v.Runtime = d.EpisodeRunTime[0]
	}
	v.RuntimeLabel = runtimeLabel(v.Runtime, mediaType, d.NumberOfSeasons)

	v.Trailers = Trailers(d.Videos)
	v.Cast = d.Cast
	if len(v.Cast) > maxCast {
		v.Cast = v.Cast[:maxCast]
	}
	v.Recommendations = recommendations(d.Recommendations)

	if mediaType == "tv" {
		v.Seasons = PlayableSeasons(d.Seasons)
		v.Season, v.Episode = resolveSelection(v.Seasons, sel)
		v.Episodes = EpisodeNumbers(v.Seasons, v.Season)
	}

	target := stream.Target{MediaType: mediaType, ID: d.ID, Season: v.Season, Episode: v.Episode}
	v.Playable = target.Playable()
	if embedder != nil {
		v.EmbedURL = embedder.URL(target)
	}
	return v
}

// Trailers keeps YouTube trailers and teasers, at most ten.
func Trailers(videos []models.Video) []models.Video {
	out := make([]models.Video, 0, maxTrailers)
	for _, v := range videos {
		if v.Site != "YouTube" || (v.Type != "Trailer" && v.Type != "Teaser") {
			continue
		}
		out = append(out, v)
		if len(out) == maxTrailers {
			break
		}
	}
	return out
}

func recommendations(items []models.MediaSummary) []models.MediaSummary {
	out := make([]models.MediaSummary, 0, maxRecommendations)
	for _, item := range items {
		if item.Poster == nil {
			continue
		}
		out = append(out, item)
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}

// PlayableSeasons drops specials and seasons without episodes.
func PlayableSeasons(seasons []models.Season) []models.Season {
	out := make([]models.Season, 0, len(seasons))
	for _, s := range seasons {
		if s.Number > 0 && s.EpisodeCount > 0 {
			out = append(out, s)
		}
	}
	return out
}

// EpisodeNumbers lists 1..episode_count for the season, empty if unknown.
func EpisodeNumbers(seasons []models.Season, season int) []int {
	for _, s := range seasons {
		if s.Number != season {
			continue
		}
		eps := make([]int, s.EpisodeCount)
		for i := range eps {
			eps[i] = i + 1
		}
		return eps
	}
	return []int{}
}

// resolveSelection defaults to S1E1. A season the show does not offer falls
// back to the first offered one; an episode past the season's end goes back
// to episode 1.
func resolveSelection(seasons []models.Season, sel Selection) (int, int) {
	season, episode := sel.Season, sel.Episode
	if season <= 0 {
		season = 1
	}
	if episode <= 0 {
		episode = 1
	}
	if len(seasons) == 0 {
		return season, episode
	}
	var picked *models.Season
	for i := range seasons {
		if seasons[i].Number == season {
			picked = &seasons[i]
			break
		}
	}
	if picked == nil {
		picked = &seasons[0]
		episode = 1
	}
	if episode > picked.EpisodeCount {
		episode = 1
	}
	return picked.Number, episode
}

func runtimeLabel(minutes int, mediaType string, seasons int) string {
	if minutes <= 0 {
		return ""
	}
	label := fmt.Sprintf("%d min", minutes)
	if mediaType == "tv" && seasons > 0 {
		suffix := ""
		if seasons > 1 {
			suffix = "s"
		}
		label += fmt.Sprintf(" • %d Season%s", seasons, suffix)
	}
	return label
}

func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
