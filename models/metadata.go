package models

// Basic metadata structures for listings, details and images.

type Image struct {
	URL  string `json:"url"`
	Type string `json:"type"` // poster, backdrop, profile
}

// MediaSummary is the card-level view of a movie or series.
type MediaSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	MediaType   string  `json:"mediaType"` // movie | tv
	Year        int     `json:"year,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	Rating      float64 `json:"rating"`
	Popularity  float64 `json:"popularity,omitempty"`
	Poster      *Image  `json:"poster,omitempty"`
	Backdrop    *Image  `json:"backdrop,omitempty"`
}

// Genre is a TMDB genre; its ID doubles as the explore sub-filter.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PagedResults is one page of a paginated list endpoint.
type PagedResults struct {
	Page         int            `json:"page"`
	Results      []MediaSummary `json:"results"`
	TotalPages   int            `json:"totalPages"`
	TotalResults int            `json:"totalResults"`
}

type Video struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Site         string `json:"site"`
	Type         string `json:"type"` // Trailer, Teaser, Clip, Featurette ...
	Official     bool   `json:"official,omitempty"`
	URL          string `json:"url,omitempty"`
	EmbedURL     string `json:"embedUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// CastMember represents an actor in a movie or series
type CastMember struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Character  string `json:"character"`
	Order      int    `json:"order"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

type Season struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Number       int    `json:"number"`
	EpisodeCount int    `json:"episodeCount"`
	AirDate      string `json:"airDate,omitempty"`
	Poster       *Image `json:"poster,omitempty"`
}

// Details is the superset object returned for a single title. Movie and
// series fields are both present; whichever the remote did not send stay zero.
type Details struct {
	ID              int64          `json:"id"`
	MediaType       string         `json:"mediaType"`
	Title           string         `json:"title,omitempty"`
	Name            string         `json:"name,omitempty"`
	Tagline         string         `json:"tagline,omitempty"`
	Overview        string         `json:"overview"`
	ReleaseDate     string         `json:"releaseDate,omitempty"`
	FirstAirDate    string         `json:"firstAirDate,omitempty"`
	Runtime         int            `json:"runtime,omitempty"`
	EpisodeRunTime  []int          `json:"episodeRunTime,omitempty"`
	NumberOfSeasons int            `json:"numberOfSeasons,omitempty"`
	VoteAverage     float64        `json:"voteAverage"`
	Genres          []Genre        `json:"genres"`
	Poster          *Image         `json:"poster,omitempty"`
	Backdrop        *Image         `json:"backdrop,omitempty"`
	Seasons         []Season       `json:"seasons,omitempty"`
	Videos          []Video        `json:"videos,omitempty"`
	Cast            []CastMember   `json:"cast,omitempty"`
	Recommendations []MediaSummary `json:"recommendations,omitempty"`
}
