// Package stream builds third-party player embed URLs. Nothing here checks
// that the remote player can actually serve the title.
package stream

import (
	"fmt"
	"strings"
)

const DefaultEmbedBaseURL = "https://vidsrc.cc/v2/embed"

// Target identifies what to play. Season and Episode only matter for tv.
type Target struct {
	MediaType string
	ID        int64
	Season    int
	Episode   int
}

// Playable reports whether the target has everything the player needs.
func (t Target) Playable() bool {
	switch t.MediaType {
	case "movie":
		return t.ID > 0
	case "tv":
		return t.ID > 0 && t.Season > 0 && t.Episode > 0
	}
	return false
}

type Embedder struct {
	baseURL string
}

func NewEmbedder(baseURL string) *Embedder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultEmbedBaseURL
	}
	return &Embedder{baseURL: baseURL}
}

// URL returns the embed URL for t, or "" when t is not playable.
// Anime is served by the tv player.
func (e *Embedder) URL(t Target) string {
	if strings.EqualFold(t.MediaType, "anime") {
		t.MediaType = "tv"
	}
	t.MediaType = strings.ToLower(t.MediaType)
	if !t.Playable() {
		return ""
	}
	if t.MediaType == "movie" {
		return fmt.Sprintf("%s/movie/%d", e.baseURL, t.ID)
	}
	return fmt.Sprintf("%s/tv/%d/%d/%d", e.baseURL, t.ID, t.Season, t.Episode)
}
