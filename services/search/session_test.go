package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cinescope/models"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	handler func(ctx context.Context, query string) (*models.PagedResults, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, page int) (*models.PagedResults, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.handler != nil {
		return f.handler(ctx, query)
	}
	return &models.PagedResults{Page: 1, Results: []models.MediaSummary{{ID: 1, Title: query}}}, nil
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type apiErr string

func (e apiErr) Error() string         { return string(e) }
func (e apiErr) StatusMessage() string { return string(e) }

func settle(t *testing.T, s *Session) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.Settle(ctx)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	return snap
}

func TestSessionDebouncesInput(t *testing.T) {
	searcher := &fakeSearcher{}
	s := NewSession(searcher, 30*time.Millisecond)
	defer s.Close()

	for _, partial := range []string{"d", "du", "dun", "  dune  "} {
		s.Input(partial)
		time.Sleep(5 * time.Millisecond)
	}
	snap := settle(t, s)

	if got := searcher.seen(); len(got) != 1 || got[0] != "dune" {
		t.Fatalf("expected a single search for dune, got %v", got)
	}
	if snap.Status != StatusReady || snap.Term != "dune" || len(snap.Results) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Message() != "" {
		t.Fatalf("unexpected message %q", snap.Message())
	}
}

func TestSessionBlankInputIsIdle(t *testing.T) {
	searcher := &fakeSearcher{}
	s := NewSession(searcher, time.Millisecond)
	defer s.Close()

	s.Input("   ")
	snap := settle(t, s)
	if snap.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", snap.Status)
	}
	if snap.Message() != "Enter a search term to get started." {
		t.Fatalf("unexpected message %q", snap.Message())
	}
	if len(searcher.seen()) != 0 {
		t.Fatalf("blank input reached the searcher: %v", searcher.seen())
	}
}

func TestSessionEmptyResultsMessage(t *testing.T) {
	searcher := &fakeSearcher{handler: func(ctx context.Context, query string) (*models.PagedResults, error) {
		return &models.PagedResults{Page: 1}, nil
	}}
	s := NewSession(searcher, time.Millisecond)
	defer s.Close()

	s.Input("zzqx")
	snap := settle(t, s)
	if snap.Status != StatusReady {
		t.Fatalf("expected ready, got %s", snap.Status)
	}
	if snap.Results == nil || len(snap.Results) != 0 {
		t.Fatalf("expected empty result set, got %v", snap.Results)
	}
	if got := snap.Message(); got != `No results found for "zzqx".` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestSessionErrorMessages(t *testing.T) {
	searcher := &fakeSearcher{handler: func(ctx context.Context, query string) (*models.PagedResults, error) {
		if query == "remote" {
			return nil, apiErr("Invalid API key")
		}
		return nil, errors.New("connection reset")
	}}
	s := NewSession(searcher, time.Millisecond)
	defer s.Close()

	s.Input("remote")
	if snap := settle(t, s); snap.Status != StatusError || snap.Error != "Invalid API key" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	s.Input("other")
	if snap := settle(t, s); snap.Error != "Failed to fetch data" || snap.Message() != "Failed to fetch data" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSessionLastTermWins(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	searcher := &fakeSearcher{handler: func(ctx context.Context, query string) (*models.PagedResults, error) {
		if query == "alien" {
			close(firstStarted)
			<-release // answers late regardless of cancellation
		}
		return &models.PagedResults{Results: []models.MediaSummary{{ID: 1, Title: query}}}, nil
	}}
	s := NewSession(searcher, time.Millisecond)
	defer s.Close()

	s.Input("alien")
	<-firstStarted
	s.Input("aliens")
	settle(t, s)
	close(release)
	time.Sleep(10 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Term != "aliens" || len(snap.Results) != 1 || snap.Results[0].Title != "aliens" {
		t.Fatalf("stale answer leaked into state: %+v", snap)
	}
}

func TestOneShotSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	snap := Search(context.Background(), searcher, "  heat ")
	if snap.Status != StatusReady || snap.Term != "heat" || len(snap.Results) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if idle := Search(context.Background(), searcher, ""); idle.Status != StatusIdle {
		t.Fatalf("expected idle for blank term, got %+v", idle)
	}
}
