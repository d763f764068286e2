// Package search turns raw search-box input into multi-search results. Input
// is debounced; only the answer to the latest committed term is kept.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cinescope/models"
)

const DefaultDebounce = 500 * time.Millisecond

const (
	msgPrompt = "Enter a search term to get started."
	msgFailed = "Failed to fetch data"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// Searcher is satisfied by the metadata service.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (*models.PagedResults, error)
}

type Snapshot struct {
	Input   string                `json:"input"`
	Term    string                `json:"term"`
	Status  Status                `json:"status"`
	Results []models.MediaSummary `json:"results"`
	Error   string                `json:"error,omitempty"`
	Pending bool                  `json:"pending"` // input typed but not yet committed
}

// Message is the neutral text shown in place of results, if any.
func (s Snapshot) Message() string {
	switch s.Status {
	case StatusIdle:
		return msgPrompt
	case StatusError:
		return s.Error
	case StatusReady:
		if len(s.Results) == 0 {
			return fmt.Sprintf("No results found for %q.", s.Term)
		}
	}
	return ""
}

// Search runs a single lookup without debouncing.
func Search(ctx context.Context, searcher Searcher, term string) Snapshot {
	term = strings.TrimSpace(term)
	snap := Snapshot{Input: term, Term: term, Status: StatusIdle}
	if term == "" {
		return snap
	}
	res, err := searcher.Search(ctx, term, 1)
	if err != nil {
		log.Printf("[search] %q failed: %v", term, err)
		snap.Status = StatusError
		snap.Error = errorMessage(err)
		return snap
	}
	snap.Status = StatusReady
	snap.Results = []models.MediaSummary{}
	if res != nil && res.Results != nil {
		snap.Results = res.Results
	}
	return snap
}

// Session debounces input and fetches the committed term.
type Session struct {
	searcher Searcher
	debounce time.Duration

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	input    string
	term     string
	gen      uint64 // bumps on every Input call
	timer    *time.Timer
	pending  bool
	seq      uint64
	inFlight uint64
	cancel   context.CancelFunc
	status   Status
	results  []models.MediaSummary
	err      string
	closed   bool
	changed  chan struct{}
}

func NewSession(searcher Searcher, debounce time.Duration) *Session {
	if debounce < 0 {
		debounce = 0
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		searcher: searcher,
		debounce: debounce,
		ctx:      ctx,
		stop:     stop,
		status:   StatusIdle,
		changed:  make(chan struct{}),
	}
}

// Input records the raw box contents. The term is committed once no further
// input arrives within the debounce window.
func (s *Session) Input(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.input = raw
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = true
	s.timer = time.AfterFunc(s.debounce, func() { s.commit(gen) })
	s.notifyLocked()
}

func (s *Session) commit(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.pending = false
	s.term = strings.TrimSpace(s.input)

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	if s.term == "" {
		s.inFlight = 0
		s.status = StatusIdle
		s.results = nil
		s.err = ""
		s.notifyLocked()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.inFlight = s.seq
	s.status = StatusLoading
	s.err = ""
	go s.fetch(ctx, s.seq, s.term)
	s.notifyLocked()
}

func (s *Session) fetch(ctx context.Context, seq uint64, term string) {
	res, err := s.searcher.Search(ctx, term, 1)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.inFlight {
		return
	}
	s.inFlight = 0
	if err != nil {
		log.Printf("[search] %q failed: %v", term, err)
		s.status = StatusError
		s.results = nil
		s.err = errorMessage(err)
	} else {
		s.status = StatusReady
		s.results = []models.MediaSummary{}
		if res != nil && res.Results != nil {
			s.results = res.Results
		}
	}
	s.notifyLocked()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Settle waits until the latest input is committed and its fetch resolved.
func (s *Session) Settle(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.closed || (!s.pending && s.inFlight == 0) {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case <-changed:
		}
	}
}

// Close stops the debounce timer and cancels any pending fetch.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = false
	s.inFlight = 0
	s.notifyLocked()
	s.mu.Unlock()
	s.stop()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Input:   s.input,
		Term:    s.term,
		Status:  s.status,
		Results: cloneResults(s.results),
		Error:   s.err,
		Pending: s.pending,
	}
}

func cloneResults(in []models.MediaSummary) []models.MediaSummary {
	if in == nil {
		return nil
	}
	return append(make([]models.MediaSummary, 0, len(in)), in...)
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func errorMessage(err error) string {
	var remote interface{ StatusMessage() string }
	if errors.As(err, &remote) {
		if msg := strings.TrimSpace(remote.StatusMessage()); msg != "" {
			return msg
		}
	}
	return msgFailed
}
