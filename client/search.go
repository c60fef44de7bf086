package client

import (
	"context"
	"sync"
	"time"

	"pingpal/backend/internal/models"
)

// SearchFunc performs one user search. Client.SearchUsers can back it.
type SearchFunc func(ctx context.Context, query string) ([]models.PublicProfile, error)

// Searcher debounces as-you-type user search and guarantees that results are
// applied in issue order: every keystroke advances a generation counter, and a
// response is dropped unless it still belongs to the newest generation when it
// arrives. A slow early response can never overwrite a fast later one.
type Searcher struct {
	search  SearchFunc
	delay   time.Duration
	results func(query string, profiles []models.PublicProfile)

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
}

// NewSearcher creates a Searcher that waits delay after the last keystroke
// before hitting the server, then delivers results through the callback.
func NewSearcher(search SearchFunc, delay time.Duration, results func(query string, profiles []models.PublicProfile)) *Searcher {
	return &Searcher{search: search, delay: delay, results: results}
}

// Update feeds the current input value. An empty query cancels any pending
// search and delivers an empty result immediately.
func (s *Searcher) Update(ctx context.Context, query string) {
	s.mu.Lock()

	s.generation++
	gen := s.generation

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if query == "" {
		// Delivered synchronously, inside this generation, so a search issued
		// after the clear always delivers after it and can never be overwritten
		// by it.
		s.mu.Unlock()
		s.results(query, nil)
		return
	}

	s.timer = time.AfterFunc(s.delay, func() {
		s.run(ctx, gen, query)
	})
	s.mu.Unlock()
}

// Flush skips the remaining debounce delay and issues the pending search now.
func (s *Searcher) Flush(ctx context.Context, query string) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.run(ctx, gen, query)
}

func (s *Searcher) run(ctx context.Context, gen uint64, query string) {
	profiles, err := s.search(ctx, query)

	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale || err != nil {
		// Stale responses are discarded no matter what they carry; errors from
		// a current search surface as no update rather than clearing the list.
		return
	}

	s.results(query, profiles)
}
