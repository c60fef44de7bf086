package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"pingpal/backend/internal/models"
)

type resultLog struct {
	mu      sync.Mutex
	queries []string
	last    []models.PublicProfile
}

func (l *resultLog) record(query string, profiles []models.PublicProfile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, query)
	l.last = profiles
}

func (l *resultLog) snapshot() ([]string, []models.PublicProfile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.queries...), l.last
}

func TestSearcherDebouncesKeystrokes(t *testing.T) {
	var mu sync.Mutex
	var issued []string
	search := func(_ context.Context, query string) ([]models.PublicProfile, error) {
		mu.Lock()
		issued = append(issued, query)
		mu.Unlock()
		return []models.PublicProfile{{ID: 1, FullName: query}}, nil
	}

	log := &resultLog{}
	s := NewSearcher(search, 30*time.Millisecond, log.record)

	ctx := context.Background()
	s.Update(ctx, "a")
	s.Update(ctx, "al")
	s.Update(ctx, "ali")

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(issued) != 1 || issued[0] != "ali" {
		t.Fatalf("only the final keystroke must hit the server, got %v", issued)
	}

	queries, last := log.snapshot()
	if len(queries) != 1 || queries[0] != "ali" {
		t.Fatalf("expected one delivery for %q, got %v", "ali", queries)
	}
	if len(last) != 1 || last[0].FullName != "ali" {
		t.Fatalf("wrong results delivered: %v", last)
	}
}

func TestSearcherDiscardsStaleResponses(t *testing.T) {
	release := make(chan struct{})
	search := func(_ context.Context, query string) ([]models.PublicProfile, error) {
		if query == "slow" {
			<-release
		}
		return []models.PublicProfile{{ID: 1, FullName: query}}, nil
	}

	log := &resultLog{}
	s := NewSearcher(search, 5*time.Millisecond, log.record)

	ctx := context.Background()
	s.Update(ctx, "slow")
	// Let the debounce fire so the slow search is in flight and stuck.
	time.Sleep(40 * time.Millisecond)

	// A newer query completes while the old one is still stuck.
	s.Update(ctx, "fast")
	time.Sleep(40 * time.Millisecond)

	// Let the stale search finish; its result must be dropped.
	close(release)
	time.Sleep(40 * time.Millisecond)

	queries, last := log.snapshot()
	if len(queries) != 1 || queries[0] != "fast" {
		t.Fatalf("stale response must be discarded, deliveries: %v", queries)
	}
	if last[0].FullName != "fast" {
		t.Fatalf("latest result must win, got %v", last)
	}
}

func TestSearcherClearDoesNotOverwriteNewerSearch(t *testing.T) {
	search := func(_ context.Context, query string) ([]models.PublicProfile, error) {
		return []models.PublicProfile{{ID: 1, FullName: query}}, nil
	}

	log := &resultLog{}
	s := NewSearcher(search, time.Hour, log.record)

	ctx := context.Background()
	// Clear the input, then search again: the clear must never land after the
	// newer search's results.
	s.Update(ctx, "")
	s.Flush(ctx, "x")

	// Nothing may be delivered out of order after both calls return.
	time.Sleep(50 * time.Millisecond)

	queries, last := log.snapshot()
	if len(queries) != 2 || queries[0] != "" || queries[1] != "x" {
		t.Fatalf("expected the clear before the search, deliveries: %v", queries)
	}
	if len(last) != 1 || last[0].FullName != "x" {
		t.Fatalf("newer results must survive the clear, got %v", last)
	}
}

func TestSearcherFlushSkipsDebounce(t *testing.T) {
	search := func(_ context.Context, query string) ([]models.PublicProfile, error) {
		return []models.PublicProfile{{ID: 1, FullName: query}}, nil
	}

	log := &resultLog{}
	s := NewSearcher(search, time.Hour, log.record) // debounce would never fire on its own

	s.Flush(context.Background(), "now")

	queries, _ := log.snapshot()
	if len(queries) != 1 || queries[0] != "now" {
		t.Fatalf("Flush must search immediately, got %v", queries)
	}
}

func TestSearcherEmptyQueryClearsImmediately(t *testing.T) {
	called := make(chan string, 1)
	search := func(_ context.Context, query string) ([]models.PublicProfile, error) {
		called <- query
		return nil, nil
	}

	log := &resultLog{}
	s := NewSearcher(search, 20*time.Millisecond, log.record)

	ctx := context.Background()
	s.Update(ctx, "abc")
	s.Update(ctx, "") // cancels the pending search

	time.Sleep(80 * time.Millisecond)

	select {
	case q := <-called:
		t.Fatalf("empty query must cancel the pending search, but %q was issued", q)
	default:
	}

	queries, last := log.snapshot()
	if len(queries) != 1 || queries[0] != "" {
		t.Fatalf("empty query must deliver an immediate clear, got %v", queries)
	}
	if last != nil {
		t.Fatalf("clear must deliver nil results, got %v", last)
	}
}
