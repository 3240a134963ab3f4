package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	summaryRequested = "requested"
	summaryLoaded    = "loaded"
	summaryFailed    = "failed"
	summaryStale     = "stale"
	summarySpliced   = "spliced"
	summaryEvicted   = "evicted"
)

// summary counts the tile events of a viewer and periodically logs them.
type summary struct {
	sessionID string
	interval  time.Duration

	counterMutex sync.Mutex
	counter      map[string]int
}

func newSummary(sessionID string, interval time.Duration) *summary {
	return &summary{
		sessionID: sessionID,
		interval:  interval,
		counter:   make(map[string]int),
	}
}

func (s *summary) start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.log()
		}
	}
}

func (s *summary) inc(event string) {
	s.add(event, 1)
}

func (s *summary) add(event string, n int) {
	if n == 0 {
		return
	}

	s.counterMutex.Lock()
	defer s.counterMutex.Unlock()

	s.counter[event] += n
}

func (s *summary) log() {
	s.counterMutex.Lock()
	defer s.counterMutex.Unlock()

	if len(s.counter) == 0 {
		return
	}

	entry := logs.
		WithTag("session_uuid", s.sessionID).
		WithTag("time_interval", s.interval)

	for k, v := range s.counter {
		entry = entry.WithTag(k, v)
		delete(s.counter, k)
	}

	entry.Info("tile summary")
}
