package app

import (
	"sync"
	"time"

	"butterfly-quiz-service/internal/domain"
)

// ScoreFeed broadcasts leaderboard snapshots per user so presentation layers
// can observe score changes instead of polling.
type ScoreFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
	now  func() time.Time
}

func NewScoreFeed() *ScoreFeed {
	return &ScoreFeed{
		subs: make(map[string]map[chan domain.Leaderboard]struct{}),
		now:  time.Now,
	}
}

// NewScoreFeedWithClock is test-only for deterministic timestamps.
func NewScoreFeedWithClock(now func() time.Time) *ScoreFeed {
	feed := NewScoreFeed()
	feed.now = now
	return feed
}

// Subscribe returns a channel receiving leaderboard updates for the user.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ScoreFeed) Subscribe(username string) (<-chan domain.Leaderboard, func()) {
	key := domain.CanonicalUsername(username)
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	if f.subs[key] == nil {
		f.subs[key] = make(map[chan domain.Leaderboard]struct{})
	}
	f.subs[key][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[key]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, key)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans a fresh snapshot for u out to the user's subscribers.
// Slow consumers lose the stale update rather than blocking the publisher.
func (f *ScoreFeed) Publish(u domain.User) {
	lb := domain.NewLeaderboard(u, f.now())

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[domain.CanonicalUsername(u.Username)] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
