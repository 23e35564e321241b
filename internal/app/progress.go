package app

import (
	"sync"

	"subquestion-challenge-service/internal/domain"
)

// ProgressPublisher receives progress events after the transaction that produced them commits.
type ProgressPublisher interface {
	Publish(ev domain.ProgressEvent)
}

// ProgressHub fans progress events out to per-challenge subscribers (the admin live feed).
// A nil *ProgressHub drops every event.
type ProgressHub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan domain.ProgressEvent]struct{}
	buffer      int
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subscribers: make(map[int64]map[chan domain.ProgressEvent]struct{}),
		buffer:      8,
	}
}

// Subscribe returns a channel of events for one challenge.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *ProgressHub) Subscribe(challengeID int64) (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, h.buffer)

	h.mu.Lock()
	subs, ok := h.subscribers[challengeID]
	if !ok {
		subs = make(map[chan domain.ProgressEvent]struct{})
		h.subscribers[challengeID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[challengeID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, challengeID)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of its challenge without blocking.
func (h *ProgressHub) Publish(ev domain.ProgressEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[ev.ChallengeID] {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event to make room
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports how many feeds are attached to a challenge.
func (h *ProgressHub) Subscribers(challengeID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[challengeID])
}
