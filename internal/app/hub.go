package app

import (
	"sync"

	"cosmotablas-service/internal/domain"
)

// BoardHub fans out table leaderboard snapshots to live subscribers.
type BoardHub struct {
	mu          sync.Mutex
	subscribers map[int]map[chan domain.TableBoard]struct{}
}

func NewBoardHub() *BoardHub {
	return &BoardHub{subscribers: make(map[int]map[chan domain.TableBoard]struct{})}
}

// Subscribe registers a listener for one table and primes it with initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *BoardHub) Subscribe(tableNumber int, initial domain.TableBoard) (<-chan domain.TableBoard, func()) {
	ch := make(chan domain.TableBoard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[tableNumber]
	if !ok {
		subs = make(map[chan domain.TableBoard]struct{})
		h.subscribers[tableNumber] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[tableNumber]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, tableNumber)
		}
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone listens to tableNumber.
func (h *BoardHub) HasSubscribers(tableNumber int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[tableNumber]) > 0
}

// Publish delivers board to every subscriber of its table without blocking.
func (h *BoardHub) Publish(board domain.TableBoard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[board.TableNumber] {
		select {
		case ch <- board:
		default:
			// Slow reader: drop its oldest pending board to make room.
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
