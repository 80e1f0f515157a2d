package speech

import (
	"context"
	"sync"
)

// voiceWatchers fans voice list updates out to WatchVoices subscribers.
// Each subscriber only ever holds the latest list.
type voiceWatchers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan []Voice
}

func (w *voiceWatchers) add(ctx context.Context) <-chan []Voice {
	ch := make(chan []Voice, 1)
	w.mu.Lock()
	if w.subs == nil {
		w.subs = make(map[int]chan []Voice)
	}
	id := w.next
	w.next++
	w.subs[id] = ch
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		delete(w.subs, id)
		close(ch)
		w.mu.Unlock()
	}()
	return ch
}

func (w *voiceWatchers) publish(voices []Voice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		list := append([]Voice(nil), voices...)
		select {
		case ch <- list:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- list:
			default:
			}
		}
	}
}

func (w *voiceWatchers) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

func sameVoices(a, b []Voice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
