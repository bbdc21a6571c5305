package book

import "sync"

// Feed fans change events out to subscribers over typed channels. A slow
// subscriber whose buffer is full misses events rather than blocking the
// matching path.
type Feed struct {
	mu     sync.RWMutex
	subs   map[chan Change]struct{}
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Change]struct{})}
}

// Subscribe registers a buffered subscriber channel and returns it with a
// cancel function. Cancel is idempotent.
func (f *Feed) Subscribe(buf int) (<-chan Change, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan Change, buf)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers the changes to every subscriber in order.
func (f *Feed) Publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for ch := range f.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
				// Buffer full: drop for this subscriber.
			}
		}
	}
}

// Close unregisters and closes all subscriber channels.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
