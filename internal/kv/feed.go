package kv

import "sync"

// feedBuffer bounds how many undelivered changes a subscriber may hold.
// Further changes are dropped for that subscriber; listeners reload the whole
// store anyway, so one pending notification is as good as many.
const feedBuffer = 16

type feed struct {
	mu   sync.Mutex
	subs map[<-chan Change]chan Change
}

func newFeed() *feed {
	return &feed{subs: make(map[<-chan Change]chan Change)}
}

func (f *feed) Subscribe() <-chan Change {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Change, feedBuffer)
	f.subs[ch] = ch
	return ch
}

func (f *feed) Unsubscribe(sub <-chan Change) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(ch)
	}
}

func (f *feed) publish(c Change) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub, ch := range f.subs {
		delete(f.subs, sub)
		close(ch)
	}
}
