package auth

import "sync"

// Event is pushed to subscribers once per [Store.Replace] or [Store.Clear].
type Event struct {
	Seq        uint64
	Credential Credential
	Cleared    bool
}

// Store holds the current credential. Reads are safe from any goroutine; writes swap the whole value and
// notify subscribers under the same lock, so event order always matches write order.
type Store struct {
	mu      sync.RWMutex
	current Credential
	present bool
	seq     uint64
	subs    map[uint64]*subscriber
	nextSub uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[uint64]*subscriber)}
}

// Current returns the credential and whether one is present.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.present
}

// Replace stores c and emits exactly one event.
func (s *Store) Replace(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = c
	s.present = true
	s.publish(Event{Credential: c})
}

// Clear discards the credential and emits one event with Cleared set.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Credential{}
	s.present = false
	s.publish(Event{Cleared: true})
}

// publish must be called with mu held.
func (s *Store) publish(ev Event) {
	s.seq++
	ev.Seq = s.seq
	for _, sub := range s.subs {
		sub.push(ev)
	}
}

// Subscribe returns a channel receiving every event written after the call, and a cancel func that stops
// delivery and closes the channel. Slow readers never block writers and never lose events.
func (s *Store) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}
	return sub.out, cancel
}

// subscriber buffers events in an unbounded queue drained by its own goroutine.
type subscriber struct {
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
	out   chan Event
	done  chan struct{}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
