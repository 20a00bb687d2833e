package pipeline

import "sync"

// DefaultSeenSize bounds how many earthquake ids the relay remembers.
const DefaultSeenSize = 5000

// seenSet is a thread-safe, bounded set of earthquake ids. When full, the
// least recently touched id is evicted, so an id that keeps appearing in the
// feed stays remembered.
type seenSet struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*seenEntry
	head       *seenEntry // most recently used
	tail       *seenEntry // least recently used
}

type seenEntry struct {
	id   string
	prev *seenEntry
	next *seenEntry
}

func newSeenSet(maxEntries int) *seenSet {
	if maxEntries <= 0 {
		maxEntries = DefaultSeenSize
	}
	return &seenSet{
		maxEntries: maxEntries,
		entries:    make(map[string]*seenEntry),
	}
}

// contains reports whether id was added and not yet evicted. A hit counts as
// a use.
func (s *seenSet) contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.moveToFront(e)
	return true
}

// add records id. Callers check contains first, which already refreshes a
// known id, so re-adding one is a no-op.
func (s *seenSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return
	}

	e := &seenEntry{id: id}
	s.entries[id] = e
	s.addToFront(e)

	if len(s.entries) > s.maxEntries {
		s.evictTail()
	}
}

func (s *seenSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *seenSet) moveToFront(e *seenEntry) {
	if e == s.head {
		return
	}
	s.unlink(e)
	s.addToFront(e)
}

func (s *seenSet) addToFront(e *seenEntry) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *seenSet) unlink(e *seenEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
}

func (s *seenSet) evictTail() {
	if s.tail == nil {
		return
	}
	delete(s.entries, s.tail.id)
	s.unlink(s.tail)
}
