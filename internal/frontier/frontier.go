package frontier

import "sync"

// Set is the frontier of one crawl level: the URLs to visit at that depth,
// each at most once, in the order they were first added.
type Set struct {
	level int
	urls  []string
	seen  map[string]bool
	mu    sync.Mutex
}

func New(level int, urls ...string) *Set {
	s := &Set{
		level: level,
		seen:  make(map[string]bool),
	}
	for _, url := range urls {
		s.Add(url)
	}
	return s
}

// Add queues url unless it is already present and reports whether it was added.
func (s *Set) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[url] {
		return false
	}
	s.seen[url] = true
	s.urls = append(s.urls, url)
	return true
}

func (s *Set) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[url]
}

// URLs returns a copy of the queued URLs in insertion order.
func (s *Set) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

func (s *Set) Level() int { return s.level }

// Next returns an empty set for the following level.
func (s *Set) Next() *Set {
	return New(s.level + 1)
}
