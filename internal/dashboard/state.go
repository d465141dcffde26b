package dashboard

import (
	"sync"

	"github.com/teemow/mailbuddy/internal/api"
)

// Fallback values applied when classification fails.
const (
	FailedSummary  = "Analysis failed."
	FailedCategory = api.CategoryUncategorized
)

// Merge combines a fresh fetch with the current state. The fresh list decides
// which messages exist and in which order. For a message that is already known,
// a non-empty summary or category is kept, and so is the fraud flag once the
// message has been classified. Duplicate identifiers in fresh keep their first
// occurrence.
func Merge(existing, fresh []api.Message) []api.Message {
	known := make(map[string]api.Message, len(existing))
	for _, m := range existing {
		known[m.ID] = m
	}

	seen := make(map[string]struct{}, len(fresh))
	merged := make([]api.Message, 0, len(fresh))
	for _, m := range fresh {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		if old, ok := known[m.ID]; ok {
			if old.Summary != "" {
				m.Summary = old.Summary
			}
			if old.Category != "" {
				m.Category = old.Category
			}
			if old.Classified() {
				m.IsFake = old.IsFake
			}
		}
		merged = append(merged, m)
	}
	return merged
}

// State is the controller's ordered message list.
type State struct {
	mu       sync.RWMutex
	messages []api.Message
	index    map[string]int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{index: make(map[string]int)}
}

// Merge merges a fresh fetch into the state.
func (s *State) Merge(fresh []api.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = Merge(s.messages, fresh)
	s.index = make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		s.index[m.ID] = i
	}
}

// Get returns the message with the given identifier.
func (s *State) Get(id string) (api.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return api.Message{}, false
	}
	return s.messages[i], true
}

// Apply writes a classification result into the message. It reports false if
// the message is no longer present.
func (s *State) Apply(id string, c api.Classification) bool {
	return s.update(id, func(m *api.Message) {
		m.Category = c.Category
		m.Summary = c.Summary
		m.IsFake = c.IsFake
	})
}

// Fail marks the message as not analyzable.
func (s *State) Fail(id string) bool {
	return s.update(id, func(m *api.Message) {
		m.Summary = FailedSummary
		m.Category = FailedCategory
	})
}

func (s *State) update(id string, fn func(*api.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	fn(&s.messages[i])
	return true
}

// Snapshot returns a copy of the message list.
func (s *State) Snapshot() []api.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ProcessedSet records the identifiers that are queued or have been
// classified for good.
type ProcessedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[string]struct{})}
}

// Add marks id and reports whether it was not marked before.
func (p *ProcessedSet) Add(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.ids[id]; ok {
		return false
	}
	p.ids[id] = struct{}{}
	return true
}

// Remove un-marks id so the next fetch queues it again.
func (p *ProcessedSet) Remove(id string) {
	p.mu.Lock()
	delete(p.ids, id)
	p.mu.Unlock()
}

// Has reports whether id is marked.
func (p *ProcessedSet) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[id]
	return ok
}

// Len returns the number of marked identifiers.
func (p *ProcessedSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}
