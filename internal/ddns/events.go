package ddns

import (
	"sync"
	"time"
)

// EventType identifies what changed on the agent.
type EventType string

const (
	EventStateChanged   EventType = "ddns_state"
	EventCycleCompleted EventType = "ddns_cycle"
	EventConfigChanged  EventType = "ddns_config"
)

// Cycle describes one finished detect-then-publish run.
type Cycle struct {
	Domain          string        `json:"domain"`
	Address         string        `json:"address,omitempty"`
	PreviousAddress string        `json:"previousAddress,omitempty"`
	Status          Status        `json:"status"`
	Published       bool          `json:"published"`
	Manual          bool          `json:"manual"`
	Err             error         `json:"-"`
	ErrorCode       string        `json:"errorCode,omitempty"`
	Error           string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"duration"`
}

// Event is delivered to subscribers after the agent mutates its state or
// configuration. State is always the snapshot taken right after the change.
type Event struct {
	Type   EventType `json:"type"`
	Time   time.Time `json:"time"`
	State  State     `json:"state"`
	Cycle  *Cycle    `json:"cycle,omitempty"`
	Config *Config   `json:"-"`
}

type subscribers struct {
	mu     sync.RWMutex
	nextID int
	fns    map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) emit(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
