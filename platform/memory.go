package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type subscription struct {
	pattern string
	handler StateHandler
}

// MemoryStore keeps the object tree in memory. Subscribers are notified
// synchronously after every SetState.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	states  map[string]State
	subs    []subscription
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]Object),
		states:  make(map[string]State),
		now:     time.Now,
	}
}

func (s *MemoryStore) SetObjectNotExists(_ context.Context, obj Object) (bool, error) {
	if obj.Id == "" {
		return false, fmt.Errorf("object without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[obj.Id]; ok {
		return false, nil
	}
	if obj.Type == "" {
		obj.Type = ObjectTypeState
	}
	s.objects[obj.Id] = obj
	return true, nil
}

func (s *MemoryStore) GetObject(_ context.Context, id string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok {
		return Object{}, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	return obj, nil
}

func (s *MemoryStore) SetState(_ context.Context, id string, state State) error {
	if state.Ts.IsZero() {
		state.Ts = s.now()
	}
	s.mu.Lock()
	s.states[id] = state
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if Match(sub.pattern, id) {
			st := state
			sub.handler(id, &st)
		}
	}
	return nil
}

func (s *MemoryStore) GetState(_ context.Context, id string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return State{}, fmt.Errorf("state %s: %w", id, ErrNotFound)
	}
	return st, nil
}

func (s *MemoryStore) SubscribeStates(pattern string, handler StateHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", pattern)
	}
	s.mu.Lock()
	s.subs = append(s.subs, subscription{pattern: pattern, handler: handler})
	s.mu.Unlock()
	return nil
}

// Objects returns all objects ordered by id.
func (s *MemoryStore) Objects() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := maps.Keys(s.objects)
	slices.Sort(ids)
	out := make([]Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.objects[id])
	}
	return out
}
