// Package statestore keeps the current aggregate states in memory. The
// decision engine owns writes; the enrichment resolver reads concurrently.
package statestore

import (
	"sync"

	"github.com/tasklist/engine/internal/domain/label"
	"github.com/tasklist/engine/internal/domain/task"
)

type Store struct {
	mu     sync.RWMutex
	tasks  map[string]task.State
	labels map[string]label.State
}

func New() *Store {
	return &Store{
		tasks:  map[string]task.State{},
		labels: map[string]label.State{},
	}
}

func (s *Store) TaskState(id string) (task.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tasks[id]
	return st, ok
}

func (s *Store) PutTask(st task.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[st.ID] = st
}

// TasksWithLabel returns the ids of tasks currently carrying the label.
func (s *Store) TasksWithLabel(labelID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, st := range s.tasks {
		for _, assigned := range st.LabelIDs {
			if assigned == labelID {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func (s *Store) LabelState(id string) (label.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.labels[id]
	return st, ok
}

func (s *Store) PutLabel(st label.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[st.ID] = st
}
