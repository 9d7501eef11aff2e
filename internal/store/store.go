// Package store holds the analysis currently shown to viewers.
package store

import (
	"sync/atomic"

	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
)

// ResultStore is a single slot shared by every request handler. Reads are
// lock-free; concurrent writers race and the last Set wins.
type ResultStore struct {
	current atomic.Pointer[domain.Result]
}

func New() *ResultStore {
	s := &ResultStore{}
	initial := domain.InitialResult()
	s.current.Store(&initial)
	return s
}

func (s *ResultStore) Get() domain.Result {
	return *s.current.Load()
}

func (s *ResultStore) Set(r domain.Result) {
	s.current.Store(&r)
}
