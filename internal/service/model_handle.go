package service

import (
	"sync/atomic"

	"github.com/vrash12/marcy/internal/forest"
)

// ModelHandle owns the served model. Readers see either the previous or
// the next model, never a partially built one.
type ModelHandle struct {
	current atomic.Pointer[forest.Model]
}

// Current returns the served model, or nil before the first load.
func (h *ModelHandle) Current() *forest.Model {
	return h.current.Load()
}

// Swap installs m and returns the model it replaced.
func (h *ModelHandle) Swap(m *forest.Model) *forest.Model {
	return h.current.Swap(m)
}
