// Package world owns the single mutable state the controller revolves
// around: the uplink array and the system status, guarded by one coarse
// mutex. Every component that touches shared state takes World, not
// singletons, so it can be constructed fresh in tests.
package world

import (
	"sync"

	"github.com/pathsteer/pathsteerd/internal/model"
)

// World is the explicit, borrow-limited owner of shared state. Lock before
// reading or writing Uplinks/Status; holders must never perform blocking I/O
// while holding the lock.
type World struct {
	mu      sync.Mutex
	Uplinks []*model.Uplink
	Status  *model.Status
}

// New builds a World over the given uplinks and status. It does not mark any
// uplink active; callers set IsActive on the uplinks they pass in.
func New(uplinks []*model.Uplink, status *model.Status) *World {
	return &World{Uplinks: uplinks, Status: status}
}

// Lock acquires the world lock. Callers must call Unlock.
func (w *World) Lock() {
	w.mu.Lock()
}

// Unlock releases the world lock.
func (w *World) Unlock() {
	w.mu.Unlock()
}

// ByName returns the uplink with the given canonical name, or nil.
func (w *World) ByName(name string) *model.Uplink {
	for _, u := range w.Uplinks {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// ByID returns the uplink with the given id, or nil.
func (w *World) ByID(id int) *model.Uplink {
	for _, u := range w.Uplinks {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// Active returns the currently active uplink, or nil if none is marked active.
func (w *World) Active() *model.Uplink {
	for _, u := range w.Uplinks {
		if u.IsActive {
			return u
		}
	}
	return nil
}

// NextEnabledAvailable returns the next enabled+available uplink after
// "fromID" in id order, wrapping around, excluding fromID itself. It returns
// nil if no other uplink qualifies.
func (w *World) NextEnabledAvailable(fromID int) *model.Uplink {
	n := len(w.Uplinks)
	if n == 0 {
		return nil
	}
	for i := 1; i <= n; i++ {
		candidate := w.ByID((fromID + i) % n)
		if candidate == nil {
			continue
		}
		if candidate.ID == fromID {
			return nil
		}
		if candidate.Enabled && candidate.Available {
			return candidate
		}
	}
	return nil
}
