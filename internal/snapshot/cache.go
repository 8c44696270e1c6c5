package snapshot

import (
	"errors"
	"sync/atomic"

	"dockpulse/internal/model"
)

var ErrNotYetAvailable = errors.New("snapshot not yet available")

// Cache holds the most recent CombinedSnapshot. Readers never block the writer
// and always see either the previous or the next snapshot, never a mix.
type Cache struct {
	latest atomic.Pointer[model.CombinedSnapshot]
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Get() (*model.CombinedSnapshot, error) {
	snap := c.latest.Load()
	if snap == nil {
		return nil, ErrNotYetAvailable
	}
	return snap, nil
}

// Set installs snap as the latest snapshot. Callers must not mutate snap afterwards.
func (c *Cache) Set(snap *model.CombinedSnapshot) {
	if snap == nil {
		return
	}
	c.latest.Store(snap)
}
