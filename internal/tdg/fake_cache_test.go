package tdg

import (
	"context"
	"time"

	"github.com/taipm/mission-decomposer/internal/cache"
	"github.com/taipm/mission-decomposer/internal/model"
)

// fakeCache is a minimal in-test PathCache stand-in that counts Get/Set
// calls, used to assert Paths consults the cache before recomputing.
type fakeCache struct {
	entry []model.DecompositionPath
	has   bool
	gets  int
	sets  int
}

func newFakeCache() *fakeCache { return &fakeCache{} }

func (c *fakeCache) Get(_ context.Context, _ string) ([]model.DecompositionPath, bool, error) {
	c.gets++
	return c.entry, c.has, nil
}

func (c *fakeCache) Set(_ context.Context, _ string, paths []model.DecompositionPath, _ time.Duration) error {
	c.sets++
	c.entry = paths
	c.has = true
	return nil
}

func (c *fakeCache) Clear(_ context.Context) error {
	c.has = false
	c.entry = nil
	return nil
}

func (c *fakeCache) Stats() cache.Stats { return cache.Stats{} }
