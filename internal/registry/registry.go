// Package registry provides read-through cached access to the worker pool.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/pkg/models"
)

// Lister is the source of truth for registered agents.
type Lister interface {
	// ListAgents returns the current agent pool.
	ListAgents(ctx context.Context) ([]models.AgentInfo, error)
}

// Cache is a read-through snapshot cache over a Lister. A refresh failure
// is treated as a temporarily empty pool: Snapshot returns no agents and
// the failure, and the next call past the TTL tries again.
type Cache struct {
	lister Lister
	ttl    time.Duration

	mu        sync.Mutex
	agents    []models.AgentInfo
	fetchedAt time.Time
	lastErr   error
}

// NewCache creates a Cache over the given lister. A non-positive TTL
// disables caching and hits the lister on every call.
func NewCache(lister Lister, ttl time.Duration) *Cache {
	return &Cache{lister: lister, ttl: ttl}
}

// Snapshot returns the cached agent pool, refreshing it when stale. On
// refresh failure it returns an empty pool alongside the error; callers
// treat that as "no agents right now", not a fatal condition.
func (c *Cache) Snapshot(ctx context.Context) ([]models.AgentInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl {
		return cloneAgents(c.agents), c.lastErr
	}

	agents, err := c.lister.ListAgents(ctx)
	c.fetchedAt = time.Now()
	if err != nil {
		c.agents = nil
		c.lastErr = err
		return nil, err
	}

	c.agents = agents
	c.lastErr = nil
	return cloneAgents(agents), nil
}

// Invalidate forces the next Snapshot call to refresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

func cloneAgents(agents []models.AgentInfo) []models.AgentInfo {
	if agents == nil {
		return nil
	}
	out := make([]models.AgentInfo, len(agents))
	copy(out, agents)
	return out
}

// StaticLister serves a fixed agent pool declared in configuration.
// CLI runs use it so a single process can exercise the full dispatch path
// without a live registry.
type StaticLister struct {
	agents []models.AgentInfo
}

// NewStaticLister builds a StaticLister from config-declared agents.
func NewStaticLister(static []config.StaticAgent) *StaticLister {
	agents := make([]models.AgentInfo, 0, len(static))
	for _, s := range static {
		capacity := s.Capacity
		if capacity <= 0 {
			capacity = 1
		}
		agents = append(agents, models.AgentInfo{
			ID:       s.ID,
			Tags:     s.Tags,
			Capacity: capacity,
		})
	}
	return &StaticLister{agents: agents}
}

// ListAgents returns the static pool.
func (s *StaticLister) ListAgents(ctx context.Context) ([]models.AgentInfo, error) {
	return cloneAgents(s.agents), nil
}

var _ Lister = (*StaticLister)(nil)
