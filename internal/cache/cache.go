// Package cache holds the remote player roster received from the multiplayer
// transport. Ghosts are display-only and are never fed to the simulation.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// Ghost is a remote player's last reported pose.
type Ghost struct {
	Pose    core.RemotePose
	Updated time.Time
}

// GhostCache caches remote poses by player ID. Writers are the transport
// reader and the :REMOTE:POSES: handler; the renderer reads snapshots.
type GhostCache struct {
	m      sync.RWMutex
	ttl    time.Duration
	ghosts map[string]Ghost
	self   string
}

// NewGhostCache creates a cache that treats ghosts older than ttl as gone.
// A ttl of zero disables eviction.
func NewGhostCache(ttl time.Duration) *GhostCache {
	return &GhostCache{
		ttl:    ttl,
		ghosts: make(map[string]Ghost),
	}
}

// IgnoreSelf drops poses carrying the local player's ID.
func (c *GhostCache) IgnoreSelf(id string) {
	c.m.Lock()
	defer c.m.Unlock()
	c.self = id
	delete(c.ghosts, id)
}

// Update stores the given poses. A pose older than the one already held for
// the same player is ignored. Returns the number of poses stored.
func (c *GhostCache) Update(poses []core.RemotePose, at time.Time) int {
	c.m.Lock()
	defer c.m.Unlock()
	n := 0
	for _, p := range poses {
		if p.ID == "" || p.ID == c.self {
			continue
		}
		if prev, ok := c.ghosts[p.ID]; ok && p.Timestamp != 0 && p.Timestamp < prev.Pose.Timestamp {
			continue
		}
		c.ghosts[p.ID] = Ghost{Pose: p, Updated: at}
		n++
	}
	return n
}

func (c *GhostCache) Get(id string) (Ghost, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	g, ok := c.ghosts[id]
	return g, ok
}

// Remove drops a player, e.g. on a leave message.
func (c *GhostCache) Remove(id string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.ghosts, id)
}

func (c *GhostCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.ghosts)
}

func (c *GhostCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.ghosts = make(map[string]Ghost)
}

// Evict removes ghosts not updated within the TTL and returns their IDs sorted.
func (c *GhostCache) Evict(now time.Time) []string {
	if c.ttl <= 0 {
		return nil
	}
	c.m.Lock()
	defer c.m.Unlock()
	var gone []string
	for id, g := range c.ghosts {
		if now.Sub(g.Updated) > c.ttl {
			gone = append(gone, id)
			delete(c.ghosts, id)
		}
	}
	sort.Strings(gone)
	return gone
}

// Poses returns the fresh ghosts ordered by player ID.
func (c *GhostCache) Poses(now time.Time) []core.RemotePose {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]core.RemotePose, 0, len(c.ghosts))
	for _, g := range c.ghosts {
		if c.ttl > 0 && now.Sub(g.Updated) > c.ttl {
			continue
		}
		out = append(out, g.Pose)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
