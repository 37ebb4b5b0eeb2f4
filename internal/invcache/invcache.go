package invcache

import (
	"regexp"
	"sync"
	"time"

	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
)

// Entry is one cached inventory fetch for a single vCenter server.
type Entry struct {
	Server    string
	Records   []vcenter.VMRecord
	FetchedAt time.Time
	Count     int
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Key derives the deterministic cache key for a server identifier. Characters
// unsafe for the key space (dots in FQDNs, mostly) are substituted.
func Key(server string) string {
	return "vcenter_" + unsafeKeyChars.ReplaceAllString(server, "_")
}

// InventoryCache stores fetched VM inventories per source server. Entries
// never expire: fetches are expensive and may require out-of-band MFA
// approval, so staleness is resolved only by an explicit refresh.
type InventoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewInventoryCache() *InventoryCache {
	return &InventoryCache{
		entries: make(map[string]*Entry),
	}
}

// Put creates or overwrites the cached inventory for server.
func (c *InventoryCache) Put(server string, records []vcenter.VMRecord) *Entry {
	entry := &Entry{
		Server:    server,
		Records:   records,
		FetchedAt: time.Now().UTC(),
		Count:     len(records),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(server)] = entry

	return entry
}

// Get returns the cached inventory for server, or nil when none is cached.
func (c *InventoryCache) Get(server string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[Key(server)]
}

// Invalidate drops the cached inventory for server.
func (c *InventoryCache) Invalidate(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(server))
}

// Servers returns the identifiers of all servers with a cached inventory.
func (c *InventoryCache) Servers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	servers := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		servers = append(servers, e.Server)
	}
	return servers
}
