package cache

import (
	"sync"
	"time"
)

// DisplayEntry is the non-authoritative projection of an event's static
// display fields. Occupancy and capacity are never read from here.
type DisplayEntry struct {
	Title        string
	Description  string
	ImageURL     string
	StartTime    time.Time
	CreatorID    string
	ChannelID    string
	MessageID    string
	MinGearScore *int
}

// DisplayCache is a lazily-populated in-process cache of event display
// metadata keyed by event id. Entries are written on create, refreshed on
// router misses, and deleted on close; there is no TTL.
type DisplayCache struct {
	mu      sync.RWMutex
	entries map[string]DisplayEntry
}

// NewDisplayCache creates an empty display cache
func NewDisplayCache() *DisplayCache {
	return &DisplayCache{entries: make(map[string]DisplayEntry)}
}

// Get returns the cached entry for an event, if any
func (c *DisplayCache) Get(eventID string) (DisplayEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[eventID]
	return entry, ok
}

// Put stores or replaces the entry for an event
func (c *DisplayCache) Put(eventID string, entry DisplayEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[eventID] = entry
}

// SetMessageID updates the rendered-message pointer once the platform
// assigns it
func (c *DisplayCache) SetMessageID(eventID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[eventID]; ok {
		entry.MessageID = messageID
		c.entries[eventID] = entry
	}
}

// Delete drops the entry for an event
func (c *DisplayCache) Delete(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventID)
}
