package workspace

import (
	"container/list"
	"time"

	models "canvasdesk/internal/domain/models/workspace"
)

// CacheEntry is one canvas whose content is resident in memory.
type CacheEntry struct {
	CanvasID       string         `json:"canvas_id"`
	Content        models.Content `json:"-"` // last persisted content
	LastAccessedAt time.Time      `json:"last_accessed_at"`
}

// ContentCache bounds how many canvases besides the current one keep their
// content in memory, evicting the least recently accessed entry first.
// It is not safe for concurrent use; the Workspace guards it with its lock.
type ContentCache struct {
	max   int
	order *list.List // front = most recently accessed
	items map[string]*list.Element
	now   func() time.Time
}

// NewContentCache creates a cache holding at most max entries (min 1).
func NewContentCache(max int) *ContentCache {
	if max < 1 {
		max = 1
	}
	return &ContentCache{
		max:   max,
		order: list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
}

// Put stores content for id and marks it most recently accessed.
func (c *ContentCache) Put(id string, content models.Content) {
	if el, ok := c.items[id]; ok {
		entry := el.Value.(*CacheEntry)
		entry.Content = content.Clone()
		entry.LastAccessedAt = c.now()
		c.order.MoveToFront(el)
		return
	}
	c.items[id] = c.order.PushFront(&CacheEntry{
		CanvasID:       id,
		Content:        content.Clone(),
		LastAccessedAt: c.now(),
	})
}

// Set replaces the stored content without counting as an access.
func (c *ContentCache) Set(id string, content models.Content) bool {
	el, ok := c.items[id]
	if !ok {
		return false
	}
	el.Value.(*CacheEntry).Content = content.Clone()
	return true
}

// Get returns the content for id and marks it most recently accessed.
func (c *ContentCache) Get(id string) (models.Content, bool) {
	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*CacheEntry)
	entry.LastAccessedAt = c.now()
	c.order.MoveToFront(el)
	return entry.Content.Clone(), true
}

// Peek returns the content for id without touching its access time.
func (c *ContentCache) Peek(id string) (models.Content, bool) {
	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*CacheEntry).Content.Clone(), true
}

// Has reports whether id is resident.
func (c *ContentCache) Has(id string) bool {
	_, ok := c.items[id]
	return ok
}

// Remove drops id. It reports whether it was resident.
func (c *ContentCache) Remove(id string) bool {
	el, ok := c.items[id]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, id)
	return true
}

// Evict removes least recently accessed entries until at most max entries
// besides current are resident. current is pinned: it is never evicted and
// does not count toward the bound. It returns the evicted ids.
func (c *ContentCache) Evict(current string) []string {
	over := c.order.Len() - c.max
	if c.Has(current) {
		over--
	}
	var evicted []string
	for el := c.order.Back(); el != nil && over > 0; {
		prev := el.Prev()
		entry := el.Value.(*CacheEntry)
		if entry.CanvasID != current {
			c.order.Remove(el)
			delete(c.items, entry.CanvasID)
			evicted = append(evicted, entry.CanvasID)
			over--
		}
		el = prev
	}
	return evicted
}

// IDs lists resident canvas ids, most recently accessed first.
func (c *ContentCache) IDs() []string {
	ids := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(*CacheEntry).CanvasID)
	}
	return ids
}

// Entries returns copies of the resident entries, most recent first.
func (c *ContentCache) Entries() []CacheEntry {
	out := make([]CacheEntry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*CacheEntry))
	}
	return out
}

// Len returns the number of resident entries.
func (c *ContentCache) Len() int {
	return c.order.Len()
}

// Max returns the configured bound.
func (c *ContentCache) Max() int {
	return c.max
}
