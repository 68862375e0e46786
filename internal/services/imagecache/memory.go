package imagecache

import (
	"container/list"

	"github.com/cozy-creator/theme-manager/internal/config"
)

type memEntry struct {
	locator string
	texture Texture
}

// memoryStore holds at most capacity textures. With the insertion policy the
// oldest inserted entry is evicted first regardless of use; the lru policy
// refreshes an entry on every hit.
type memoryStore struct {
	capacity int
	lru      bool
	order    *list.List
	items    map[string]*list.Element
}

func newMemoryStore(capacity int, policy string) *memoryStore {
	if capacity <= 0 {
		capacity = config.DefaultCacheCapacity
	}

	return &memoryStore{
		capacity: capacity,
		lru:      policy == config.EvictionLRU,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (m *memoryStore) get(locator string) (Texture, bool) {
	el, ok := m.items[locator]
	if !ok {
		return nil, false
	}

	if m.lru {
		m.order.MoveToBack(el)
	}

	return el.Value.(*memEntry).texture, true
}

// put stores texture and returns whatever had to be dropped to make room,
// including a replaced texture for the same locator.
func (m *memoryStore) put(locator string, texture Texture) []Texture {
	var dropped []Texture

	if el, ok := m.items[locator]; ok {
		entry := el.Value.(*memEntry)
		if entry.texture != texture {
			dropped = append(dropped, entry.texture)
		}
		entry.texture = texture
		if m.lru {
			m.order.MoveToBack(el)
		}
		return dropped
	}

	m.items[locator] = m.order.PushBack(&memEntry{locator: locator, texture: texture})

	for m.order.Len() > m.capacity {
		front := m.order.Front()
		entry := front.Value.(*memEntry)
		m.order.Remove(front)
		delete(m.items, entry.locator)
		dropped = append(dropped, entry.texture)
	}

	return dropped
}

func (m *memoryStore) remove(locator string) (Texture, bool) {
	el, ok := m.items[locator]
	if !ok {
		return nil, false
	}

	m.order.Remove(el)
	delete(m.items, locator)
	return el.Value.(*memEntry).texture, true
}

func (m *memoryStore) clear() []Texture {
	textures := make([]Texture, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		textures = append(textures, el.Value.(*memEntry).texture)
	}

	m.order.Init()
	m.items = make(map[string]*list.Element)
	return textures
}

func (m *memoryStore) len() int {
	return m.order.Len()
}
