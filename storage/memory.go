package storage

import (
	"sync"

	"github.com/google/uuid"
)

// Memory is the in-process KeyValue store. One Memory models the storage
// shared by a whole client; each Handle models one tab or component
// holding a reference to it.
type Memory struct {
	data     map[string]string
	watchers map[string]memoryWatcher
	lock     sync.RWMutex
}

type memoryWatcher struct {
	handleID string
	onChange func(key string)
}

// Handle is one consumer's view of a shared Memory. Mutations made through
// a handle notify every watcher registered through a different handle,
// never the mutating handle's own watchers.
type Handle struct {
	id  string
	mem *Memory
}

var _ KeyValue = (*Handle)(nil)

func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]string),
		watchers: make(map[string]memoryWatcher),
	}
}

// Handle returns a new view over the shared store.
func (m *Memory) Handle() *Handle {
	return &Handle{
		id:  uuid.New().String(),
		mem: m,
	}
}

func (h *Handle) Get(key string) (string, bool) {
	h.mem.lock.RLock()
	defer h.mem.lock.RUnlock()

	value, ok := h.mem.data[key]
	return value, ok
}

func (h *Handle) Set(key, value string) {
	h.mem.lock.Lock()
	h.mem.data[key] = value
	h.mem.lock.Unlock()

	h.mem.notify(h.id, key)
}

func (h *Handle) Delete(key string) {
	h.mem.lock.Lock()
	delete(h.mem.data, key)
	h.mem.lock.Unlock()

	h.mem.notify(h.id, key)
}

func (h *Handle) Watch(onChange func(key string)) (cancel func()) {
	watcherID := uuid.New().String()

	h.mem.lock.Lock()
	h.mem.watchers[watcherID] = memoryWatcher{handleID: h.id, onChange: onChange}
	h.mem.lock.Unlock()

	return func() {
		h.mem.lock.Lock()
		delete(h.mem.watchers, watcherID)
		h.mem.lock.Unlock()
	}
}

// notify invokes watchers registered by other handles. Callbacks run
// outside the lock so they can re-read storage.
func (m *Memory) notify(sourceHandleID, key string) {
	m.lock.RLock()
	callbacks := make([]func(key string), 0, len(m.watchers))
	for _, w := range m.watchers {
		if w.handleID != sourceHandleID {
			callbacks = append(callbacks, w.onChange)
		}
	}
	m.lock.RUnlock()

	for _, onChange := range callbacks {
		onChange(key)
	}
}
