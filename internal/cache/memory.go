package cache

import "sync"

// MemoryStore keeps encoded entries in a map. It follows the same envelope
// and expiry rules as SQLiteStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key][]byte
	opts    Options
}

// NewMemoryStore creates an empty in-memory cache
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{entries: make(map[Key][]byte), opts: opts}
}

// Get implements Store
func (m *MemoryStore) Get(key Key) (string, bool, error) {
	m.mu.RLock()
	body, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	entry, err := Decode(body)
	if err != nil {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false, nil
	}
	if m.opts.expired(entry.StoredAt) {
		return "", false, nil
	}
	return entry.Text, true, nil
}

// Put implements Store
func (m *MemoryStore) Put(key Key, text string) error {
	body, err := Encode(Entry{Text: text, StoredAt: m.opts.now()})
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok {
		if entry, err := Decode(existing); err == nil && !m.opts.expired(entry.StoredAt) {
			return nil
		}
	}
	m.entries[key] = body
	return nil
}

// PutRaw stores bytes verbatim, bypassing the encoder
func (m *MemoryStore) PutRaw(key Key, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = body
}

// Len implements Store
func (m *MemoryStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Clear implements Store
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key][]byte)
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
