package syncq

import (
	"sync"
)

// Persistence is the durable key-value surface the queue serializes itself to.
// Load returns nil data and no error for a missing key.
type Persistence interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// MemoryPersistence keeps values in memory. It is safe for concurrent use.
type MemoryPersistence struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{data: map[string][]byte{}}
}

func (m *MemoryPersistence) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryPersistence) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}
