package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is a process-local Cache. It keeps the encoded bytes rather
// than the struct so it behaves like Redis towards callers.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (ms *MemoryStore) SetRatesEnvelope(envelope *RatesEnvelope) error {
	if envelope == nil {
		return ErrNilEnvelope
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal rates envelope: %w", err)
	}
	ms.mu.Lock()
	ms.data[RatesEnvelopeKey] = data
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) GetRatesEnvelope() (*RatesEnvelope, error) {
	ms.mu.Lock()
	data, ok := ms.data[RatesEnvelopeKey]
	ms.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeEnvelope(data)
}

// SetRaw stores bytes under key as-is.
func (ms *MemoryStore) SetRaw(key string, data []byte) {
	ms.mu.Lock()
	ms.data[key] = data
	ms.mu.Unlock()
}

func (ms *MemoryStore) Close() error {
	return nil
}
