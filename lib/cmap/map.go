package cmap

import "sync"

// Map is a typed wrapper around sync.Map.
type Map[K comparable, V any] struct {
	m sync.Map
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	v, exists := m.m.Load(k)
	if !exists {
		var zero V
		return zero, false
	}

	return v.(V), true
}

func (m *Map[K, V]) Set(k K, v V) {
	m.m.Store(k, v)
}

func (m *Map[K, V]) Delete(k K) {
	m.m.Delete(k)
}

// Range calls f for each entry until f returns false.
func (m *Map[K, V]) Range(f func(k K, v V) bool) {
	m.m.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}

// Keys returns all keys in unspecified order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0)
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})

	return keys
}
