package aggregator

// orderedMap is a map that remembers key insertion order.
type orderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func newOrderedMap[K comparable, V any]() *orderedMap[K, V] {
	return &orderedMap[K, V]{values: make(map[K]V)}
}

// getOrInsert returns the value at k, inserting init() first if k is new.
func (m *orderedMap[K, V]) getOrInsert(k K, init func() V) V {
	if v, ok := m.values[k]; ok {
		return v
	}
	v := init()
	m.keys = append(m.keys, k)
	m.values[k] = v
	return v
}

func (m *orderedMap[K, V]) get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

func (m *orderedMap[K, V]) set(k K, v V) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}
