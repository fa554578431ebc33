package aggregator

// Buckets maps bucket keys to values in first-seen order.
type Buckets struct {
	m *orderedMap[string, float64]
}

func newBuckets() *Buckets {
	return &Buckets{m: newOrderedMap[string, float64]()}
}

// Add adds v to the bucket at key.
func (b *Buckets) Add(key string, v float64) {
	cur, _ := b.m.get(key)
	b.m.set(key, cur+v)
}

// Get returns the value at key, or 0 if the bucket is absent.
func (b *Buckets) Get(key string) float64 {
	if b == nil || b.m == nil {
		return 0
	}
	v, _ := b.m.get(key)
	return v
}

// Keys returns the bucket keys in first-seen order.
func (b *Buckets) Keys() []string {
	if b == nil || b.m == nil {
		return nil
	}
	return append([]string(nil), b.m.keys...)
}

// Counter is an ungrouped total plus per-group buckets.
type Counter struct {
	// Total holds the ungrouped counts.
	Total *Buckets

	groups *orderedMap[string, *Buckets]
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{
		Total:  newBuckets(),
		groups: newOrderedMap[string, *Buckets](),
	}
}

// Group returns the buckets of group id, creating them if needed.
func (c *Counter) Group(id string) *Buckets {
	return c.groups.getOrInsert(id, newBuckets)
}

// Lookup returns the buckets of group id without creating them.
func (c *Counter) Lookup(id string) (*Buckets, bool) {
	return c.groups.get(id)
}

// Groups returns the group ids in first-seen order.
func (c *Counter) Groups() []string {
	return append([]string(nil), c.groups.keys...)
}
