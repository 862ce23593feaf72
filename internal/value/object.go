package value

// Object is an ordered mapping from string key to Value. Keys are unique;
// insertion order is preserved for YAML round-trip stability but carries
// no semantic meaning elsewhere (spec.md section 3).
type Object struct {
	keys []string
	idx  map[string]int
	vals []Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{idx: make(map[string]int)}
}

// Set inserts or replaces the value at key, preserving first-insertion
// position on replace.
func (o *Object) Set(key string, v Value) {
	if i, ok := o.idx[key]; ok {
		o.vals[i] = v
		return
	}
	o.idx[key] = len(o.keys)
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, v)
}

// Get looks up key, returning (value, true) if present.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	i, ok := o.idx[key]
	if !ok {
		return Value{}, false
	}
	return o.vals[i], true
}

// Keys returns keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Len reports the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// ObjectEqual does a deep, order-insensitive comparison.
func ObjectEqual(a, b *Object) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// Find traverses dotted-key segments through nested Objects, the shared
// primitive behind Document.Find and Nested expression evaluation.
func Find(v Value, dottedKey string) (Value, bool) {
	cur := v
	for _, seg := range splitDotted(dottedKey) {
		obj, ok := cur.Object()
		if !ok {
			return Value{}, false
		}
		next, ok := obj.Get(seg)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

func splitDotted(key string) []string {
	if key == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			segs = append(segs, key[start:i])
			start = i + 1
		}
	}
	segs = append(segs, key[start:])
	return segs
}
