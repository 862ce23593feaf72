package registry

import "time"

// MemoryValue is an in-memory Value test double.
type MemoryValue struct {
	ValueName string
	Str       string
	U32       uint32
	U64       uint64
	Bin       []byte
	HasStr    bool
	HasU32    bool
	HasU64    bool
	HasBin    bool
}

func (v *MemoryValue) Name() string { return v.ValueName }

func (v *MemoryValue) AsString() (string, bool) { return v.Str, v.HasStr }

func (v *MemoryValue) AsU32() (uint32, bool) { return v.U32, v.HasU32 }

func (v *MemoryValue) AsU64() (uint64, bool) { return v.U64, v.HasU64 }

func (v *MemoryValue) AsBinary() ([]byte, bool) { return v.Bin, v.HasBin }

// MemoryKey is an in-memory Key test double used by shimcache/srum tests
// to exercise registry-dependent logic without a real hive parser.
type MemoryKey struct {
	KeyName  string
	Modified time.Time
	Subkeys  map[string]*MemoryKey
	Values   map[string]*MemoryValue
	order    []string
}

func NewMemoryKey(name string, modified time.Time) *MemoryKey {
	return &MemoryKey{
		KeyName:  name,
		Modified: modified,
		Subkeys:  map[string]*MemoryKey{},
		Values:   map[string]*MemoryValue{},
	}
}

func (k *MemoryKey) AddSubkey(child *MemoryKey) {
	k.Subkeys[child.KeyName] = child
	k.order = append(k.order, child.KeyName)
}

func (k *MemoryKey) AddValue(v *MemoryValue) {
	k.Values[v.ValueName] = v
}

func (k *MemoryKey) Name() string { return k.KeyName }

func (k *MemoryKey) SubkeyNames() []string {
	return append([]string{}, k.order...)
}

func (k *MemoryKey) Subkey(name string) (Key, bool) {
	sk, ok := k.Subkeys[name]
	if !ok {
		return nil, false
	}
	return sk, true
}

func (k *MemoryKey) LastModified() time.Time { return k.Modified }

func (k *MemoryKey) GetValue(name string) (Value, bool) {
	v, ok := k.Values[name]
	if !ok {
		return nil, false
	}
	return v, true
}

func (k *MemoryKey) ValueNames() []string {
	names := make([]string, 0, len(k.Values))
	for _, n := range k.order {
		if _, ok := k.Values[n]; ok {
			names = append(names, n)
		}
	}
	for n := range k.Values {
		found := false
		for _, existing := range names {
			if existing == n {
				found = true
				break
			}
		}
		if !found {
			names = append(names, n)
		}
	}
	return names
}

// MemoryHive is an in-memory Hive test double.
type MemoryHive struct {
	Root *MemoryKey
}

func NewMemoryHive(root *MemoryKey) *MemoryHive {
	return &MemoryHive{Root: root}
}

func (h *MemoryHive) GetKey(path string) (Key, bool) {
	if path == "" || path == "\\" {
		return h.Root, true
	}
	cur := h.Root
	for _, part := range splitBackslash(path) {
		if part == "" {
			continue
		}
		next, ok := cur.Subkeys[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (h *MemoryHive) Close() error { return nil }

func splitBackslash(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
