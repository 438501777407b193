package hmap

import "testing"

// collidingHasher maps every key to one bucket, exercising collision chains.
type collidingHasher struct{}

func (collidingHasher) Hash(int) uint32    { return 42 }
func (collidingHasher) Equal(a, b int) bool { return a == b }

func TestMapCollisions(t *testing.T) {
	m := NewMap[string, int](collidingHasher{})

	m.Set(1, "a")
	m.Set(2, "b")
	m.Set(1, "c")

	if got := m.Get(1); got != "c" {
		t.Errorf("Get(1) = %q", got)
	}
	if got, ok := m.GetOk(2); !ok || got != "b" {
		t.Errorf("GetOk(2) = (%q, %v)", got, ok)
	}
	if _, ok := m.GetOk(3); ok {
		t.Error("GetOk(3) found a missing key")
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}

	seen := map[int]string{}
	m.ForEach(func(k int, v string) { seen[k] = v })
	if len(seen) != 2 || seen[1] != "c" || seen[2] != "b" {
		t.Errorf("ForEach visited %v", seen)
	}
}
