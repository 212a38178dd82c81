package cache

import "testing"

func TestLRUEvicts(t *testing.T) {
	c := NewLRU(2)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be evicted")
	}
	if v, ok := c.Get("c"); !ok || v != "3" {
		t.Fatalf("c missing: %v %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d", c.Len())
	}
}

func TestLRURemove(t *testing.T) {
	c := NewLRU(4)
	c.Put("a", "1")
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be gone")
	}
}
