package bitarray

import "testing"

func TestSetGetClear(t *testing.T) {
	b := New(131)
	for _, i := range []int{0, 1, 63, 64, 127, 130} {
		if b.Get(i) {
			t.Errorf("bit %d set on a fresh array", i)
		}
		b.Set(i)
		if !b.Get(i) {
			t.Errorf("bit %d not set", i)
		}
	}
	if b.Get(2) || b.Get(65) {
		t.Error("neighbouring bits leaked")
	}

	b.Clear(64)
	if b.Get(64) {
		t.Error("bit 64 still set after Clear")
	}
	if !b.Get(63) || !b.Get(127) {
		t.Error("Clear touched other bits")
	}

	b.Reset()
	for _, i := range []int{0, 63, 127, 130} {
		if b.Get(i) {
			t.Errorf("bit %d set after Reset", i)
		}
	}
	if b.Len() != 131 {
		t.Errorf("Len() = %d", b.Len())
	}
}
