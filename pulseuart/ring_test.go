package pulseuart

import "testing"

func TestRing_FIFO(t *testing.T) {
	r := newRing(4)
	for _, b := range []byte("abc") {
		if r.put(b) {
			t.Fatalf("unexpected drop putting %q", b)
		}
	}
	if r.len() != 3 {
		t.Fatalf("len=%d; want 3", r.len())
	}
	buf := make([]byte, 8)
	if n := r.readInto(buf); n != 3 || string(buf[:n]) != "abc" {
		t.Fatalf("got %q; want \"abc\"", buf[:n])
	}
	if r.len() != 0 {
		t.Fatalf("expected empty after drain, len=%d", r.len())
	}
}

func TestRing_DropsOldest(t *testing.T) {
	r := newRing(3)
	drops := 0
	for _, b := range []byte("abcde") {
		if r.put(b) {
			drops++
		}
	}
	if drops != 2 {
		t.Fatalf("drops=%d; want 2", drops)
	}
	buf := make([]byte, 8)
	if n := r.readInto(buf); string(buf[:n]) != "cde" {
		t.Fatalf("got %q; want \"cde\"", buf[:n])
	}
}

func TestRing_WrapAndClear(t *testing.T) {
	r := newRing(2)
	buf := make([]byte, 1)
	for i := 0; i < 10; i++ {
		r.put(byte(i))
		if n := r.readInto(buf); n != 1 || buf[0] != byte(i) {
			t.Fatalf("step %d: n=%d b=%d", i, n, buf[0])
		}
	}
	r.put(1)
	r.put(2)
	r.clear()
	if r.len() != 0 || r.get() != 0 {
		t.Fatalf("clear left len=%d", r.len())
	}
}

func TestRing_DefaultSize(t *testing.T) {
	r := newRing(0)
	if got := len(r.buf) - 1; got != DefaultRxBufferSize {
		t.Fatalf("size=%d; want %d", got, DefaultRxBufferSize)
	}
}
