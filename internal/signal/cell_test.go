package signal

import "testing"

func TestCellGetBeforeSet(t *testing.T) {
	c := New[int]()
	if _, ok := c.Get(); ok {
		t.Fatal("expected no value before Set")
	}
}

func TestCellSetGet(t *testing.T) {
	c := New[int]()
	c.Set(42)

	v, ok := c.Get()
	if !ok || v != 42 {
		t.Fatalf("got (%d, %v), want (42, true)", v, ok)
	}
}

func TestCellWatchReceivesCurrentValue(t *testing.T) {
	c := NewWithValue(7)

	ch, cancel := c.Watch()
	defer cancel()

	select {
	case v := <-ch:
		if v != 7 {
			t.Fatalf("got %d, want 7", v)
		}
	default:
		t.Fatal("expected current value to be delivered immediately")
	}
}

func TestCellWatchReceivesUpdates(t *testing.T) {
	c := New[string]()
	ch, cancel := c.Watch()
	defer cancel()

	c.Set("hello")

	select {
	case v := <-ch:
		if v != "hello" {
			t.Fatalf("got %q, want %q", v, "hello")
		}
	default:
		t.Fatal("expected update to be delivered")
	}
}

func TestCellCancelClosesChannel(t *testing.T) {
	c := New[int]()
	ch, cancel := c.Watch()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
