package event

import "testing"

type ping struct{ N int }
type pong struct{ S string }

func TestBusDeliversNextFrame(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(p ping) { got = append(got, p.N) })

	Emit(b, ping{N: 1})
	Emit(b, ping{N: 2})
	if b.DispatchAll() != 0 || len(got) != 0 {
		t.Fatal("events delivered before swap")
	}

	b.SwapBuffers()
	if n := b.DispatchAll(); n != 2 {
		t.Fatalf("dispatched %d, want 2", n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v, want [1 2]", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 {
		t.Errorf("events redelivered: %v", got)
	}
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	var pings, pongs int
	Subscribe(b, func(ping) { pings++ })
	Subscribe(b, func(pong) { pongs++ })
	Subscribe(b, func(pong) { pongs++ })

	Emit(b, ping{})
	Emit(b, pong{S: "x"})
	b.SwapBuffers()
	b.DispatchAll()

	if pings != 1 || pongs != 2 {
		t.Errorf("pings=%d pongs=%d, want 1 and 2", pings, pongs)
	}
}

func TestBusHandlerEmitsIntoNextFrame(t *testing.T) {
	b := NewBus()
	var pongs int
	Subscribe(b, func(p ping) { Emit(b, pong{}) })
	Subscribe(b, func(pong) { pongs++ })

	Emit(b, ping{})
	b.SwapBuffers()
	b.DispatchAll()
	if pongs != 0 || b.Pending() != 1 {
		t.Fatalf("pongs=%d pending=%d, want 0 and 1", pongs, b.Pending())
	}
	b.SwapBuffers()
	b.DispatchAll()
	if pongs != 1 {
		t.Errorf("pongs = %d, want 1", pongs)
	}
}
