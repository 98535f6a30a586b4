package observer

import (
	"reflect"
	"testing"
)

func TestRegistry_NotifyOrder(t *testing.T) {
	r := NewRegistry[int]()

	var got []string
	r.Subscribe(func(int) { got = append(got, "first") })
	r.Subscribe(func(int) { got = append(got, "second") })
	r.Subscribe(func(int) { got = append(got, "third") })

	r.Notify(1)

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry[int]()

	var calls int
	sub := r.Subscribe(func(int) { calls++ })

	r.Notify(1)
	r.Unsubscribe(sub)
	r.Notify(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}

	// Double unsubscribe must be harmless.
	r.Unsubscribe(sub)
	r.Unsubscribe(Subscription(0))
	r.Unsubscribe(Subscription(999))
}

func TestRegistry_NilCallback(t *testing.T) {
	r := NewRegistry[int]()

	if sub := r.Subscribe(nil); sub != 0 {
		t.Errorf("Subscribe(nil) = %d, want 0", sub)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_UnsubscribeDuringNotify(t *testing.T) {
	r := NewRegistry[int]()

	var got []string
	var sub2 Subscription
	r.Subscribe(func(int) {
		got = append(got, "first")
		r.Unsubscribe(sub2)
	})
	sub2 = r.Subscribe(func(int) { got = append(got, "second") })

	// The in-flight event still reaches the removed callback.
	r.Notify(1)
	r.Notify(2)

	want := []string{"first", "second", "first"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("deliveries = %v, want %v", got, want)
	}
}

func TestRegistry_SubscribeDuringNotify(t *testing.T) {
	r := NewRegistry[int]()

	var lateCalls int
	r.Subscribe(func(int) {
		if r.Len() == 1 {
			r.Subscribe(func(int) { lateCalls++ })
		}
	})

	r.Notify(1)
	if lateCalls != 0 {
		t.Errorf("late callback saw the event it was registered during, calls = %d", lateCalls)
	}

	r.Notify(2)
	if lateCalls != 1 {
		t.Errorf("lateCalls = %d, want 1", lateCalls)
	}
}

func TestKeyed_RoutesByKey(t *testing.T) {
	k := NewKeyed[string, int]()

	var aGot, bGot []int
	k.Subscribe("game-a", func(v int) { aGot = append(aGot, v) })
	k.Subscribe("game-b", func(v int) { bGot = append(bGot, v) })

	k.Notify("game-a", 1)
	k.Notify("game-b", 2)
	k.Notify("game-a", 3)
	k.Notify("game-c", 4) // no subscribers

	if !reflect.DeepEqual(aGot, []int{1, 3}) {
		t.Errorf("game-a deliveries = %v, want [1 3]", aGot)
	}
	if !reflect.DeepEqual(bGot, []int{2}) {
		t.Errorf("game-b deliveries = %v, want [2]", bGot)
	}
}

func TestKeyed_UnsubscribePrunesKey(t *testing.T) {
	k := NewKeyed[string, int]()

	sub1 := k.Subscribe("game-a", func(int) {})
	sub2 := k.Subscribe("game-a", func(int) {})

	if got := k.Len("game-a"); got != 2 {
		t.Fatalf("Len(game-a) = %d, want 2", got)
	}

	k.Unsubscribe(sub1)
	if got := k.Len("game-a"); got != 1 {
		t.Errorf("Len(game-a) = %d, want 1", got)
	}
	if keys := k.Keys(); len(keys) != 1 || keys[0] != "game-a" {
		t.Errorf("Keys = %v, want [game-a]", keys)
	}

	k.Unsubscribe(sub2)
	if keys := k.Keys(); len(keys) != 0 {
		t.Errorf("Keys after last unsubscribe = %v, want empty", keys)
	}

	// Idempotent.
	k.Unsubscribe(sub2)
}

func TestKeyed_NotifyOrder(t *testing.T) {
	k := NewKeyed[string, int]()

	var got []string
	k.Subscribe("game-a", func(int) { got = append(got, "first") })
	k.Subscribe("game-a", func(int) { got = append(got, "second") })

	k.Notify("game-a", 1)

	if !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Errorf("delivery order = %v", got)
	}
}
