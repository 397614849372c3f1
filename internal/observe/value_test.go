package observe

import "testing"

func TestValueNotifiesOnChange(t *testing.T) {
	v := NewValue(0)
	var seen []int
	v.Subscribe(func(x int) { seen = append(seen, x) })

	v.Set(1)
	v.Set(1) // unchanged, no notification
	v.Set(2)

	if v.Get() != 2 {
		t.Errorf("Get = %d, want 2", v.Get())
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("notifications = %v, want [1 2]", seen)
	}
}

func TestValueSubscriptionOrder(t *testing.T) {
	v := NewValue("")
	var order []int
	v.Subscribe(func(string) { order = append(order, 1) })
	v.Subscribe(func(string) { order = append(order, 2) })

	v.Set("x")

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("callback order = %v, want [1 2]", order)
	}
}

func TestValueUnsubscribe(t *testing.T) {
	v := NewValue(false)
	calls := 0
	unsubscribe := v.Subscribe(func(bool) { calls++ })

	v.Set(true)
	unsubscribe()
	v.Set(false)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
