package notify

import "testing"

func TestSubscribeReceivesAllChanges(t *testing.T) {
	n := New()

	var got []Change
	sub := n.Subscribe(func(c Change) { got = append(got, c) })
	defer sub.Unsubscribe()

	n.NotifySet("editor.tabSize", 4, 2, "test")
	n.NotifySet("ui.theme", "dark", "light", "test")

	if len(got) != 2 {
		t.Fatalf("got %d changes, want 2", len(got))
	}
	if got[0].Path != "editor.tabSize" || got[0].NewValue != 2 {
		t.Errorf("first change = %+v", got[0])
	}
}

func TestSubscribePathFilters(t *testing.T) {
	n := New()

	var got []Change
	sub := n.SubscribePath("editor", func(c Change) { got = append(got, c) })
	defer sub.Unsubscribe()

	n.NotifySet("editor.tabSize", 4, 2, "test")
	n.NotifySet("ui.theme", "dark", "light", "test")
	n.NotifySet("editor", nil, "x", "test")

	if len(got) != 2 {
		t.Fatalf("got %d changes, want 2", len(got))
	}
	for _, c := range got {
		if c.Path != "editor.tabSize" && c.Path != "editor" {
			t.Errorf("unexpected path %q", c.Path)
		}
	}
}

func TestSubscribePathPrefixIsSegmentAligned(t *testing.T) {
	n := New()

	count := 0
	sub := n.SubscribePath("editor", func(Change) { count++ })
	defer sub.Unsubscribe()

	n.NotifySet("editorial.tone", nil, "x", "test")

	if count != 0 {
		t.Errorf("prefix matched across a segment boundary")
	}
}

func TestReloadReachesPathSubscribers(t *testing.T) {
	n := New()

	count := 0
	sub := n.SubscribePath("editor", func(c Change) {
		if c.Type == ChangeReload {
			count++
		}
	})
	defer sub.Unsubscribe()

	n.NotifyReload("test")

	if count != 1 {
		t.Errorf("reload delivered %d times, want 1", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := New()

	count := 0
	sub := n.Subscribe(func(Change) { count++ })

	n.NotifySet("a", nil, 1, "test")
	sub.Unsubscribe()
	n.NotifySet("b", nil, 2, "test")

	if count != 1 {
		t.Errorf("got %d deliveries, want 1", count)
	}
}
