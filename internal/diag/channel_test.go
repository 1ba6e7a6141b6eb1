package diag

import (
	"fmt"
	"testing"
)

func TestChannelTrimsToMaxLines(t *testing.T) {
	set := NewSet(3, nil, nil)
	ch := set.Channel("RooBoost")
	for i := 0; i < 5; i++ {
		ch.AppendLine(fmt.Sprintf("line %d", i))
	}
	view := ch.Snapshot(0)
	if view.TotalLines != 3 {
		t.Fatalf("expected 3 lines, got %d", view.TotalLines)
	}
	if view.Lines[0] != "line 2" || view.Lines[2] != "line 4" {
		t.Fatalf("unexpected lines: %v", view.Lines)
	}
}

func TestSnapshotLimitReturnsTail(t *testing.T) {
	ch := NewSet(0, nil, nil).Channel("x")
	ch.AppendLine("a")
	ch.AppendLine("b")
	ch.AppendLine("c")
	view := ch.Snapshot(2)
	if len(view.Lines) != 2 || view.Lines[0] != "b" || view.Lines[1] != "c" {
		t.Fatalf("unexpected tail: %v", view.Lines)
	}
	if view.TotalLines != 3 {
		t.Fatalf("expected total 3, got %d", view.TotalLines)
	}
}

func TestSetReusesChannelsAndNotifiesShow(t *testing.T) {
	var shown []string
	set := NewSet(10, nil, func(name string) { shown = append(shown, name) })
	first := set.Channel("Hello World")
	if set.Channel("Hello World") != first {
		t.Fatalf("expected the same channel instance")
	}
	first.Show()
	if len(shown) != 1 || shown[0] != "Hello World" {
		t.Fatalf("expected show notification, got %v", shown)
	}
	if !first.Snapshot(0).Shown {
		t.Fatalf("expected shown flag")
	}
	if _, ok := set.Lookup("missing"); ok {
		t.Fatalf("did not expect missing channel")
	}
	set.Channel("Another")
	names := set.Names()
	if len(names) != 2 || names[0] != "Another" {
		t.Fatalf("unexpected names: %v", names)
	}
}
