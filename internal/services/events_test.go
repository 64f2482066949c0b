package services

import (
	"context"
	"errors"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()

	bus.Publish(EventCardDrawn, "morning")
	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		if ev.Type != EventCardDrawn || ev.Data != "morning" {
			t.Errorf("event = %+v", ev)
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("cancelled subscription should be closed")
	}

	// 缓冲满时丢弃而不是阻塞
	for i := 0; i < eventBufferSize+10; i++ {
		bus.Publish(EventTagChanged, i)
	}
	if len(b) != eventBufferSize {
		t.Errorf("buffered = %d, want %d", len(b), eventBufferSize)
	}

	bus.Close()
	cancelB()
	late, _ := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}

func TestPendingSelection(t *testing.T) {
	var picked string
	cancelled := false
	p := newSelection(SelectCharacter, "寻找角色", []SelectionOption{{ID: "suYuQing"}, {ID: "linMo"}},
		func(_ context.Context, id string) error {
			picked = id
			return nil
		}, func() { cancelled = true })

	if p.ID == "" || !p.Has("linMo") || p.Has("nobody") {
		t.Fatalf("selection = %+v", p)
	}
	if err := p.Resolve(context.Background(), "nobody"); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("err = %v, want ErrInvalidSelection", err)
	}
	if err := p.Resolve(context.Background(), "linMo"); err != nil || picked != "linMo" {
		t.Errorf("Resolve: picked %q, err %v", picked, err)
	}
	p.Cancel()
	if !cancelled {
		t.Error("Cancel did not call onCancel")
	}

	newSelection(SelectCharacter, "", nil, nil, nil).Cancel()
}

func TestSelectionViewIsDetached(t *testing.T) {
	p := newSelection(SelectCombatTarget, "选择目标", []SelectionOption{{ID: "crystal_0", Label: "晶体生物"}}, nil, nil)
	view := p.View()

	p.Options[0].Label = "已改变"
	p.Options = append(p.Options, SelectionOption{ID: "crystal_1"})
	p.Prompt = ""

	if view.ID != p.ID || view.Kind != SelectCombatTarget || view.Prompt != "选择目标" {
		t.Errorf("view = %+v", view)
	}
	if len(view.Options) != 1 || view.Options[0].Label != "晶体生物" {
		t.Errorf("view options changed with the selection: %+v", view.Options)
	}
}
