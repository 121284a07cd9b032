package emit

import (
	"context"
	"sync"
	"testing"
)

func seedEvents(b *BufferedEmitter) {
	b.Emit(Event{RunID: "run-1", Step: 1, NodeID: "a", Msg: MsgNodeStart})
	b.Emit(Event{RunID: "run-1", Step: 1, NodeID: "a", Msg: MsgNodeEnd, Mode: "values"})
	b.Emit(Event{RunID: "run-1", Step: 2, NodeID: "b", Msg: MsgCacheHit})
	b.Emit(Event{RunID: "run-1", Step: 3, NodeID: "approve", Msg: MsgInterrupt,
		Interrupt: map[string]interface{}{"question": "ok?"}})
	b.Emit(Event{RunID: "run-2", Step: 1, NodeID: "x", Msg: MsgNodeStart})
}

func TestBufferedEmitterStoresPerRun(t *testing.T) {
	b := NewBufferedEmitter()
	seedEvents(b)

	if got := b.Len("run-1"); got != 4 {
		t.Errorf("Len(run-1) = %d, want 4", got)
	}
	if got := b.Len("run-2"); got != 1 {
		t.Errorf("Len(run-2) = %d, want 1", got)
	}
	if got := b.Len("unknown"); got != 0 {
		t.Errorf("Len(unknown) = %d, want 0", got)
	}

	all := b.History("run-1", HistoryFilter{})
	if len(all) != 4 || all[0].Msg != MsgNodeStart || all[3].Msg != MsgInterrupt {
		t.Errorf("history = %+v", all)
	}
}

func TestBufferedEmitterFilters(t *testing.T) {
	b := NewBufferedEmitter()
	seedEvents(b)

	t.Run("by node", func(t *testing.T) {
		got := b.History("run-1", HistoryFilter{NodeID: "a"})
		if len(got) != 2 {
			t.Errorf("node filter = %+v", got)
		}
	})

	t.Run("by msg", func(t *testing.T) {
		got := b.History("run-1", HistoryFilter{Msg: MsgCacheHit})
		if len(got) != 1 || got[0].NodeID != "b" {
			t.Errorf("msg filter = %+v", got)
		}
	})

	t.Run("by mode", func(t *testing.T) {
		got := b.History("run-1", HistoryFilter{Mode: "values"})
		if len(got) != 1 || got[0].Msg != MsgNodeEnd {
			t.Errorf("mode filter = %+v", got)
		}
	})

	t.Run("interrupts only", func(t *testing.T) {
		got := b.History("run-1", HistoryFilter{InterruptsOnly: true})
		if len(got) != 1 {
			t.Fatalf("interrupt filter = %+v", got)
		}
		iv, ok := got[0].Interrupt.(map[string]interface{})
		if !ok || iv["question"] != "ok?" {
			t.Errorf("interrupt value = %v", got[0].Interrupt)
		}
	})

	t.Run("step range", func(t *testing.T) {
		minStep, maxStep := 2, 3
		got := b.History("run-1", HistoryFilter{MinStep: &minStep, MaxStep: &maxStep})
		if len(got) != 2 {
			t.Errorf("step filter = %+v", got)
		}
	})

	t.Run("combined with AND", func(t *testing.T) {
		got := b.History("run-1", HistoryFilter{NodeID: "a", Msg: MsgNodeEnd})
		if len(got) != 1 {
			t.Errorf("combined filter = %+v", got)
		}
	})

	t.Run("no matches yields empty slice", func(t *testing.T) {
		got := b.History("run-1", HistoryFilter{NodeID: "ghost"})
		if got == nil || len(got) != 0 {
			t.Errorf("got %v, want empty non-nil slice", got)
		}
	})
}

func TestBufferedEmitterInterruptsHelper(t *testing.T) {
	b := NewBufferedEmitter()
	seedEvents(b)

	got := b.Interrupts("run-1")
	if len(got) != 1 || got[0].NodeID != "approve" {
		t.Errorf("Interrupts = %+v", got)
	}
	if got := b.Interrupts("run-2"); len(got) != 0 {
		t.Errorf("run-2 interrupts = %+v", got)
	}
}

func TestBufferedEmitterHistoryIsACopy(t *testing.T) {
	b := NewBufferedEmitter()
	seedEvents(b)

	got := b.History("run-1", HistoryFilter{})
	got[0].Msg = "mutated"

	again := b.History("run-1", HistoryFilter{})
	if again[0].Msg != MsgNodeStart {
		t.Error("History handed out aliased storage")
	}
}

func TestBufferedEmitterEmitBatch(t *testing.T) {
	b := NewBufferedEmitter()
	err := b.EmitBatch(context.Background(), []Event{
		{RunID: "run-9", Step: 1, NodeID: "a", Msg: MsgNodeStart},
		{RunID: "run-9", Step: 1, NodeID: "a", Msg: MsgNodeEnd},
	})
	if err != nil {
		t.Fatalf("EmitBatch() error = %v", err)
	}
	if b.Len("run-9") != 2 {
		t.Errorf("Len = %d", b.Len("run-9"))
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
}

func TestBufferedEmitterClear(t *testing.T) {
	b := NewBufferedEmitter()
	seedEvents(b)

	b.Clear("run-1")
	if b.Len("run-1") != 0 {
		t.Error("run-1 survived Clear")
	}
	if b.Len("run-2") != 1 {
		t.Error("Clear(run-1) touched run-2")
	}

	b.Clear("")
	if b.Len("run-2") != 0 {
		t.Error("Clear(\"\") left events behind")
	}
}

func TestBufferedEmitterThreadSafety(t *testing.T) {
	b := NewBufferedEmitter()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Emit(Event{RunID: "shared", Step: j, NodeID: "n", Msg: MsgNodeStart})
				_ = b.History("shared", HistoryFilter{NodeID: "n"})
			}
		}()
	}
	wg.Wait()
	if b.Len("shared") != 400 {
		t.Errorf("Len = %d, want 400", b.Len("shared"))
	}
}

func TestBufferedEmitterImplementsEmitter(t *testing.T) {
	var _ Emitter = NewBufferedEmitter()
}
