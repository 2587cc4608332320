package counter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/blockedby/chatcount/internal/telegram"
)

// runWorker drives one job to completion and returns every emitted
// event in order.
func runWorker(t *testing.T, client *fakeClient, target ChatTarget, cancel *atomic.Bool) []Event {
	t.Helper()
	if cancel == nil {
		cancel = &atomic.Bool{}
	}

	out := make(chan Event, 1024)
	done := make(chan struct{})
	go func() {
		NewWorker(client).Run(context.Background(), NewJob(target, client.name, cancel), out)
		close(out)
		close(done)
	}()
	<-done

	var events []Event
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

// splitEvents separates counted messages from the terminal event and
// asserts exactly one terminal event arrives, last.
func splitEvents(t *testing.T, events []Event) ([]MessageCounted, Event) {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}

	var counted []MessageCounted
	var term Event
	for i, ev := range events {
		if terminal(ev) {
			if term != nil {
				t.Fatalf("second terminal event %T at index %d", ev, i)
			}
			if i != len(events)-1 {
				t.Fatalf("terminal event %T at index %d is not last of %d", ev, i, len(events))
			}
			term = ev
			continue
		}
		if mc, ok := ev.(MessageCounted); ok {
			counted = append(counted, mc)
		}
	}
	if term == nil {
		t.Fatal("no terminal event emitted")
	}
	return counted, term
}

func TestWorkerRun(t *testing.T) {
	t.Run("bounded range with holes", func(t *testing.T) {
		client := &fakeClient{name: "s1", msgs: history(105, 104, 102, 100)}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 105, EndID: 100}, nil)
		counted, term := splitEvents(t, events)

		if len(counted) != 4 {
			t.Fatalf("counted %d messages, want 4", len(counted))
		}
		// the previous-id chain starts one above the requested start
		wantLastSeen := []int{106, 105, 104, 102}
		wantIDs := []int{105, 104, 102, 100}
		for i, mc := range counted {
			if mc.Message.ID != wantIDs[i] || mc.LastSeen != wantLastSeen[i] {
				t.Errorf("counted[%d] = id %d lastSeen %d, want id %d lastSeen %d",
					i, mc.Message.ID, mc.LastSeen, wantIDs[i], wantLastSeen[i])
			}
			if mc.StartAt != 105 || mc.EndAt != 100 {
				t.Errorf("counted[%d] bounds = [%d..%d], want [105..100]", i, mc.StartAt, mc.EndAt)
			}
		}

		fin, ok := term.(JobFinished)
		if !ok {
			t.Fatalf("terminal = %T, want JobFinished", term)
		}
		if fin.Cancelled || fin.EndAt != 100 || fin.LastSeen != 100 {
			t.Errorf("JobFinished = %+v", fin)
		}
	})

	t.Run("open start discovered from latest message", func(t *testing.T) {
		client := &fakeClient{name: "s1", msgs: history(50, 49)}
		events := runWorker(t, client, ChatTarget{Chat: "c"}, nil)
		counted, term := splitEvents(t, events)

		if len(counted) != 2 {
			t.Fatalf("counted %d messages, want 2", len(counted))
		}
		if counted[0].StartAt != 50 || counted[0].LastSeen != NoLastSeen {
			t.Errorf("first event = startAt %d lastSeen %d, want 50 and unset",
				counted[0].StartAt, counted[0].LastSeen)
		}

		fin := term.(JobFinished)
		if fin.EndAt != 1 || fin.LastSeen != 49 {
			t.Errorf("JobFinished = %+v", fin)
		}
	})

	t.Run("end bound is inclusive", func(t *testing.T) {
		client := &fakeClient{name: "s1", msgs: history(5, 4, 3, 2, 1)}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 5, EndID: 3}, nil)
		counted, term := splitEvents(t, events)

		if len(counted) != 3 {
			t.Fatalf("counted %d messages, want 3", len(counted))
		}
		if last := counted[len(counted)-1].Message.ID; last != 3 {
			t.Errorf("last counted id = %d, want 3", last)
		}
		fin := term.(JobFinished)
		if fin.LastSeen != 3 || fin.EndAt != 3 {
			t.Errorf("JobFinished = %+v", fin)
		}
	})

	t.Run("deleted start message shows in the chain", func(t *testing.T) {
		client := &fakeClient{name: "s1", msgs: history(8, 7)}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 10}, nil)
		counted, _ := splitEvents(t, events)

		if len(counted) == 0 {
			t.Fatal("nothing counted")
		}
		// ids 10 and 9 are gone; the chain starts at 11 so the gap
		// before id 8 is visible to the aggregator
		if counted[0].LastSeen != 11 || counted[0].Message.ID != 8 {
			t.Errorf("first event = id %d lastSeen %d, want 8 and 11",
				counted[0].Message.ID, counted[0].LastSeen)
		}
	})

	t.Run("cancellation stops after the current message", func(t *testing.T) {
		cancel := &atomic.Bool{}
		cancel.Store(true)
		client := &fakeClient{name: "s1", msgs: history(100, 99, 98, 97)}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 100}, cancel)
		counted, term := splitEvents(t, events)

		if len(counted) != 1 {
			t.Fatalf("counted %d messages after cancel, want 1", len(counted))
		}
		fin, ok := term.(JobFinished)
		if !ok {
			t.Fatalf("terminal = %T, want JobFinished", term)
		}
		if !fin.Cancelled {
			t.Error("JobFinished.Cancelled = false, want true")
		}
		if fin.LastSeen != 100 {
			t.Errorf("LastSeen = %d, want 100", fin.LastSeen)
		}
	})

	t.Run("context cancellation finishes as cancelled", func(t *testing.T) {
		client := &fakeClient{name: "s1", msgs: history(10, 9, 8)}
		out := make(chan Event, 64)
		ctx, stop := context.WithCancel(context.Background())
		stop()

		NewWorker(client).Run(ctx, NewJob(ChatTarget{Chat: "c", StartID: 10}, "s1", &atomic.Bool{}), out)
		close(out)

		var events []Event
		for ev := range out {
			events = append(events, ev)
		}
		_, term := splitEvents(t, events)
		fin, ok := term.(JobFinished)
		if !ok || !fin.Cancelled {
			t.Errorf("terminal = %+v, want cancelled JobFinished", term)
		}
	})

	t.Run("unauthorized session", func(t *testing.T) {
		client := &fakeClient{name: "s1", unauthorized: true}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 10}, nil)
		_, term := splitEvents(t, events)

		ev, ok := term.(SessionUnauthorized)
		if !ok || ev.Session != "s1" {
			t.Errorf("terminal = %+v, want SessionUnauthorized for s1", term)
		}
		if len(events) != 1 {
			t.Errorf("got %d events, want only the terminal one", len(events))
		}
	})

	t.Run("unknown chat", func(t *testing.T) {
		client := &fakeClient{name: "s1", resolveErr: telegram.ErrChatNotFound}
		events := runWorker(t, client, ChatTarget{Chat: "ghost", StartID: 10}, nil)
		_, term := splitEvents(t, events)

		ev, ok := term.(ChatNotFound)
		if !ok || ev.Chat != "ghost" {
			t.Errorf("terminal = %+v, want ChatNotFound for ghost", term)
		}
	})

	t.Run("resolve failure", func(t *testing.T) {
		client := &fakeClient{name: "s1", resolveErr: errors.New("network down")}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 10}, nil)
		_, term := splitEvents(t, events)

		if _, ok := term.(WorkerFailed); !ok {
			t.Errorf("terminal = %T, want WorkerFailed", term)
		}
	})

	t.Run("mid-iteration fetch failure", func(t *testing.T) {
		fetchErr := errors.New("RPC_CALL_FAIL")
		client := &fakeClient{name: "s1", msgs: history(20, 19), iterErr: fetchErr}
		events := runWorker(t, client, ChatTarget{Chat: "c", StartID: 20}, nil)
		counted, term := splitEvents(t, events)

		if len(counted) != 2 {
			t.Errorf("counted %d messages before failure, want 2", len(counted))
		}
		fail, ok := term.(WorkerFailed)
		if !ok {
			t.Fatalf("terminal = %T, want WorkerFailed", term)
		}
		if !errors.Is(fail.Err, fetchErr) {
			t.Errorf("Err = %v, want %v", fail.Err, fetchErr)
		}
	})
}
