package event

import (
	"testing"
	"time"
)

func TestSendPopOrder(t *testing.T) {
	q := NewQueue()
	e1 := NewEvent(AllApps(), AllModules(), Init{})
	e2 := NewEvent(AllApps(), AllModules(), Cron{Tag: "tick"})

	if err := q.Send(e1); err != nil {
		t.Fatalf("send e1: %v", err)
	}
	if err := q.Send(e2); err != nil {
		t.Fatalf("send e2: %v", err)
	}

	got1, ok := q.Pop()
	if !ok || got1.ID != e1.ID {
		t.Fatalf("expected e1 first")
	}
	got2, ok := q.Pop()
	if !ok || got2.ID != e2.ID {
		t.Fatalf("expected e2 second")
	}
}

func TestSendAfterShutdownIsRejected(t *testing.T) {
	q := NewQueue()
	q.RequestShutdown(0)
	if err := q.Send(NewEvent(AllApps(), AllModules(), Init{})); err == nil {
		t.Fatalf("expected ErrQueueClosed after shutdown")
	}
}

func TestDrainedClosedQueuePopReturnsFalse(t *testing.T) {
	q := NewQueue()
	ev := NewEvent(AllApps(), AllModules(), Init{})
	if err := q.Send(ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	q.RequestShutdown(0)

	if _, ok := q.Pop(); !ok {
		t.Fatalf("expected the already-enqueued event to still be poppable")
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected Pop to return false once drained and closed")
	}
}

func TestWaitExitReturnsDoneWithCode(t *testing.T) {
	q := NewQueue()
	go func() {
		time.Sleep(5 * time.Millisecond)
		q.RequestShutdown(7)
		// A real dispatcher would drain its worker pool here before
		// calling MarkDrained; this test simulates that completion.
		q.MarkDrained()
	}()
	exit := q.WaitExitTimeout(time.Second)
	if exit.Status != StatusDone || exit.Code != 7 {
		t.Fatalf("expected Done(7), got %+v", exit)
	}
}

func TestWaitExitTimeoutFiresWhenNoShutdown(t *testing.T) {
	q := NewQueue()
	exit := q.WaitExitTimeout(10 * time.Millisecond)
	if exit.Status != StatusTimeout {
		t.Fatalf("expected Timeout, got %+v", exit)
	}
}

func TestRequestShutdownAloneDoesNotUnblockWaitExit(t *testing.T) {
	q := NewQueue()
	q.RequestShutdown(0)
	exit := q.WaitExitTimeout(20 * time.Millisecond)
	if exit.Status != StatusTimeout {
		t.Fatalf("expected WaitExit to stay blocked until MarkDrained, got %+v", exit)
	}
	q.MarkDrained()
	exit = q.WaitExitTimeout(time.Second)
	if exit.Status != StatusDone {
		t.Fatalf("expected Done after MarkDrained, got %+v", exit)
	}
}

func TestCompletionFiresOnceAllInFlightFinish(t *testing.T) {
	ev := NewEvent(AllApps(), AllModules(), Init{})
	done := ev.WithCompletion()
	ev.AddInFlight(2)

	select {
	case <-done:
		t.Fatalf("completion fired before all in-flight work finished")
	default:
	}

	ev.FinishedOne()
	select {
	case <-done:
		t.Fatalf("completion fired after only one of two finished")
	default:
	}

	ev.FinishedOne()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("completion never fired after both finished")
	}
}
