package notify

import (
	"testing"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
)

func TestBroadcasterUnsubscribe(t *testing.T) {
	logging.InitNop()
	b := NewBroadcaster()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	Info(b, "both")

	b.Unsubscribe(sub1)
	b.Unsubscribe(sub1)
	Info(b, "second only")

	if got := sub1.Drain(); len(got) != 1 || got[0].Message != "both" {
		t.Errorf("unsubscribed queue = %+v", got)
	}
	if got := sub2.Drain(); len(got) != 2 {
		t.Errorf("expected 2 notices, got %+v", got)
	}
	b.Unsubscribe(sub2)
}

func TestBroadcasterPublish(t *testing.T) {
	logging.InitNop()
	b := NewBroadcaster()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	Success(b, "%s uploaded successfully", "a.txt")

	select {
	case <-sub.Ready():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notice")
	}
	got := sub.Drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(got))
	}
	n := got[0]
	if n.Level != LevelSuccess {
		t.Errorf("expected level %s, got %s", LevelSuccess, n.Level)
	}
	if n.Message != "a.txt uploaded successfully" {
		t.Errorf("unexpected message %q", n.Message)
	}
	if n.Time.IsZero() {
		t.Error("expected non-zero time")
	}
	if len(sub.Drain()) != 0 {
		t.Error("drain should empty the queue")
	}
}

func TestBroadcasterKeepsEveryNoticeForSlowConsumer(t *testing.T) {
	logging.InitNop()
	b := NewBroadcaster()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			Info(b, "notice %d", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	got := sub.Drain()
	if len(got) != 500 {
		t.Fatalf("expected 500 notices, got %d", len(got))
	}
	if got[499].Message != "notice 499" {
		t.Errorf("last notice = %q", got[499].Message)
	}
}

func TestRecorderAndNilNotifier(t *testing.T) {
	var r Recorder
	Info(&r, "one")
	Error(&r, "two: %v", "boom")
	Info(nil, "ignored")

	got := r.Messages()
	if len(got) != 2 || got[0] != "info: one" || got[1] != "error: two: boom" {
		t.Errorf("unexpected messages: %v", got)
	}
}
