package bridge

import (
	"testing"
	"time"
)

func TestBroadcastDropDoesNotBlock(t *testing.T) {
	cs := NewConnectionSet(4, PolicyDrop)
	c := cs.NewClient()
	defer cs.Remove(c)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		cs.Broadcast([]byte("0123456789ABCDEF"))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Broadcast took too long: %s", elapsed)
	}
	if len(c.Out) != cap(c.Out) {
		t.Fatalf("expected buffer full, got len=%d cap=%d", len(c.Out), cap(c.Out))
	}
}

func TestBroadcastDropKeepsOthersFlowing(t *testing.T) {
	cs := NewConnectionSet(1, PolicyDrop)
	slow := cs.NewClient()
	fast := cs.NewClient()
	defer cs.Remove(slow)
	defer cs.Remove(fast)

	cs.Broadcast([]byte("slow-fill-frame."))
	for i := 0; i < 10; i++ {
		cs.Broadcast([]byte("fast-burst-frame"))
	}

	got := 0
	timeout := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case <-fast.Out:
			got++
		case <-timeout:
			break loop
		default:
			if got > 0 {
				break loop
			}
		}
	}
	if got == 0 {
		t.Fatalf("fast client received no frames")
	}
}

func TestBroadcastKickPolicyClosesSlowClient(t *testing.T) {
	cs := NewConnectionSet(1, PolicyKick)
	c := cs.NewClient()
	defer cs.Remove(c)

	cs.Broadcast([]byte("fill-the-one-slot"))
	cs.Broadcast([]byte("this-one-overflows"))

	select {
	case <-c.Closed:
	default:
		t.Fatalf("expected client to be closed by kick policy")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	cs := NewConnectionSet(4, PolicyDrop)
	c := cs.NewClient()
	cs.Remove(c)
	cs.Remove(c)
	if cs.Count() != 0 {
		t.Fatalf("expected 0 clients after remove, got %d", cs.Count())
	}
}
