package medium

import (
	"context"
	"errors"
	"testing"
)

func TestStoreScanByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Set(ctx, "p:a", "1")
	_ = s.Set(ctx, "p:b", "2")
	_ = s.Set(ctx, "q:c", "3")

	got, err := s.Scan(ctx, "p:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got["p:a"] != "1" || got["p:b"] != "2" {
		t.Errorf("unexpected scan result %v", got)
	}

	if err := s.Delete(ctx, "p:a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "p:a"); ok {
		t.Error("deleted key still present")
	}
}

func TestStoreFailWith(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")
	s.FailWith(boom)
	if _, err := s.Scan(ctx, ""); !errors.Is(err, boom) {
		t.Errorf("expected injected failure, got %v", err)
	}
	s.FailWith(nil)
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Errorf("store should recover, got %v", err)
	}
}

func TestHubSkipsPublisher(t *testing.T) {
	ctx := context.Background()
	h := NewHub(4)
	a, b := h.Join(), h.Join()
	defer a.Close()
	defer b.Close()

	if err := a.Publish(ctx, []byte("hi")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-b.Messages():
		if string(msg) != "hi" {
			t.Errorf("got %q", msg)
		}
	default:
		t.Fatal("peer did not receive message")
	}
	select {
	case <-a.Messages():
		t.Fatal("publisher received its own message")
	default:
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	h := NewHub(1)
	a, b := h.Join(), h.Join()
	_ = a.Publish(ctx, []byte("1"))
	_ = a.Publish(ctx, []byte("2"))
	if got := len(b.Messages()); got != 1 {
		t.Errorf("expected 1 buffered message, got %d", got)
	}
}

func TestEndpointClose(t *testing.T) {
	h := NewHub(1)
	a := h.Join()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if h.Size() != 0 {
		t.Errorf("hub still holds %d endpoints", h.Size())
	}
	if _, ok := <-a.Messages(); ok {
		t.Error("messages channel should be closed")
	}
	if err := a.Publish(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close = %v, want ErrClosed", err)
	}
}
