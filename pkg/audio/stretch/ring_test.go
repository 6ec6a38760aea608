// ABOUTME: Tests for the stretch ring buffer
// ABOUTME: Covers FIFO order, non-blocking reads, writer backpressure and reset
package stretch

import (
	"errors"
	"testing"
	"time"
)

func TestRingFIFO(t *testing.T) {
	r := NewRing(8)
	if err := r.Write([]float32{1, 2, 3}, r.Epoch()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	dst := make([]float32, 5)
	n := r.Read(dst)
	if n != 3 {
		t.Fatalf("expected 3 samples, got %d", n)
	}
	for i, expected := range []float32{1, 2, 3} {
		if dst[i] != expected {
			t.Errorf("sample %d: expected %f, got %f", i, expected, dst[i])
		}
	}
	if r.Consumed() != 3 {
		t.Errorf("expected 3 consumed, got %d", r.Consumed())
	}
}

func TestRingReadEmptyDoesNotBlock(t *testing.T) {
	r := NewRing(4)
	done := make(chan int)
	go func() { done <- r.Read(make([]float32, 4)) }()

	select {
	case n := <-done:
		if n != 0 {
			t.Errorf("expected 0 samples, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Read blocked on empty ring")
	}
}

func TestRingWriterWaitsForSpace(t *testing.T) {
	r := NewRing(4)
	epoch := r.Epoch()

	done := make(chan error)
	go func() { done <- r.Write([]float32{1, 2, 3, 4, 5, 6}, epoch) }()

	select {
	case <-done:
		t.Fatal("Write returned before space was available")
	case <-time.After(50 * time.Millisecond):
	}

	r.Read(make([]float32, 2))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not resume after Read")
	}
	if r.Available() != 4 {
		t.Errorf("expected 4 available, got %d", r.Available())
	}
}

func TestRingResetWakesWriter(t *testing.T) {
	r := NewRing(2)
	epoch := r.Epoch()

	done := make(chan error)
	go func() { done <- r.Write([]float32{1, 2, 3, 4}, epoch) }()
	time.Sleep(20 * time.Millisecond)

	r.Reset()

	select {
	case err := <-done:
		if !errors.Is(err, ErrRingReset) {
			t.Errorf("expected ErrRingReset, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reset did not wake writer")
	}
	if r.Available() != 0 {
		t.Errorf("expected empty ring after reset, got %d", r.Available())
	}
}

func TestRingRejectsStaleEpoch(t *testing.T) {
	r := NewRing(4)
	stale := r.Epoch()
	r.Reset()

	if err := r.Write([]float32{1}, stale); !errors.Is(err, ErrRingReset) {
		t.Errorf("expected ErrRingReset, got %v", err)
	}
}

func TestRingClose(t *testing.T) {
	r := NewRing(1)
	epoch := r.Epoch()

	done := make(chan error)
	go func() { done <- r.Write([]float32{1, 2}, epoch) }()
	time.Sleep(20 * time.Millisecond)
	r.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrRingClosed) {
			t.Errorf("expected ErrRingClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake writer")
	}
}
