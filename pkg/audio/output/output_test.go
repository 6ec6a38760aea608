// ABOUTME: Audio output tests
// ABOUTME: Verifies Output implementations and the headless pull loop
package output

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beatmix/beatmix/pkg/audio"
)

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestNullImplementsOutput(t *testing.T) {
	var _ Output = (*Null)(nil)
}

type countingReader struct {
	calls atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.calls.Add(1)
	return len(p), nil
}

func TestNullPullsUntilPaused(t *testing.T) {
	n := NewNull(Config{BufferDuration: 8 * time.Millisecond})
	src := &countingReader{}

	if err := n.Open(audio.Canonical, src); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer n.Close()

	deadline := time.Now().Add(time.Second)
	for src.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("null output never pulled")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := n.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	paused := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := src.calls.Load(); got != paused {
		t.Errorf("pulled while paused: %d -> %d", paused, got)
	}

	if err := n.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if n.BytesPulled() == 0 {
		t.Error("expected bytes pulled")
	}
}

func TestNullTransportBeforeOpen(t *testing.T) {
	n := NewNull(Config{})
	if err := n.Pause(); err != ErrNotOpen {
		t.Errorf("Pause before Open = %v, want ErrNotOpen", err)
	}
	if err := n.Resume(); err != ErrNotOpen {
		t.Errorf("Resume before Open = %v, want ErrNotOpen", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close before Open = %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errSourceClosed
}

var errSourceClosed = errors.New("source closed")

func TestNullReportsSourceError(t *testing.T) {
	n := NewNull(Config{BufferDuration: 8 * time.Millisecond})
	if err := n.Open(audio.Canonical, failingReader{}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer n.Close()

	select {
	case err := <-n.Errors():
		if !errors.Is(err, errSourceClosed) {
			t.Errorf("reported %v, want source error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("source error never reported")
	}
}

func TestReportDropsWhenFull(t *testing.T) {
	errs := make(chan error, 1)
	report(errs, errSourceClosed)
	report(errs, errSourceClosed)
	if len(errs) != 1 {
		t.Errorf("buffered = %d, want 1", len(errs))
	}
}
