package localsvc

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"tunneld/util"
)

// commandRecorder captures every command the supervisor runs and
// answers from a canned table.
type commandRecorder struct {
	mu      sync.Mutex
	results map[string]error // keyed by command name
	ran     []string
}

func (r *commandRecorder) run(_ context.Context, name string, _ ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, name)
	return r.results[name]
}

func (r *commandRecorder) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func (r *commandRecorder) waitFor(t *testing.T, name string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		for _, c := range r.commands() {
			if c == name {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("command %q never ran; ran: %v", name, r.commands())
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestSupervisor(rec *commandRecorder) *Supervisor {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	s := NewSupervisor(l)
	s.Run = rec.run
	return s
}

func TestStartSerialRelay_SkipsWhenAlreadyRunning(t *testing.T) {
	rec := &commandRecorder{results: map[string]error{"pidof": nil}} // relay present
	s := newTestSupervisor(rec)

	s.StartSerialRelay(context.Background(), 5555, "/dev/ttyS2")

	rec.waitFor(t, "pidof")
	time.Sleep(20 * time.Millisecond)
	for _, c := range rec.commands() {
		if c == "/bin/sh" {
			t.Fatal("relay launched although one is already running")
		}
	}
}

func TestStartSerialRelay_LaunchesWhenAbsent(t *testing.T) {
	rec := &commandRecorder{results: map[string]error{
		"pidof": fmt.Errorf("no such process"),
	}}
	s := newTestSupervisor(rec)

	s.StartSerialRelay(context.Background(), 5555, "/dev/ttyS2")

	rec.waitFor(t, "/bin/sh")
}

func TestStartSSHDaemon_LaunchFailureIsAbsorbed(t *testing.T) {
	rec := &commandRecorder{results: map[string]error{
		sshInitScript: fmt.Errorf("exit status 1"),
	}}
	s := newTestSupervisor(rec)

	// Must not panic or block the caller; the failure is logged only.
	s.StartSSHDaemon(context.Background(), 22)
	rec.waitFor(t, sshInitScript)
}

func TestAwaitReady(t *testing.T) {
	s := newTestSupervisor(&commandRecorder{})

	t.Run("immediate success", func(t *testing.T) {
		err := s.awaitReady(context.Background(), func() error { return nil })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("success after retries", func(t *testing.T) {
		calls := 0
		err := s.awaitReady(context.Background(), func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("not yet")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := s.awaitReady(ctx, func() error { return fmt.Errorf("never ready") })
		if err == nil {
			t.Fatal("expected an error")
		}
	})
}
