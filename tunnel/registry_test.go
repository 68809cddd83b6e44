package tunnel

import (
	"context"
	"testing"

	"tunneld/util"
)

// fakeSession counts Stop calls and remembers its handle.
type fakeSession struct {
	id      ID
	stopped int
}

func (s *fakeSession) ID() ID                          { return s.id }
func (s *fakeSession) Connect(_ context.Context) error { return nil }
func (s *fakeSession) Stop()                           { s.stopped++ }

func newTestRegistry() *Registry {
	return NewRegistry(util.NewLogger(0))
}

func add(r *Registry, o Origin) *fakeSession {
	s := &fakeSession{id: r.Allocate()}
	r.Add(s, o)
	return s
}

func TestRegistry_AllocateIsMonotonic(t *testing.T) {
	r := newTestRegistry()
	prev := r.Allocate()
	for i := 0; i < 100; i++ {
		id := r.Allocate()
		if id <= prev {
			t.Fatalf("handle %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestRegistry_IsDuplicate(t *testing.T) {
	r := newTestRegistry()
	o := Origin{AccessToken: "tok", Region: "us-east-1", Service: "SSH"}
	add(r, o)

	tests := []struct {
		name string
		o    Origin
		want bool
	}{
		{"same triple", Origin{"tok", "us-east-1", "SSH"}, true},
		{"different token", Origin{"tok2", "us-east-1", "SSH"}, false},
		{"different region", Origin{"tok", "eu-west-1", "SSH"}, false},
		{"different service", Origin{"tok", "us-east-1", "GW"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsDuplicate(tt.o); got != tt.want {
				t.Errorf("IsDuplicate(%+v) = %v, want %v", tt.o, got, tt.want)
			}
		})
	}
}

func TestRegistry_RemoveExactlyOne(t *testing.T) {
	r := newTestRegistry()
	// Two sessions may share resolved parameters; removal must be by
	// handle, never by value.
	o1 := Origin{AccessToken: "a", Region: "us-east-1", Service: "SSH"}
	o2 := Origin{AccessToken: "b", Region: "us-east-1", Service: "SSH"}
	s1 := add(r, o1)
	s2 := add(r, o2)

	r.Remove(s1.ID())

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	if r.IsDuplicate(o1) {
		t.Error("removed session still detected as duplicate")
	}
	if !r.IsDuplicate(o2) {
		t.Error("surviving session no longer detected as duplicate")
	}
	_ = s2
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := newTestRegistry()
	s := add(r, Origin{AccessToken: "tok", Region: "us-east-1", Service: "SSH"})

	r.Remove(s.ID() + 100)
	r.Remove(s.ID())
	r.Remove(s.ID()) // second removal of the same handle

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

// A close callback can outrun registration: Remove of a handle that is
// still pending marks it dead so the racing Add discards the session.
func TestRegistry_CloseBeforeAddDiscards(t *testing.T) {
	r := newTestRegistry()
	o := Origin{AccessToken: "tok", Region: "us-east-1", Service: "SSH"}
	s := &fakeSession{id: r.Allocate()}

	r.Remove(s.ID())

	if r.Add(s, o) {
		t.Fatal("Add registered a session whose close callback already fired")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if r.IsDuplicate(o) {
		t.Error("dead session still suppresses its origin as a duplicate")
	}

	// The handle stays usable as a tombstone only once; a fresh
	// allocation registers normally.
	s2 := add(r, o)
	if r.Len() != 1 || !r.IsDuplicate(o) {
		t.Errorf("fresh session not registered, Len = %d", r.Len())
	}
	_ = s2
}

func TestRegistry_StopAll(t *testing.T) {
	r := newTestRegistry()
	s1 := add(r, Origin{AccessToken: "a", Region: "us-east-1", Service: "SSH"})
	s2 := add(r, Origin{AccessToken: "b", Region: "us-east-1", Service: "GW"})

	r.StopAll()

	if s1.stopped != 1 || s2.stopped != 1 {
		t.Errorf("stop counts = %d, %d; want 1, 1", s1.stopped, s2.stopped)
	}
	// StopAll does not wait: entries leave via their close callbacks,
	// not here.
	if r.Len() != 2 {
		t.Errorf("Len = %d after StopAll, want 2", r.Len())
	}
}

// A session whose Stop fires the close callback synchronously must not
// deadlock StopAll.
func TestRegistry_StopAllWithSynchronousCallback(t *testing.T) {
	r := newTestRegistry()
	id := r.Allocate()
	s := &callbackSession{id: id, onStop: func() { r.Remove(id) }}
	r.Add(s, Origin{AccessToken: "tok", Region: "us-east-1", Service: "SSH"})

	r.StopAll()

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

type callbackSession struct {
	id     ID
	onStop func()
}

func (s *callbackSession) ID() ID                          { return s.id }
func (s *callbackSession) Connect(_ context.Context) error { return nil }
func (s *callbackSession) Stop()                           { s.onStop() }
