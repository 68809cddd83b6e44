// Package localsvc launches the auxiliary local OS services a tunnel
// destination may need: the SSH daemon for shell-service tunnels and a
// netcat relay bridging the serial bus device.
//
// Everything here is best-effort and fire-and-forget.  Launches run on
// their own goroutines, readiness is checked once within a bounded
// wait, and failures are logged — they never block or fail the tunnel
// session that triggered them.
package localsvc

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"tunneld/util"
)

const (
	sshInitScript  = "/etc/init.d/dropbear"
	readinessWait  = 5 * time.Second
	probeInterval  = 250 * time.Millisecond
	relayLocalHost = "127.0.0.1"
)

// Supervisor launches and verifies local services.
type Supervisor struct {
	log *util.Logger

	// Run executes one command to completion.  Defaults to the system
	// shell; swappable in tests.
	Run func(ctx context.Context, name string, args ...string) error
}

// NewSupervisor returns a Supervisor using the system shell.
func NewSupervisor(log *util.Logger) *Supervisor {
	return &Supervisor{log: log, Run: runShell}
}

func runShell(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// StartSSHDaemon starts the local SSH daemon in the background and
// verifies it within a bounded wait.  Outcomes are logged only.
func (s *Supervisor) StartSSHDaemon(ctx context.Context, port int) {
	go func() {
		if err := s.Run(ctx, sshInitScript, "start"); err != nil {
			s.log.Error("ssh daemon start failed: %v", err)
			return
		}
		s.log.Debug("ssh daemon start requested")

		if err := s.awaitReady(ctx, func() error { return probeSSH(port) }); err != nil {
			s.log.Error("ssh daemon not verifiable: %v", err)
			return
		}
		s.log.Debug("ssh daemon is up")
	}()
}

// StartSerialRelay ensures a netcat listener is bridging the serial
// device on the given port, launching one when none is running.  The
// relay is an external process on purpose: it must outlive individual
// tunnel sessions and costs nothing when idle.
func (s *Supervisor) StartSerialRelay(ctx context.Context, port int, device string) {
	go func() {
		if err := s.Run(ctx, "pidof", "nc"); err == nil {
			s.log.Debug("serial relay already running")
			return
		}

		s.log.Debug("starting serial relay on port %d for %s", port, device)
		relay := fmt.Sprintf("nc -l -p %d > %s < %s", port, device, device)
		go func() {
			// Runs for as long as the relay is needed; exit is not an
			// error from the supervisor's point of view.
			_ = s.Run(context.WithoutCancel(ctx), "/bin/sh", "-c", relay)
		}()

		if err := s.awaitReady(ctx, func() error { return probeTCP(relayLocalHost, port) }); err != nil {
			s.log.Error("serial relay not verifiable: %v", err)
			return
		}
		s.log.Debug("serial relay is up")
	}()
}

// awaitReady polls check until it succeeds, the wait budget runs out,
// or ctx is cancelled.
func (s *Supervisor) awaitReady(ctx context.Context, check func() error) error {
	deadline := time.NewTimer(readinessWait)
	defer deadline.Stop()
	tick := time.NewTicker(probeInterval)
	defer tick.Stop()

	var last error
	for {
		if last = check(); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("not ready after %s: %w", readinessWait, last)
		case <-tick.C:
		}
	}
}
