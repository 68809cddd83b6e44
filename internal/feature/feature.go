// Package feature implements the secure-tunnel control plane: it
// receives tunnel-open notifications, validates and de-duplicates
// them, resolves the requested service, and supervises the registry of
// active tunnel sessions.
package feature

import (
	"context"
	"sync"
	"time"

	"tunneld/config"
	"tunneld/internal/errors"
	"tunneld/internal/localsvc"
	"tunneld/internal/metrics"
	"tunneld/internal/notify"
	"tunneld/internal/resolver"
	"tunneld/internal/retry"
	"tunneld/tunnel"
	"tunneld/util"
)

// State is the feature lifecycle state.
type State int

const (
	// StateIdle is the initial state after Init.
	StateIdle State = iota
	// StateRunning means the feature is serving notifications or a
	// static session.
	StateRunning
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Feature is the top-level tunnel orchestrator.
type Feature struct {
	cfg        *config.Config
	log        *util.Logger
	validator  *notify.Validator
	registry   *tunnel.Registry
	channel    notify.Channel
	factory    tunnel.Factory
	supervisor *localsvc.Supervisor

	mu     sync.Mutex
	state  State
	runCtx context.Context
	cancel context.CancelFunc

	// handleMu serializes notification handling end to end, so a
	// duplicate check and the registration it guards cannot interleave
	// with another delivery of the same request.
	handleMu sync.Mutex

	staticParams *tunnel.Params
	staticOrigin tunnel.Origin

	backoff *retry.Backoff
	errCh   chan error
}

// New wires a Feature.  The channel may be nil in static mode; the
// factory builds sessions and is injectable for tests (see
// DefaultFactory for the production one).
func New(cfg *config.Config, log *util.Logger, channel notify.Channel, factory tunnel.Factory) *Feature {
	r := resolver.New(cfg, log)
	f := &Feature{
		cfg:        cfg,
		log:        log,
		validator:  notify.NewValidator(r),
		registry:   tunnel.NewRegistry(log),
		channel:    channel,
		factory:    factory,
		supervisor: localsvc.NewSupervisor(log),
		errCh:      make(chan error, 1),
	}
	f.backoff = &retry.Backoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
		OnRetry: func(attempt int, err error) {
			metrics.SubscribeRetriesTotal.Inc()
			f.log.Warn("notification subscribe attempt %d failed: %v", attempt, err)
		},
	}
	f.init()
	return f
}

// DefaultFactory builds websocket-backed sessions from config.
func DefaultFactory(cfg *config.Config, log *util.Logger) tunnel.Factory {
	return func(id tunnel.ID, p tunnel.Params) tunnel.Session {
		return tunnel.NewWSSession(id, p, tunnel.WSConfig{
			RootCA:  cfg.RootCA,
			Timeout: cfg.ConnectTimeout,
			Logger:  log,
		})
	}
}

// init stages the static session when notification mode is off.  The
// static tuple was validated with the rest of the config, so no
// notification-style checks apply here.
func (f *Feature) init() {
	if f.cfg.SubscribeNotification {
		return
	}
	p := tunnel.NewParams(f.cfg, f.cfg.StaticAccessToken, f.cfg.StaticRegion,
		f.cfg.StaticAddress, f.cfg.StaticPort)
	f.staticParams = &p
	f.staticOrigin = tunnel.Origin{
		AccessToken: f.cfg.StaticAccessToken,
		Region:      f.cfg.StaticRegion,
	}
}

// Start transitions Idle → Running.  In static mode it connects the
// staged session and registers it unconditionally — static mode is a
// direct operator request, so even a failed connect is kept visible in
// the registry.  In notification mode it subscribes to the channel and
// serves notifications until Stop.
func (f *Feature) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return errors.New("feature already started")
	}
	f.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	f.runCtx = runCtx
	f.cancel = cancel
	f.mu.Unlock()

	f.log.Info("running tunnel feature (subscribe=%v)", f.cfg.SubscribeNotification)

	if f.staticParams != nil {
		f.startStatic(runCtx)
		return nil
	}

	go f.subscribe(runCtx)
	return nil
}

// Stop transitions to Stopped, requests every session to stop, and
// returns without waiting: actual cleanup completes asynchronously
// through each session's close callback.
func (f *Feature) Stop() {
	f.mu.Lock()
	if f.state == StateStopped {
		f.mu.Unlock()
		return
	}
	f.state = StateStopped
	cancel := f.cancel
	f.mu.Unlock()

	f.log.Debug("stopping tunnel feature")
	if cancel != nil {
		cancel()
	}
	f.registry.StopAll()
}

// State returns the current lifecycle state.
func (f *Feature) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Registry exposes the session registry (read-mostly; used by tests
// and status reporting).
func (f *Feature) Registry() *tunnel.Registry { return f.registry }

// Err reports a terminal feature failure, currently only an exhausted
// subscription retry budget.  The channel is buffered; at most one
// error is ever sent.
func (f *Feature) Err() <-chan error { return f.errCh }

// ── static mode ──────────────────────────────────────────────────────

func (f *Feature) startStatic(ctx context.Context) {
	p := *f.staticParams
	id := f.registry.Allocate()
	p.OnClosed = f.onSessionClosed

	sess := f.factory(id, p)
	if err := sess.Connect(ctx); err != nil {
		f.log.Error("static tunnel connect failed: %v", err)
		metrics.ConnectFailuresTotal.Inc()
	}
	if !f.registry.Add(sess, f.staticOrigin) {
		f.log.Warn("static tunnel session %d ended before it could be registered", id)
		return
	}
	f.log.Info("static tunnel session %d registered for %s:%d",
		id, p.DestinationAddress, p.DestinationPort)
}

// ── notification mode ────────────────────────────────────────────────

// subscribe establishes the notification subscription, retrying with
// exponential backoff.  The original design only logged a failed
// subscribe; here an exhausted budget is also surfaced on Err so the
// process wiring can decide to bail out.
func (f *Feature) subscribe(ctx context.Context) {
	err := f.backoff.Do(ctx, func(int) error {
		return f.channel.Subscribe(ctx, f.cfg.ThingName, f.HandleNotification)
	})
	if err != nil {
		f.log.Error("could not subscribe to tunnel notifications: %v", err)
		select {
		case f.errCh <- err:
		default:
		}
		return
	}
	f.log.Info("subscribed to tunnel notifications for %s", f.cfg.ThingName)
}

// HandleNotification runs one notification through the admission
// pipeline and, on success, creates and registers a session.  Invoked
// on the channel's delivery goroutine; serialized so the duplicate
// check and the registration it protects are atomic with respect to
// other deliveries.
func (f *Feature) HandleNotification(n notify.Notification) {
	f.handleMu.Lock()
	defer f.handleMu.Unlock()

	f.mu.Lock()
	running := f.state == StateRunning
	ctx := f.runCtx
	f.mu.Unlock()
	if !running {
		f.log.Debug("dropping notification received while %s", f.State())
		return
	}

	f.log.Debug("received tunnel notification")

	res, err := f.validator.Validate(n)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		f.log.Error("%v", err)
		return
	}

	origin := tunnel.Origin{
		AccessToken: res.AccessToken,
		Region:      res.Region,
		Service:     res.Service,
	}
	if f.registry.IsDuplicate(origin) {
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		f.log.Info("received duplicate tunnel notification, ignoring")
		return
	}

	f.startLocalServices(ctx, res)

	f.log.Debug("region=%s service=%s destination=%s:%d",
		res.Region, res.Service, res.Address, res.Port)

	p := tunnel.NewParams(f.cfg, res.AccessToken, res.Region, res.Address, res.Port)
	p.OnClosed = f.onSessionClosed
	id := f.registry.Allocate()

	sess := f.factory(id, p)
	if err := sess.Connect(ctx); err != nil {
		// Discarded for good: no registration, no retry.  The handle is
		// released so the pending mark does not linger.
		f.registry.Remove(id)
		metrics.ConnectFailuresTotal.Inc()
		f.log.Error("tunnel connect failed for service %s: %v", res.Service, err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeAccepted).Inc()
	if !f.registry.Add(sess, origin) {
		// The session closed while Connect was still returning; its
		// close callback already consumed the handle.
		f.log.Info("tunnel session %d for service %s ended before it could be registered",
			id, res.Service)
	}
}

// startLocalServices fires the best-effort side effects a service
// needs; outcomes never gate the session.
func (f *Feature) startLocalServices(ctx context.Context, res *notify.Resolved) {
	switch {
	case resolver.BaseName(res.Service) == config.ServiceSSH:
		f.supervisor.StartSSHDaemon(ctx, res.Port)
	case res.Service == config.ServiceBusSerial:
		f.supervisor.StartSerialRelay(ctx, res.Port, f.cfg.RelayDevice)
	}
}

func (f *Feature) onSessionClosed(id tunnel.ID) {
	f.registry.Remove(id)
}
