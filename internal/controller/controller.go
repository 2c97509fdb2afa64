// Package controller supervises the trading workers and exposes the control
// surface used by the CLI and any reporting layer.
package controller

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

// DefaultStopTimeout bounds the wait for a worker to return after stop.
const DefaultStopTimeout = 5 * time.Second

// Worker is a long-running unit. Run blocks until ctx is done or the worker fails.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Factory builds a fresh worker instance for every start.
type Factory func() Worker

// ComponentStatus describes one supervised worker.
type ComponentStatus struct {
	Running   bool      `yaml:"running" json:"running"`
	Status    string    `yaml:"status" json:"status"`
	StartedAt time.Time `yaml:"started_at" json:"started_at"`
	Restarts  int       `yaml:"restarts" json:"restarts"`
	LastError string    `yaml:"last_error,omitempty" json:"last_error,omitempty"`
}

type unit struct {
	name      string
	factory   Factory
	worker    Worker
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	starts    int
	lastErr   error
}

func (u *unit) alive() bool {
	if u.done == nil {
		return false
	}

	select {
	case <-u.done:
		return false
	default:
		return true
	}
}

// Supervisor starts, stops and restarts registered workers independently.
type Supervisor struct {
	mu          sync.Mutex
	order       []string
	units       map[string]*unit
	stopTimeout time.Duration
	logger      *logger.Logger
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(stopTimeout time.Duration, log *logger.Logger) *Supervisor {
	if log == nil {
		log = logger.NewNop()
	}

	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	return &Supervisor{
		mu:          sync.Mutex{},
		order:       make([]string, 0),
		units:       make(map[string]*unit),
		stopTimeout: stopTimeout,
		logger:      log.Named("supervisor"),
	}
}

// Register adds a worker factory under name. Names are unique.
func (s *Supervisor) Register(name string, factory Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.units[name]; exists {
		return errors.Newf(errors.ErrCodeInvalidParameter, "component %s already registered", name)
	}

	s.units[name] = &unit{name: name, factory: factory}
	s.order = append(s.order, name)

	return nil
}

// Names returns the registered component names in registration order.
func (s *Supervisor) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

// StartAll starts every registered worker that is not running.
func (s *Supervisor) StartAll(ctx context.Context) error {
	for _, name := range s.Names() {
		if err := s.Start(ctx, name); err != nil && !errors.HasCode(err, errors.ErrCodeComponentRunning) {
			return err
		}
	}

	return nil
}

// Start builds a fresh instance of the named worker and runs it in its own goroutine.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[name]
	if !ok {
		return errors.Newf(errors.ErrCodeComponentNotFound, "unknown component: %s", name)
	}

	if u.alive() {
		return errors.Newf(errors.ErrCodeComponentRunning, "component %s is already running", name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	worker := u.factory()
	done := make(chan struct{})

	u.worker = worker
	u.cancel = cancel
	u.done = done
	u.startedAt = time.Now().UTC()
	u.starts++
	u.lastErr = nil

	go s.run(runCtx, u, worker, done)

	s.logger.Info("Component started", zap.String("component", name))

	return nil
}

func (s *Supervisor) run(ctx context.Context, u *unit, worker Worker, done chan struct{}) {
	var err error

	defer close(done)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeComponentPanicked, "component %s panicked: %v", u.name, r)
			s.logger.Error("Component panicked",
				zap.String("component", u.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}

		if err != nil {
			s.mu.Lock()
			u.lastErr = err
			s.mu.Unlock()
		}
	}()

	err = worker.Run(ctx)
	if err != nil {
		s.logger.Error("Component exited with error", zap.String("component", u.name), zap.Error(err))
	}
}

// Stop cancels the named worker and waits up to the stop timeout. A worker that
// does not return in time is logged and left to finish on its own.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	u, ok := s.units[name]

	if !ok {
		s.mu.Unlock()

		return errors.Newf(errors.ErrCodeComponentNotFound, "unknown component: %s", name)
	}

	cancel, done := u.cancel, u.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		s.logger.Info("Component stopped", zap.String("component", name))

		return nil
	case <-time.After(s.stopTimeout):
		s.logger.Warn("Component did not stop gracefully",
			zap.String("component", name),
			zap.Duration("timeout", s.stopTimeout),
		)

		return errors.Newf(errors.ErrCodeComponentStopTimeout, "component %s did not stop within %s", name, s.stopTimeout)
	}
}

// StopAll stops every worker in reverse registration order. Workers are
// stopped concurrently so the total wait is bounded by one stop timeout.
func (s *Supervisor) StopAll() error {
	names := s.Names()
	errs := make([]error, len(names))

	var wg sync.WaitGroup

	for i := len(names) - 1; i >= 0; i-- {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			errs[i] = s.Stop(names[i])
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// Restart stops the named worker and starts a fresh instance under the same
// name. Sibling workers are not touched.
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	s.logger.Info("Restarting component", zap.String("component", name))

	if err := s.Stop(name); err != nil && !errors.HasCode(err, errors.ErrCodeComponentStopTimeout) {
		return err
	}

	s.mu.Lock()
	if u, ok := s.units[name]; ok && u.alive() {
		// The old instance is still draining; start the new one regardless.
		u.done = nil
	}
	s.mu.Unlock()

	return s.Start(ctx, name)
}

// Worker returns the most recent instance of the named worker.
func (s *Supervisor) Worker(name string) (Worker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.units[name]
	if !ok || u.worker == nil {
		return nil, false
	}

	return u.worker, true
}

// Status reports every worker without waiting on any of them.
func (s *Supervisor) Status() map[string]ComponentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ComponentStatus, len(s.units))

	for name, u := range s.units {
		running := u.alive()
		status := ComponentStatus{
			Running:   running,
			Status:    "stopped",
			StartedAt: u.startedAt,
			Restarts:  max(u.starts-1, 0),
			LastError: "",
		}

		if running {
			status.Status = "active"
		}

		if u.lastErr != nil {
			status.LastError = u.lastErr.Error()
		}

		out[name] = status
	}

	return out
}
