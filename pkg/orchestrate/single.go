// Package orchestrate drives the pure policy/window core against wall-clock
// time. Single is the one-workload real-time loop (§4.6); Multi composes
// many of them under a shared clock and a capacity admission check (§4.7).
package orchestrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cgroupgov/pkg/observe"
	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/trace"
	"cgroupgov/pkg/window"
	"cgroupgov/pkg/workload"
)

// QuotaWriter is the kernel binding's write side, narrowed to what the
// orchestrator needs. kernel.WriteQuota satisfies it.
type QuotaWriter func(cgroupPath string, quotaUS *int64, periodUS int64) error

// DecisionObserver is notified once per processed window, after the trace
// record has been emitted, with the same policy.Record the trace sink saw.
// Single and Multi both accept one via SetDecisionObserver; the metrics
// exporter is the production implementation.
type DecisionObserver func(id workload.ID, record policy.Record)

// Single is the wall-clock driven orchestrator for one workload (§4.6). It
// owns the cgroup path, budget, window orchestrator, observer, trace sink,
// and the last decision record.
type Single struct {
	id         workload.ID
	cgroupPath string
	windowUS   int64

	observer *observe.Observer
	win      *window.Orchestrator
	write    QuotaWriter
	clock    Clock
	logger   *zap.Logger
	tracer   *trace.Emitter

	decisionObserver DecisionObserver
	windowIndex      int64

	lastRecord *policy.Record
}

// NewSingle constructs a Single orchestrator for one workload.
func NewSingle(
	id workload.ID,
	cgroupPath string,
	budgetUS, windowUS int64,
	source observe.Source,
	write QuotaWriter,
	clock Clock,
	logger *zap.Logger,
	tracer *trace.Emitter,
) (*Single, error) {
	win, err := window.New(budgetUS, windowUS)
	if err != nil {
		return nil, err
	}

	if clock == nil {
		clock = RealClock{}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Single{
		id:         id,
		cgroupPath: cgroupPath,
		windowUS:   windowUS,
		observer:   observe.New(source),
		win:        win,
		write:      write,
		clock:      clock,
		logger:     logger,
		tracer:     tracer,
	}, nil
}

// RunLoop runs the control loop (§4.6). If maxWindows is non-nil, the loop
// terminates after exactly that many windows; otherwise it runs until ctx
// is cancelled. A kernel I/O failure aborts the run (§7: no retry).
func (s *Single) RunLoop(ctx context.Context, maxWindows *int) error {
	if err := s.observer.Init(); err != nil {
		return fmt.Errorf("orchestrate: init observer for %s: %w", s.id, err)
	}

	windowDuration := time.Duration(s.windowUS) * time.Microsecond
	nextWake := s.clock.Now().Add(windowDuration)

	windowsProcessed := 0

	for maxWindows == nil || windowsProcessed < *maxWindows {
		if err := s.clock.SleepUntil(ctx, nextWake); err != nil {
			return fmt.Errorf("orchestrate: %s: %w", s.id, err)
		}

		now := s.clock.Now()

		drift := now.Sub(nextWake)
		if drift > windowDuration {
			s.logger.Warn("major drift detected",
				zap.String("workload_id", s.id.String()),
				zap.Duration("drift", drift),
				zap.Duration("window", windowDuration),
			)
		}

		if err := s.processWindow(); err != nil {
			return err
		}

		windowsProcessed++
		nextWake = nextWake.Add(windowDuration)

		// Anti-spin (§5, T3): if sleep overshot by more than one window,
		// skip the missed windows without evaluating them; their usage is
		// absorbed into the next real measurement's delta.
		if nextWake.Before(s.clock.Now()) {
			lag := s.clock.Now().Sub(nextWake)
			missed := int64(lag/windowDuration) + 1

			s.logger.Warn("skipping missed windows",
				zap.String("workload_id", s.id.String()),
				zap.Int64("missed", missed),
			)

			nextWake = nextWake.Add(time.Duration(missed) * windowDuration)
		}
	}

	return nil
}

func (s *Single) processWindow() error {
	usage, err := s.observer.Measure()
	if err != nil {
		return fmt.Errorf("orchestrate: %s: measure: %w", s.id, err)
	}

	_, decision, record, err := s.win.Advance(usage)
	if err != nil {
		return fmt.Errorf("orchestrate: %s: advance: %w", s.id, err)
	}

	windowIndex := s.windowIndex
	record.WindowIndex = &windowIndex
	s.windowIndex++

	recordCopy := record
	s.lastRecord = &recordCopy

	if s.tracer != nil {
		s.tracer.Emit(s.id, record)
	}

	if s.decisionObserver != nil {
		s.decisionObserver(s.id, record)
	}

	quota := decision.TwUS
	if err := s.write(s.cgroupPath, &quota, s.windowUS); err != nil {
		return fmt.Errorf("orchestrate: %s: write quota: %w", s.id, err)
	}

	return nil
}

// Status returns the current policy state and the last decision record, or
// nil if no window has been processed yet.
func (s *Single) Status() (policy.State, *policy.Record) {
	return s.win.State(), s.lastRecord
}

// SetDecisionObserver registers fn to be called once per processed window.
// It is optional; a nil observer (the default) disables the callback.
func (s *Single) SetDecisionObserver(fn DecisionObserver) {
	s.decisionObserver = fn
}
