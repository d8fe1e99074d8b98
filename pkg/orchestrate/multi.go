package orchestrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"cgroupgov/pkg/observe"
	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/store"
	"cgroupgov/pkg/trace"
	"cgroupgov/pkg/window"
	"cgroupgov/pkg/workload"
)

// workloadEntry is the registration entry the Multi orchestrator exclusively
// owns per workload. The entry's window orchestrator holds the policy state
// that drives evaluation; the policy store (below) receives a copy of that
// state and the last record after every window, and Status reads from the
// store. The store is therefore not the only holder of a workload's state.
type workloadEntry struct {
	cgroupPath string
	budgetUS   int64
	observer   *observe.Observer
	win        *window.Orchestrator
}

// Multi is the multi-workload orchestrator (§4.7): registration with
// capacity admission, a single global clock, and strict per-workload
// isolation — the per-workload step reads and writes only that workload's
// own (observer, state, budget, cgroup_path).
type Multi struct {
	capacityUS int64
	windowUS   int64

	write  QuotaWriter
	clock  Clock
	logger *zap.Logger
	tracer *trace.Emitter

	store *store.Store

	order        []workload.ID
	entries      map[workload.ID]*workloadEntry
	totalBudgets int64

	globalWindowIndex int64

	decisionObserver DecisionObserver
}

// NewMulti constructs a Multi orchestrator with the given capacity (C1) and
// global window size, both immutable for its lifetime (T1).
func NewMulti(
	capacityUS, windowUS int64,
	write QuotaWriter,
	clock Clock,
	logger *zap.Logger,
	tracer *trace.Emitter,
) (*Multi, error) {
	if capacityUS <= 0 {
		return nil, fmt.Errorf("%w: capacity_us=%d", policy.ErrInvalidInput, capacityUS)
	}

	if windowUS <= 0 {
		return nil, fmt.Errorf("%w: window_us=%d", policy.ErrInvalidInput, windowUS)
	}

	if clock == nil {
		clock = RealClock{}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Multi{
		capacityUS: capacityUS,
		windowUS:   windowUS,
		write:      write,
		clock:      clock,
		logger:     logger,
		tracer:     tracer,
		store:      store.New(),
		entries:    make(map[workload.ID]*workloadEntry),
	}, nil
}

// Register admits a new workload, rejecting duplicate ids and any
// registration that would push the sum of budgets above capacity (C1).
// Iteration order is kept sorted by id for deterministic debugging; the
// isolation contract (I3) guarantees semantics never depend on that order.
func (m *Multi) Register(id workload.ID, cgroupPath string, budgetUS int64, source observe.Source) error {
	if _, exists := m.entries[id]; exists {
		return fmt.Errorf("%w: duplicate workload id %q", policy.ErrInvalidInput, id)
	}

	if budgetUS <= 0 {
		return fmt.Errorf("%w: budget_us=%d", policy.ErrInvalidInput, budgetUS)
	}

	if m.totalBudgets+budgetUS > m.capacityUS {
		return fmt.Errorf(
			"%w: capacity exceeded: %d > %d",
			policy.ErrInvalidInput, m.totalBudgets+budgetUS, m.capacityUS,
		)
	}

	win, err := window.New(budgetUS, m.windowUS)
	if err != nil {
		return err
	}

	m.entries[id] = &workloadEntry{
		cgroupPath: cgroupPath,
		budgetUS:   budgetUS,
		observer:   observe.New(source),
		win:        win,
	}
	m.totalBudgets += budgetUS
	m.store.Reset(id)

	m.order = append(m.order, id)
	sort.Slice(m.order, func(i, j int) bool { return m.order[i].Less(m.order[j]) })

	m.logger.Info("registered workload",
		zap.String("workload_id", id.String()),
		zap.Int64("budget_us", budgetUS),
	)

	return nil
}

// RunLoop drives the shared global clock (§4.7): at each window boundary,
// every registered workload is processed independently against its own
// observer, state, budget, and cgroup path.
func (m *Multi) RunLoop(ctx context.Context, maxWindows *int) error {
	for _, id := range m.order {
		if err := m.entries[id].observer.Init(); err != nil {
			return fmt.Errorf("orchestrate: init observer for %s: %w", id, err)
		}
	}

	windowDuration := time.Duration(m.windowUS) * time.Microsecond
	nextWake := m.clock.Now().Add(windowDuration)

	windowsProcessed := 0

	for maxWindows == nil || windowsProcessed < *maxWindows {
		if err := m.clock.SleepUntil(ctx, nextWake); err != nil {
			return fmt.Errorf("orchestrate: multi: %w", err)
		}

		now := m.clock.Now()

		drift := now.Sub(nextWake)
		if drift > windowDuration {
			m.logger.Warn("major drift detected", zap.Duration("drift", drift), zap.Duration("window", windowDuration))
		}

		for _, id := range m.order {
			if err := m.processWorkload(id); err != nil {
				return err
			}
		}

		m.globalWindowIndex++
		windowsProcessed++
		nextWake = nextWake.Add(windowDuration)

		if nextWake.Before(m.clock.Now()) {
			lag := m.clock.Now().Sub(nextWake)
			missed := int64(lag/windowDuration) + 1

			m.logger.Warn("skipping missed windows", zap.Int64("missed", missed))

			nextWake = nextWake.Add(time.Duration(missed) * windowDuration)
		}
	}

	return nil
}

// processWorkload performs the per-workload step (§4.6 c-f) against exactly
// one workload's own data; it never reads or writes any other workload's
// entry (I3).
func (m *Multi) processWorkload(id workload.ID) error {
	entry := m.entries[id]

	usage, err := entry.observer.Measure()
	if err != nil {
		return fmt.Errorf("orchestrate: %s: measure: %w", id, err)
	}

	nextState, decision, record, err := entry.win.Advance(usage)
	if err != nil {
		return fmt.Errorf("orchestrate: %s: advance: %w", id, err)
	}

	globalIndex := m.globalWindowIndex
	record.WindowIndex = &globalIndex
	m.store.SetDecision(id, nextState, record)

	if m.tracer != nil {
		m.tracer.Emit(id, record)
	}

	if m.decisionObserver != nil {
		m.decisionObserver(id, record)
	}

	quota := decision.TwUS
	if err := m.write(entry.cgroupPath, &quota, m.windowUS); err != nil {
		return fmt.Errorf("orchestrate: %s: write quota: %w", id, err)
	}

	return nil
}

// Status returns the current policy state and last decision record for a
// registered workload, or false if it is not registered.
func (m *Multi) Status(id workload.ID) (policy.State, *policy.Record, bool) {
	if _, ok := m.entries[id]; !ok {
		return policy.State{}, nil, false
	}

	return m.store.GetState(id), m.store.GetLastRecord(id), true
}

// GlobalWindowIndex returns the number of global windows processed so far.
func (m *Multi) GlobalWindowIndex() int64 { return m.globalWindowIndex }

// TotalBudgetUS returns the current sum of registered workload budgets.
func (m *Multi) TotalBudgetUS() int64 { return m.totalBudgets }

// Workloads returns the registered workload ids in deterministic order.
func (m *Multi) Workloads() []workload.ID {
	out := make([]workload.ID, len(m.order))
	copy(out, m.order)

	return out
}

// SetDecisionObserver registers fn to be called once per workload per
// processed window. It is optional; a nil observer (the default) disables
// the callback.
func (m *Multi) SetDecisionObserver(fn DecisionObserver) {
	m.decisionObserver = fn
}
