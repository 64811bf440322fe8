package collect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
)

// LoopTask runs one loop pass and reports how many objects it produced,
// the shape the Loop Manager needs without depending on TaskConfig's
// full producer/registry wiring directly.
type LoopTask func(ctx context.Context, rc *collect.RunContext, passNumber int) (objectsProcessed int, err error)

// LoopManager repeats LoopTask at LoopInterval until RunContext.LoopEnd
// passes or cancellation is requested, recording a LoopCheckpoint after
// every pass (spec.md §4.7, C7). Grounded on the teacher's checkpoint
// update cadence in the enumeration session loop, generalized from a
// single long scan to a bounded-duration repeating collection.
type LoopManager struct {
	Store   CheckpointStore
	Log     *logger.Logger
	Metrics *metrics.Collector
	Tracer  trace.Tracer

	timer *time.Timer
}

// NewLoopManager constructs a LoopManager backed by store for
// checkpoint persistence.
func NewLoopManager(store CheckpointStore, log *logger.Logger, tracer trace.Tracer) *LoopManager {
	return &LoopManager{Store: store, Log: newProducerLogger(log), Tracer: newComponentTracer(tracer)}
}

// StartLoopTimer arms the one-shot deadline timer and sets rc.LoopEnd.
// When it fires, it requests cancellation — immediate if the base run
// never completed (InitialCompleted is false, so there's nothing a
// loop pass could be midway through that's worth letting finish),
// deferred otherwise so the in-flight pass gets to reach its next safe
// point (spec.md §4.7's distinction).
func (m *LoopManager) StartLoopTimer(rc *collect.RunContext) {
	rc.LoopEnd = time.Now().Add(rc.LoopDuration)
	m.timer = time.AfterFunc(rc.LoopDuration, func() {
		rc.RequestCancellation(!rc.InitialCompleted)
	})
}

// DisposeTimer stops the deadline timer, guaranteed to run on every exit
// path out of StartLoop regardless of how the loop ended.
func (m *LoopManager) DisposeTimer() {
	if m.timer != nil {
		m.timer.Stop()
	}
}

// StartLoop repeats task at rc.LoopInterval until rc.LoopEnd passes, the
// run is faulted, or cancellation is observed, persisting a
// LoopCheckpoint after every pass.
func (m *LoopManager) StartLoop(ctx context.Context, rc *collect.RunContext, task LoopTask) error {
	defer m.DisposeTimer()
	ctx, span := telemetry.StartSpan(ctx, m.Tracer, "loop.run")
	defer span.End()

	runID := uuid.New()
	state := NewLoopState(runID)
	state.UpdateStatus(LoopStatusInProgress)

	pass := 0
	for {
		if rc.IsFaulted() || rc.NeedsCancellation() || time.Now().After(rc.LoopEnd) {
			break
		}

		pass++
		m.Log.Info(ctx, "starting loop pass", "pass", pass)

		passCtx, passSpan := telemetry.StartSpan(ctx, m.Tracer, "loop.pass")
		processed, err := task(passCtx, rc, pass)
		passSpan.End()
		if err != nil {
			m.Log.Error(ctx, "loop pass failed", "pass", pass, "error", err.Error())
			rc.Fault(err.Error())
			state.UpdateStatus(LoopStatusFaulted)
			break
		}

		if m.Metrics != nil {
			m.Metrics.LoopPasses.Inc()
		}

		cp := NewTemporaryLoopCheckpoint(runID, pass, processed)
		state.UpdateCheckpoint(cp)
		if m.Store != nil {
			if err := m.Store.Save(ctx, state); err != nil {
				m.Log.Warn(ctx, "saving loop checkpoint failed", "pass", pass, "error", err.Error())
			}
		}

		if rc.IsFaulted() || rc.NeedsCancellation() {
			break
		}

		if !m.sleep(ctx, rc) {
			break
		}
	}

	if state.Status == LoopStatusInProgress {
		state.UpdateStatus(LoopStatusCompleted)
	}
	if m.Store != nil {
		if err := m.Store.Save(ctx, state); err != nil {
			m.Log.Warn(ctx, "saving final loop state failed", "error", err.Error())
		}
	}

	return nil
}

// sleep waits rc.LoopInterval, interruptible by context cancellation or
// a deferred-cancellation request observed early, matching the
// producer/worker two-signal model used everywhere else in the run.
func (m *LoopManager) sleep(ctx context.Context, rc *collect.RunContext) bool {
	if rc.NeedsCancellation() {
		return false
	}

	timer := time.NewTimer(rc.LoopInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
