package collect

import (
	"context"

	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/trace"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
)

// WorkerPool reads objects from a producer channel, dispatches each to
// the Processor registered for its kind, and forwards every resulting
// OutputRecord to an output channel (spec.md §4.4, C4). Grounded on the
// teacher's channel-plus-waitgroup worker loop
// (pkg/scanner/scanner.go:worker), upgraded to golang.org/x/sync/errgroup
// so a worker's unexpected panic-turned-error can be observed by the
// caller instead of silently logged and dropped.
type WorkerPool struct {
	Registry  collect.ProcessorRegistry
	Throttle  *Throttle
	Metrics   *metrics.Collector
	Log       *logger.Logger
	Tracer    trace.Tracer
	Workers   int
}

// NewWorkerPool builds a pool of max(1, workers) goroutines.
func NewWorkerPool(registry collect.ProcessorRegistry, throttle *Throttle, m *metrics.Collector, log *logger.Logger, tracer trace.Tracer, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{Registry: registry, Throttle: throttle, Metrics: m, Log: newProducerLogger(log), Tracer: newComponentTracer(tracer), Workers: workers}
}

// Run drains in until it closes or ctx is canceled, fanning out across
// Workers goroutines, and closes out once every worker has returned
// (spec.md §4.4's "output channel is closed only after every worker has
// returned").
func (wp *WorkerPool) Run(ctx context.Context, rc *collect.RunContext, in <-chan collect.DirectoryObject, out chan<- collect.OutputRecord) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < wp.Workers; i++ {
		g.Go(func() (err error) {
			defer recoverToFault(ctx, rc, wp.Log, "worker", &err)
			return wp.worker(ctx, rc, in, out)
		})
	}

	err := g.Wait()
	if err != nil && wp.Metrics != nil {
		wp.Metrics.WorkerErrors.Inc()
	}
	close(out)
	return err
}

func (wp *WorkerPool) worker(ctx context.Context, rc *collect.RunContext, in <-chan collect.DirectoryObject, out chan<- collect.OutputRecord) error {
	ctx, span := telemetry.StartSpan(ctx, wp.Tracer, "worker_pool.worker")
	defer span.End()

	if wp.Metrics != nil {
		wp.Metrics.ActiveWorkers.Inc()
		defer wp.Metrics.ActiveWorkers.Dec()
	}

	for {
		select {
		case obj, ok := <-in:
			if !ok {
				return nil
			}
			if wp.Metrics != nil {
				wp.Metrics.ObjectsProduced.Inc()
			}
			if err := wp.Throttle.Wait(ctx); err != nil {
				return nil
			}
			wp.process(ctx, rc, obj, out)
		case <-ctx.Done():
			return nil
		}
	}
}

func (wp *WorkerPool) process(ctx context.Context, rc *collect.RunContext, obj collect.DirectoryObject, out chan<- collect.OutputRecord) {
	kind := collect.InferKind(obj)
	processor, ok := wp.Registry.Lookup(kind)
	if !ok {
		wp.Log.Warn(ctx, "no processor registered for object kind, skipping", "kind", string(kind), "dn", obj.DistinguishedName())
		return
	}

	var records []collect.OutputRecord
	err := wp.track(func() error {
		var procErr error
		records, procErr = processor.Process(ctx, obj, collectionMethodsOf(rc))
		return procErr
	})
	if err != nil {
		wp.Log.Warn(ctx, "processor error, continuing", "dn", obj.DistinguishedName(), "error", err.Error())
		return
	}
	if wp.Metrics != nil {
		wp.Metrics.ObjectsProcessed.Inc()
	}

	for _, rec := range records {
		select {
		case out <- rec:
			if wp.Metrics != nil {
				wp.Metrics.RecordsWritten.Inc()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) track(f func() error) error {
	if wp.Metrics == nil {
		return f()
	}
	return wp.Metrics.TrackProcess(f)
}

func collectionMethodsOf(rc *collect.RunContext) collect.MethodSet {
	return rc.CollectionMethods
}
