package collect

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
)

// allKinds lists every RecordKind a Router creates a Writer for, in a
// stable order so output listings and tests are deterministic.
var allKinds = []collect.RecordKind{
	collect.KindUser,
	collect.KindGroup,
	collect.KindComputer,
	collect.KindDomain,
	collect.KindGPO,
	collect.KindOU,
	collect.KindContainer,
	collect.KindCert,
}

// Router owns one Writer per RecordKind and dispatches incoming
// OutputRecords by their Kind field (spec.md §4.5's "dispatch table
// keyed on record kind").
type Router struct {
	writers map[collect.RecordKind]*Writer
	Log     *logger.Logger
	Tracer  trace.Tracer
}

// NewRouter builds a Writer for every known kind under outputDir.
func NewRouter(outputDir, prefix string, procStart time.Time, randomize, pretty, noOutput bool, log *logger.Logger, tracer trace.Tracer) *Router {
	writers := make(map[collect.RecordKind]*Writer, len(allKinds))
	for _, kind := range allKinds {
		writers[kind] = NewWriter(kind, outputDir, prefix, procStart, randomize, pretty, noOutput)
	}
	return &Router{writers: writers, Log: newProducerLogger(log), Tracer: newComponentTracer(tracer)}
}

// Run drains records from in until it closes or ctx is canceled,
// dispatching each to its writer. A filename collision on any writer is
// treated as a run fault (spec.md §7's "Writer error ... fatal").
func (r *Router) Run(ctx context.Context, rc *collect.RunContext, in <-chan collect.OutputRecord) {
	for {
		select {
		case rec, ok := <-in:
			if !ok {
				return
			}
			r.dispatch(ctx, rc, rec)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Router) dispatch(ctx context.Context, rc *collect.RunContext, rec collect.OutputRecord) {
	w, ok := r.writers[rec.Kind]
	if !ok {
		r.Log.Warn(ctx, "no writer registered for record kind, dropping record", "kind", string(rec.Kind))
		return
	}
	if err := w.Write(rec); err != nil {
		r.Log.Error(ctx, "writer failed, faulting run", "kind", string(rec.Kind), "error", err.Error())
		rc.Fault(fmt.Sprintf("writer[%s]: %v", rec.Kind, err))
	}
}

// FlushAll flushes every writer and returns the paths of the files that
// were actually created (writers that never received a record create no
// file and contribute no path).
func (r *Router) FlushAll(ctx context.Context, methods collect.MethodSet) ([]string, error) {
	var paths []string
	for _, kind := range allKinds {
		_, span := telemetry.StartSpan(ctx, r.Tracer, "writer.flush")
		w := r.writers[kind]
		err := w.Flush(methods)
		span.End()
		if err != nil {
			return paths, fmt.Errorf("flushing writer[%s]: %w", kind, err)
		}
		if p := w.Path(); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}
