package collect

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/trace"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
)

// TaskConfig carries everything a single Collection Task pass needs that
// isn't already on the RunContext: the already-bound producer strategy,
// the processor registry, and the filename/zip shaping for this
// particular pass (spec.md §4.6 distinguishes a base pass's filenames
// from a loop pass's "loop" variant).
type TaskConfig struct {
	Producer        Producer
	Registry        collect.ProcessorRegistry
	Metrics         *metrics.Collector
	Log             *logger.Logger
	Tracer          trace.Tracer
	ProcStartTime   time.Time
	FilenamePrefix  string
	BundleZip       bool
	ZipFilename     string
	ZipPassword     string
	ObjectQueueSize int
	RecordQueueSize int
}

// TaskResult reports what one Collection Task pass produced.
type TaskResult struct {
	RecordsWritten int
	OutputFiles    []string
	ZipPath        string
}

// RunCollectionTask executes one full enumeration pass: producer(s) feed
// the worker pool, the worker pool feeds the router, the router's
// writers flush, and the result is optionally bundled into a ZIP
// (spec.md §4.6, C6). It returns once every stage has drained, whether
// the pass completed cleanly or the run was faulted partway through.
func RunCollectionTask(ctx context.Context, rc *collect.RunContext, cfg TaskConfig) (TaskResult, error) {
	log := newProducerLogger(cfg.Log)
	tracer := newComponentTracer(cfg.Tracer)

	ctx, taskSpan := telemetry.StartSpan(ctx, tracer, "collection_task.run")
	defer taskSpan.End()

	objectQueue := cfg.ObjectQueueSize
	if objectQueue <= 0 {
		objectQueue = 256
	}
	recordQueue := cfg.RecordQueueSize
	if recordQueue <= 0 {
		recordQueue = 256
	}

	objects := make(chan collect.DirectoryObject, objectQueue)
	records := make(chan collect.OutputRecord, recordQueue)

	router := NewRouter(rc.OutputDirectory, effectivePrefix(rc.OutputPrefix, cfg.FilenamePrefix), cfg.ProcStartTime, rc.RandomizeFilenames, rc.PrettyPrint, rc.NoOutput, log, tracer)
	pool := NewWorkerPool(cfg.Registry, NewThrottle(rc.ThrottleMs, rc.Jitter), cfg.Metrics, log, tracer, rc.Threads)

	producerGroup, producerCtx := errgroup.WithContext(ctx)
	producerGroup.Go(func() (err error) {
		defer recoverToFault(ctx, rc, log, "producer.default", &err)
		spanCtx, span := telemetry.StartSpan(producerCtx, tracer, "producer.default")
		defer span.End()
		return cfg.Producer.Produce(spanCtx, rc, objects)
	})
	producerGroup.Go(func() (err error) {
		defer recoverToFault(ctx, rc, log, "producer.configNC", &err)
		spanCtx, span := telemetry.StartSpan(producerCtx, tracer, "producer.config_nc")
		defer span.End()
		return cfg.Producer.ProduceConfigNC(spanCtx, rc, objects)
	})

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		defer recoverToFault(ctx, rc, log, "router", nil)
		router.Run(ctx, rc, records)
	}()

	poolErrCh := make(chan error, 1)
	go func() {
		var err error
		defer func() { poolErrCh <- err }()
		defer recoverToFault(ctx, rc, log, "worker_pool", &err)
		err = pool.Run(ctx, rc, objects, records)
	}()

	stopStatus := make(chan struct{})
	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		defer recoverToFault(ctx, rc, log, "status_reporter", nil)
		reportStatus(ctx, rc, router, log, stopStatus)
	}()
	defer func() { <-statusDone }()
	defer close(stopStatus)

	producerErr := producerGroup.Wait()
	close(objects)
	if producerErr != nil {
		log.Error(ctx, "producer failed", "error", producerErr.Error())
		rc.Fault(fmt.Sprintf("producer: %v", producerErr))
	}

	poolErr := <-poolErrCh
	if poolErr != nil {
		log.Error(ctx, "worker pool failed", "error", poolErr.Error())
		rc.Fault(fmt.Sprintf("worker pool: %v", poolErr))
	}

	<-routerDone

	paths, flushErr := router.FlushAll(ctx, rc.CollectionMethods)
	if flushErr != nil {
		log.Error(ctx, "flushing writers failed", "error", flushErr.Error())
		rc.Fault(fmt.Sprintf("flush: %v", flushErr))
		return TaskResult{OutputFiles: paths}, flushErr
	}

	result := TaskResult{OutputFiles: paths}
	for _, kind := range allKinds {
		result.RecordsWritten += router.writers[kind].Count()
	}

	if cfg.BundleZip && !rc.NoZip && len(paths) > 0 {
		_, zipSpan := telemetry.StartSpan(ctx, tracer, "collection_task.zip")
		zipPath := resolveZipPath(rc, cfg)
		err := BundleFiles(zipPath, paths, cfg.ZipPassword)
		zipSpan.End()
		if err != nil {
			log.Error(ctx, "zip bundling failed", "error", err.Error())
			rc.Fault(fmt.Sprintf("zip: %v", err))
			return result, err
		}
		result.ZipPath = zipPath
	}

	return result, nil
}

// reportStatus logs the running record total every rc.StatusInterval
// until stop closes, giving an operator watching a long-running
// collection visible progress between the start and final log lines
// (spec.md's StatusInterval option had no consumer before this).
// StatusInterval <= 0 disables the ticker entirely.
func reportStatus(ctx context.Context, rc *collect.RunContext, router *Router, log *logger.Logger, stop <-chan struct{}) {
	if rc.StatusInterval <= 0 {
		return
	}

	ticker := time.NewTicker(rc.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, kind := range allKinds {
				total += router.writers[kind].Count()
			}
			log.Info(ctx, "collection in progress", "records_written", total)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// effectivePrefix combines a caller-supplied OutputPrefix with the task
// pass's own prefix (e.g. "loop"), so a loop pass's files are always
// distinguishable from the base pass even if the user also set
// --OutputPrefix.
func effectivePrefix(userPrefix, passPrefix string) string {
	switch {
	case userPrefix == "":
		return passPrefix
	case passPrefix == "":
		return userPrefix
	default:
		return userPrefix + "_" + passPrefix
	}
}

func resolveZipPath(rc *collect.RunContext, cfg TaskConfig) string {
	name := cfg.ZipFilename
	if name == "" {
		name = rc.ZipFilename
	}
	if name == "" {
		name = defaultZipName(cfg.FilenamePrefix, cfg.ProcStartTime)
	}
	if rc.OutputDirectory == "" {
		return name
	}
	return filepath.Join(rc.OutputDirectory, name)
}

// defaultZipName matches spec.md §4.6: loop passes bundle to a fixed
// "BloodHoundLoopResults.zip" name; base passes stamp the timestamp the
// same way the individual output files do.
func defaultZipName(prefix string, procStart time.Time) string {
	if prefix == "loop" {
		return "BloodHoundLoopResults.zip"
	}
	return procStart.Format("20060102150405") + "_BloodHound.zip"
}
