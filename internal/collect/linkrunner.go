package collect

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/shivpratapsingh111/adcollect/internal/cache"
	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
)

// LinkRunner executes the fixed collection sequence end to end: connect,
// discover domains, run the base pass, run the loop if requested, save
// the cache, and report. Grounded on the teacher's coordinator
// (internal/app/enumeration coordinator pattern) generalized from a
// single-shot GitHub enumeration session into a sequenced, two-phase
// (base + loop) AD collection run.
type LinkRunner struct {
	Dialer         ldap.Dialer
	CacheStore     cache.Store
	CheckpointStore CheckpointStore
	Registry       collect.ProcessorRegistry
	Metrics        *metrics.Collector
	Log            *logger.Logger
	Tracer         trace.Tracer
	Opts           Options

	cacheInst       *cache.Cache
	domainClients   DomainClients
	procStart       time.Time
	loopManager     *LoopManager
	baseResult      TaskResult
	stealthBuilder  *StealthTargetBuilder
}

// NewLinkRunner constructs a LinkRunner wired to its external
// collaborators. opts is the Initialize link's own input: the run
// context it produces is only ever built from inside Run, never by a
// caller ahead of time, so a validation failure faults the run like
// every other link instead of short-circuiting before Run starts.
func NewLinkRunner(dialer ldap.Dialer, cacheStore cache.Store, checkpointStore CheckpointStore, registry collect.ProcessorRegistry, m *metrics.Collector, log *logger.Logger, tracer trace.Tracer, opts Options) *LinkRunner {
	return &LinkRunner{
		Dialer:          dialer,
		CacheStore:      cacheStore,
		CheckpointStore: checkpointStore,
		Registry:        registry,
		Metrics:         m,
		Log:             newProducerLogger(log),
		Tracer:          newComponentTracer(tracer),
		Opts:            opts,
	}
}

// Run executes every link of the sequence in order, short-circuiting on
// the first fault. After the sequence, SaveCacheFile runs only if
// InitCommonLib succeeded (a fault before it leaves no cache to save),
// and Finish always runs. It returns the run's fault reason, or "" on
// success.
func (r *LinkRunner) Run(ctx context.Context, rc *collect.RunContext) string {
	r.procStart = time.Now()

	sequence := []struct {
		name string
		run  func(context.Context, *collect.RunContext) error
	}{
		{"Initialize", r.initialize},
		{"TestConnection", r.testConnection},
		{"CheckPasswordExpiry", r.checkPasswordExpiry},
		{"SetSessionUserName", r.setSessionUserName},
		{"InitCommonLib", r.initCommonLib},
		{"GetDomainsForEnumeration", r.getDomainsForEnumeration},
		{"StartBaseCollectionTask", r.startBaseCollectionTask},
		{"StartLoop", r.startLoop},
	}

	initCommonLibSucceeded := false

	for _, step := range sequence {
		if rc.IsFaulted() {
			break
		}
		r.Log.Info(ctx, "running link", "link", step.name)
		linkCtx, span := telemetry.StartSpan(ctx, r.Tracer, "link."+step.name)
		err := step.run(linkCtx, rc)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if err != nil {
			r.Log.Error(ctx, "link failed", "link", step.name, "error", err.Error())
			rc.Fault(fmt.Sprintf("%s: %v", step.name, err))
			break
		}
		if step.name == "InitCommonLib" {
			initCommonLibSucceeded = true
		}
	}

	// SaveCacheFile only makes sense once InitCommonLib has built a cache
	// instance to save; a fault before that point has nothing to persist.
	if initCommonLibSucceeded {
		if err := r.saveCacheFile(ctx, rc); err != nil {
			r.Log.Warn(ctx, "saving cache file failed", "error", err.Error())
		}
	}

	r.finish(ctx, rc)
	return rc.FaultReason()
}

// initialize runs first in the sequence so that a bad flag combination
// or an unwritable output directory faults the run through the same
// path as every other link, rather than through a bare os.Exit before
// the Link Runner ever starts (spec.md §7's Configuration-error policy:
// fail immediately, set IsFaulted, skip all subsequent links).
func (r *LinkRunner) initialize(ctx context.Context, rc *collect.RunContext) error {
	return BuildRunContext(rc, r.Opts)
}

// setSessionUserName records the identity a run is labeled under,
// defaulting to the bind account and overridable independently of it,
// e.g. when a service account binds but the run should be attributed
// to an operator.
func (r *LinkRunner) setSessionUserName(ctx context.Context, rc *collect.RunContext) error {
	rc.SessionUserName = rc.Credentials.Username
	if r.Opts.OverrideUsername != "" {
		rc.SessionUserName = r.Opts.OverrideUsername
	}
	return nil
}

// testConnection resolves and dials the configured (or discovered)
// domain controller once before committing to the rest of the run, so a
// misconfigured target fails fast instead of partway through discovery.
func (r *LinkRunner) testConnection(ctx context.Context, rc *collect.RunContext) error {
	target := rc.DomainController
	if target == "" {
		target = rc.DomainName
	}
	if target == "" {
		return fmt.Errorf("no domain controller or domain name to test a connection against")
	}

	if !rc.SkipPortCheck {
		timeout := rc.PortCheckTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		if err := ldap.CheckPort(ctx, target, rc.LdapPort, timeout); err != nil {
			return err
		}
	}

	client, err := r.Dialer.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("connecting to %q: %w", target, err)
	}
	return client.Close()
}

// checkPasswordExpiry is a non-fatal pre-flight warning, never faulting
// the run on its own (see checkPasswordExpiry's doc comment).
func (r *LinkRunner) checkPasswordExpiry(ctx context.Context, rc *collect.RunContext) error {
	return checkPasswordExpiry(ctx, r.Dialer, rc, r.Log)
}

// initCommonLib loads (or initializes) the resolver cache, the one piece
// of run-scoped state that every subsequent link depends on.
func (r *LinkRunner) initCommonLib(ctx context.Context, rc *collect.RunContext) error {
	if r.CacheStore == nil {
		r.cacheInst = cache.New()
		return nil
	}
	c, err := r.CacheStore.Load(ctx)
	if err != nil {
		r.Log.Warn(ctx, "loading cache failed, starting empty", "error", err.Error())
		c = cache.New()
	}
	r.cacheInst = c
	return nil
}

// getDomainsForEnumeration resolves the domain set, then binds one LDAP
// client per domain for the remainder of the run.
func (r *LinkRunner) getDomainsForEnumeration(ctx context.Context, rc *collect.RunContext) error {
	reader := NewLDAPTrustReader(r.Dialer)
	forestReader := NewLDAPForestReader(r.Dialer)
	discoverer := NewDiscoverer(reader, forestReader, r.Tracer)

	mode := DiscoverSingle
	switch {
	case rc.RecurseDomains:
		mode = DiscoverRecurseDomains
	case rc.SearchForest:
		mode = DiscoverSearchForest
	}

	domains, err := discoverer.Discover(ctx, rc.DomainName, mode)
	if err != nil {
		return err
	}
	rc.Domains = domains

	clients := make(DomainClients, len(domains))
	for _, d := range domains {
		client, err := r.Dialer.Dial(ctx, d.Name)
		if err != nil {
			return fmt.Errorf("binding client for domain %q: %w", d.Name, err)
		}
		clients[d.DomainSid] = client
	}
	r.domainClients = clients
	return nil
}

// startBaseCollectionTask runs one full Collection Task pass covering
// every collection method the run was configured with, then marks
// InitialCompleted so the loop manager knows the base pass is done
// (spec.md §4.7's timer-immediacy rule depends on this flag).
func (r *LinkRunner) startBaseCollectionTask(ctx context.Context, rc *collect.RunContext) error {
	producer, err := r.selectProducer(rc)
	if err != nil {
		return err
	}

	result, err := RunCollectionTask(ctx, rc, TaskConfig{
		Producer:      producer,
		Registry:      r.Registry,
		Metrics:       r.Metrics,
		Log:           r.Log,
		Tracer:        r.Tracer,
		ProcStartTime: r.procStart,
		BundleZip:     true,
	})
	if err != nil {
		return err
	}
	r.baseResult = result
	rc.InitialCompleted = true
	return nil
}

// startLoop runs the looping phase, if requested, narrowing collection
// methods to the session-only subset for every pass after the first.
func (r *LinkRunner) startLoop(ctx context.Context, rc *collect.RunContext) error {
	if !rc.Loop {
		return nil
	}

	producer, err := r.selectProducer(rc)
	if err != nil {
		return err
	}

	r.loopManager = NewLoopManager(r.CheckpointStore, r.Log, r.Tracer)
	r.loopManager.Metrics = r.Metrics
	r.loopManager.StartLoopTimer(rc)

	task := func(ctx context.Context, rc *collect.RunContext, passNumber int) (int, error) {
		rc.CollectionMethods = collect.GetLoopCollectionMethods(rc.CollectionMethods)
		// Every pass shares r.procStart, so the pass number keeps each
		// pass's file names distinct; the zip keeps the loop default name.
		zipName := rc.ZipFilename
		if zipName == "" {
			zipName = defaultZipName("loop", r.procStart)
		}
		result, err := RunCollectionTask(ctx, rc, TaskConfig{
			Producer:       producer,
			Registry:       r.Registry,
			Metrics:        r.Metrics,
			Log:            r.Log,
			Tracer:         r.Tracer,
			ProcStartTime:  r.procStart,
			FilenamePrefix: fmt.Sprintf("loop%d", passNumber),
			BundleZip:      true,
			ZipFilename:    zipName,
		})
		if err != nil {
			return 0, err
		}
		return result.RecordsWritten, nil
	}

	return r.loopManager.StartLoop(ctx, rc, task)
}

// saveCacheFile persists the resolver cache, skipped entirely when
// MemCache was requested (spec.md §4.8: an in-memory cache never
// touches disk).
func (r *LinkRunner) saveCacheFile(ctx context.Context, rc *collect.RunContext) error {
	if rc.MemCache || r.CacheStore == nil || r.cacheInst == nil {
		return nil
	}
	return r.CacheStore.Save(ctx, r.cacheInst)
}

// finish releases every domain client bound by getDomainsForEnumeration,
// run unconditionally regardless of where the sequence stopped.
func (r *LinkRunner) finish(ctx context.Context, rc *collect.RunContext) {
	for _, client := range r.domainClients {
		if err := client.Close(); err != nil {
			r.Log.Warn(ctx, "closing ldap client failed", "error", err.Error())
		}
	}
	if rc.IsFaulted() {
		r.Log.Error(ctx, "run finished faulted", "reason", rc.FaultReason())
	} else {
		r.Log.Info(ctx, "run finished", "base_records_written", r.baseResult.RecordsWritten, "base_output_files", len(r.baseResult.OutputFiles))
	}
}

// selectProducer applies the precedence order spec.md §4.6 specifies:
// a computer file beats stealth mode, which beats the default LDAP
// sweep. The stealth target set is built exactly once per process
// (spec.md §4.3): startBaseCollectionTask and startLoop both call this,
// so the builder is constructed on first use and reused on every later
// call instead of redoing the host-discovery sweep for the loop phase.
func (r *LinkRunner) selectProducer(rc *collect.RunContext) (Producer, error) {
	nc := r.buildNCSet(rc)

	switch {
	case rc.ComputerFilePath != "":
		producer := NewComputerFileProducer(rc.ComputerFilePath, rc.Domains, r.domainClients, nc.Default, r.Log)
		producer.Cache = r.cacheInst
		producer.Metrics = r.Metrics
		return producer, nil
	case rc.Stealth:
		if r.stealthBuilder == nil {
			builder := NewStealthTargetBuilder(rc.Domains, r.domainClients, nc, rc.ExcludeDomainControllers, r.Log)
			builder.Cache = r.cacheInst
			builder.Metrics = r.Metrics
			r.stealthBuilder = builder
		}
		return NewStealthProducer(r.stealthBuilder), nil
	default:
		return NewLDAPProducer(rc.Domains, r.domainClients, nc, r.Log), nil
	}
}

// buildNCSet derives the default and configuration naming context
// queries from the run's resolved collection methods (spec.md §4.3).
// CollectAllProperties widens the attribute projection to "*" for both
// partitions; otherwise each method's owning attributes are projected.
func (r *LinkRunner) buildNCSet(rc *collect.RunContext) NCSet {
	attrs := []string{"objectclass", "objectsid", "distinguishedname", "samaccountname", "cacertificate", "mspki-certificate-template"}
	if rc.CollectAllProperties {
		attrs = []string{"*"}
	}

	filter := rc.LdapFilter
	if filter == "" {
		switch {
		case rc.DCOnly:
			// DCOnly skips ordinary user and workstation accounts
			// entirely; the only computer objects worth a round trip are
			// domain controllers themselves (primaryGroupID=516).
			filter = "(|(objectClass=group)(objectClass=domainDNS)(objectClass=groupPolicyContainer)(objectClass=organizationalUnit)(objectClass=container)(&(objectClass=computer)(primaryGroupID=516)))"
		default:
			filter = "(|(objectClass=user)(objectClass=group)(objectClass=computer)(objectClass=domainDNS)(objectClass=groupPolicyContainer)(objectClass=organizationalUnit)(objectClass=container))"
		}
	}

	return NCSet{
		Default: NCQuery{Filter: filter, Attributes: attrs},
		Config:  NCQuery{Filter: "(objectClass=*)", Attributes: attrs},
	}
}
