package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/shivpratapsingh111/adcollect/internal/cache"
	"github.com/shivpratapsingh111/adcollect/internal/collect"
	"github.com/shivpratapsingh111/adcollect/internal/collect/processors"
	domain "github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
)

func main() {
	_, _ = maxprocs.Set()

	opts := collect.DefaultOptions()
	var methods string
	var metricsAddr string
	var otelEndpoint string
	var otelEnabled bool

	flag.StringVar(&opts.Domain, "domain", "", "domain to enumerate")
	flag.BoolVar(&opts.SearchForest, "search-forest", false, "enumerate every domain in the initial domain's forest")
	flag.BoolVar(&opts.RecurseDomains, "recurse-domains", false, "recursively follow every outbound/bidirectional trust")
	flag.BoolVar(&opts.Stealth, "stealth", false, "use the stealth target-derivation producer instead of a full LDAP sweep")
	flag.StringVar(&opts.LdapFilter, "ldap-filter", "", "custom LDAP filter used in place of the default NC query")
	flag.StringVar(&opts.DistinguishedName, "distinguished-name", "", "search base distinguished name, if not the domain root")
	flag.StringVar(&opts.ComputerFile, "computer-file", "", "path to a newline-delimited list of hosts to enumerate instead of a full sweep")
	flag.StringVar(&methods, "collection-methods", "Default", "comma-separated collection method names")
	flag.StringVar(&opts.MethodsPresetFile, "methods-preset", "", "YAML file naming a reusable collection method preset, overrides -collection-methods")

	flag.StringVar(&opts.OutputDirectory, "output-directory", ".", "directory to write result files into")
	flag.StringVar(&opts.OutputPrefix, "output-prefix", "", "prefix prepended to every output filename")
	flag.StringVar(&opts.CacheName, "cache-name", "", "cache file path override")
	flag.BoolVar(&opts.MemCache, "mem-cache", false, "keep the resolver cache in memory only, never persist it")
	flag.BoolVar(&opts.RebuildCache, "rebuild-cache", false, "ignore any existing cache file and start fresh")
	flag.BoolVar(&opts.RandomFilenames, "random-filenames", false, "randomize output filenames instead of using the record kind")
	flag.StringVar(&opts.ZipFilename, "zip-filename", "", "override the generated ZIP bundle's filename")
	flag.BoolVar(&opts.NoZip, "no-zip", false, "skip ZIP bundling of the output files")
	flag.StringVar(&opts.ZipPassword, "zip-password", "", "password-protect the ZIP bundle with legacy ZipCrypto")
	flag.BoolVar(&opts.PrettyPrint, "pretty-print", false, "pretty-print the JSON output files")
	flag.BoolVar(&opts.NoOutput, "no-output", false, "discard records instead of writing them to disk")

	flag.StringVar(&opts.LdapUsername, "ldap-username", "", "explicit bind username, empty for integrated auth")
	flag.StringVar(&opts.LdapPassword, "ldap-password", "", "explicit bind password")
	flag.StringVar(&opts.OverrideUsername, "override-username", "", "session username recorded in place of the bind account, for labeling a run")
	flag.StringVar(&opts.DomainController, "domain-controller", "", "domain controller to bind to, if not discovered")
	flag.IntVar(&opts.LdapPort, "ldap-port", opts.LdapPort, "LDAP port")
	flag.BoolVar(&opts.SecureLdap, "secure-ldap", false, "bind over LDAPS")
	flag.BoolVar(&opts.DisableCertVerification, "disable-cert-verification", false, "skip TLS certificate verification when binding over LDAPS")
	flag.BoolVar(&opts.SkipPortCheck, "skip-port-check", false, "skip the pre-flight TCP port check before binding")
	flag.DurationVar(&opts.PortCheckTimeout, "port-check-timeout", opts.PortCheckTimeout, "timeout for the pre-flight TCP port check")
	flag.BoolVar(&opts.SkipPasswordCheck, "skip-password-check", false, "skip warning when the bound account's password is near expiry")

	flag.BoolVar(&opts.DCOnly, "dc-only", false, "restrict enumeration to domain controllers, skipping ordinary user and workstation accounts")
	flag.BoolVar(&opts.ExcludeDCs, "exclude-dcs", false, "exclude domain controllers from stealth target derivation")
	flag.IntVar(&opts.Throttle, "throttle", opts.Throttle, "per-object processing delay in milliseconds")
	flag.IntVar(&opts.Jitter, "jitter", opts.Jitter, "throttle jitter percentage")
	flag.IntVar(&opts.Threads, "threads", opts.Threads, "worker pool size")
	flag.BoolVar(&opts.CollectAllProperties, "collect-all-properties", false, "project every LDAP attribute instead of the default set")
	flag.StringVar(&opts.RealDNSName, "real-dns-name", "", "real DNS name to stamp into the cache filename")

	flag.BoolVar(&opts.Loop, "loop", false, "repeat collection passes until the loop duration elapses")
	flag.DurationVar(&opts.LoopDuration, "loop-duration", 2*time.Hour, "total time to keep looping")
	flag.DurationVar(&opts.LoopInterval, "loop-interval", opts.LoopInterval, "delay between loop passes")

	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, empty to disable")
	flag.StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP collector endpoint")
	flag.BoolVar(&otelEnabled, "otel-enabled", false, "enable OpenTelemetry tracing and metrics export")
	flag.Parse()

	if methods != "" {
		opts.CollectionMethods = strings.Split(methods, ",")
	}

	log := logger.New("adcollect", logger.Config{JSON: true, Output: os.Stderr})

	tracerProvider, shutdown, err := telemetry.Init(log, telemetry.Config{
		ServiceName:      "adcollect",
		ExporterEndpoint: otelEndpoint,
		Enabled:          otelEnabled,
	})
	if err != nil {
		log.Error(context.Background(), "telemetry init failed", "error", err.Error())
		os.Exit(1)
	}
	tracer := tracerProvider.Tracer("adcollect")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer shutdown(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info(ctx, "shutdown signal received")
		cancel()
	}()

	m := metrics.New()
	if metricsAddr != "" {
		go func() {
			if err := metrics.StartServer(metricsAddr); err != nil {
				log.Warn(ctx, "metrics server error", "error", err.Error())
			}
		}()
	}

	// The dialer and cache store are built straight from opts rather than
	// from a RunContext: the RunContext itself is now only ever populated
	// by the Initialize link, inside Run, so a bad flag combination
	// faults the run through the same path as every other link instead
	// of a pre-Run validation call. An invalid username/password pairing
	// here is tolerated with zero-value credentials — Initialize
	// re-validates and faults the run before TestConnection ever dials.
	creds, credsErr := domain.NewExplicitCredentials(opts.LdapUsername, opts.LdapPassword)
	if credsErr != nil {
		creds = domain.Credentials{}
	}
	dialer := ldap.NewGoLDAPDialer(creds, domainDNFor(opts.DistinguishedName, opts.Domain), opts.LdapPort, opts.SecureLdap)
	dialer.DisableCertVerification = opts.DisableCertVerification
	dialer.Metrics = m

	cacheStore := cache.Store(cache.NewMemStore(cache.New()))
	if !opts.MemCache {
		cacheStore = cache.NewFileStore(opts.OutputDirectory, opts.RealDNSName, opts.RebuildCache)
	}

	checkpointStore := collect.NewMemCheckpointStore()
	registry := processors.DefaultRegistry()

	runner := collect.NewLinkRunner(dialer, cacheStore, checkpointStore, registry, m, log, tracer, opts)

	rc, runCtx := domain.NewRunContext(ctx)
	reason := runner.Run(runCtx, rc)
	if reason != "" {
		log.Error(ctx, "collection run faulted", "reason", reason)
		os.Exit(1)
	}

	log.Info(ctx, "collection run completed")
}

// domainDNFor picks the search base the dialer scopes host lookups to:
// an explicit distinguished name if the caller supplied one, otherwise
// the domain root.
func domainDNFor(explicitDN, domainName string) string {
	if explicitDN != "" {
		return explicitDN
	}
	return dnFromDomain(domainName)
}

func dnFromDomain(name string) string {
	labels := strings.Split(strings.ToUpper(name), ".")
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" {
			parts = append(parts, "DC="+l)
		}
	}
	return strings.Join(parts, ",")
}
