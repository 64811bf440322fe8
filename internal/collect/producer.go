// Package collect is the orchestration core: domain discovery, the three
// producer strategies, the worker pool, the output writers, the
// collection task that composes them, and the loop manager and link
// runner that sequence runs end to end.
package collect

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// NCQuery is the prebuilt filter and attribute projection for one naming
// context, derived once from the run's resolved collection methods
// (spec.md §4.3's "DefaultNCData/ConfigNCData pair").
type NCQuery struct {
	Filter     string
	Attributes []string
}

// NCSet bundles the default and configuration partition queries every
// producer is constructed with.
type NCSet struct {
	Default NCQuery
	Config  NCQuery
}

// DomainClients maps a domain's SID to the already-bound LDAP client to
// use for it, built once by the Collection Task before producers start.
type DomainClients map[string]ldap.Client

// Producer is the shared strategy interface: stream the default naming
// context, and (if applicable) the configuration naming context.
type Producer interface {
	Produce(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error
	ProduceConfigNC(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error
}

// emit sends obj to out, honoring both the immediate cancellation signal
// (ctx.Done, checked by the select) and the deferred one
// (rc.NeedsCancellation, checked before attempting the send at all) —
// the two-signal model spec.md §9 calls for.
func emit(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject, obj collect.DirectoryObject) bool {
	if rc.NeedsCancellation() {
		return false
	}
	select {
	case out <- obj:
		return true
	case <-ctx.Done():
		return false
	}
}

// domainDN converts an upper-cased FQDN ("CORP.LOCAL") into its
// distinguished-name form ("DC=CORP,DC=LOCAL").
func domainDN(name string) string {
	parts := splitDomainLabels(name)
	dn := ""
	for i, p := range parts {
		if i > 0 {
			dn += ","
		}
		dn += "DC=" + p
	}
	return dn
}

func splitDomainLabels(name string) []string {
	var labels []string
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			if i > start {
				labels = append(labels, name[start:i])
			}
			start = i + 1
		}
	}
	return labels
}

// newProducerLogger is a small helper so every producer constructor takes
// the same shape without repeating a nil check at every call site.
func newProducerLogger(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}

// newComponentTracer mirrors newProducerLogger's nil tolerance so every
// constructor that takes a tracer can be called without one (tests, a
// caller that never enabled OpenTelemetry) and still get a valid
// trace.Tracer to call Start on.
func newComponentTracer(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer("adcollect")
	}
	return tracer
}
