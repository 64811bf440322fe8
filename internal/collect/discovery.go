package collect

import (
	"context"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// TrustReader is the narrow slice of LDAP behaviour domain discovery
// needs: resolve one domain's own identity, and list the trust edges it
// advertises. Kept separate from the full ldap.Client so discovery can be
// tested against a small fake instead of the whole directory port.
type TrustReader interface {
	ResolveDomain(ctx context.Context, name string) (collect.EnumerationDomain, error)
	ListTrusts(ctx context.Context, domain collect.EnumerationDomain) ([]collect.TrustRecord, error)
}

// ForestReader resolves the domains that belong to the same forest as a
// given domain. This is a membership query against the Configuration
// NC's Partitions container, not a trust-edge walk: a forest child can
// exist with no trustedDomain object at all, and a trust edge can point
// at a domain that isn't part of the forest.
type ForestReader interface {
	ListForestDomains(ctx context.Context, initial collect.EnumerationDomain) ([]collect.EnumerationDomain, error)
}

// DiscoveryMode selects how the initial domain set is expanded, mirroring
// RunContext.SearchForest/RecurseDomains (spec.md §4.2).
type DiscoveryMode int

const (
	DiscoverSingle DiscoveryMode = iota
	DiscoverSearchForest
	DiscoverRecurseDomains
)

// Discoverer resolves the full set of domains a run will collect from.
type Discoverer struct {
	trustReader  TrustReader
	forestReader ForestReader
	tracer       trace.Tracer
}

// NewDiscoverer builds a Discoverer over trustReader (used for
// RecurseDomains) and forestReader (used for SearchForest). forestReader
// may be nil if the caller never invokes Discover with DiscoverSearchForest.
func NewDiscoverer(trustReader TrustReader, forestReader ForestReader, tracer trace.Tracer) *Discoverer {
	return &Discoverer{trustReader: trustReader, forestReader: forestReader, tracer: tracer}
}

// Discover resolves initialDomain and, depending on mode, expands it into
// the full domain set: SearchForest reads forest membership directly,
// RecurseDomains walks outbound and bidirectional trusts breadth-first.
// The initial domain is always first in the result (spec.md §4.2 "the
// domain the run was invoked against is always index 0"); every
// subsequent domain appears exactly once, keyed by SID, first occurrence
// wins.
func (d *Discoverer) Discover(ctx context.Context, initialDomain string, mode DiscoveryMode) ([]collect.EnumerationDomain, error) {
	ctx, span := telemetry.StartSpan(ctx, d.tracer, "discovery.discover")
	defer span.End()

	initial, err := d.trustReader.ResolveDomain(ctx, initialDomain)
	if err != nil {
		return nil, fmt.Errorf("resolving initial domain %q: %w", initialDomain, err)
	}

	switch mode {
	case DiscoverSingle:
		return []collect.EnumerationDomain{initial}, nil
	case DiscoverSearchForest:
		return d.discoverForest(ctx, initial)
	default:
		return d.discoverTrustGraph(ctx, initial)
	}
}

// discoverForest emits the initial domain plus every other domain the
// Partitions container reports as belonging to the same forest, a flat
// membership list rather than a graph to traverse.
func (d *Discoverer) discoverForest(ctx context.Context, initial collect.EnumerationDomain) ([]collect.EnumerationDomain, error) {
	children, err := d.forestReader.ListForestDomains(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("listing forest domains for %q: %w", initial.Name, err)
	}

	seen := map[string]bool{initial.DomainSid: true}
	ordered := []collect.EnumerationDomain{initial}
	for _, c := range children {
		if seen[c.DomainSid] {
			continue
		}
		seen[c.DomainSid] = true
		ordered = append(ordered, c)
	}
	return ordered, nil
}

// discoverTrustGraph walks outbound and bidirectional trusts
// breadth-first from initial, following every hop rather than stopping
// after the first.
func (d *Discoverer) discoverTrustGraph(ctx context.Context, initial collect.EnumerationDomain) ([]collect.EnumerationDomain, error) {
	seen := map[string]bool{initial.DomainSid: true}
	ordered := []collect.EnumerationDomain{initial}
	queue := []collect.EnumerationDomain{initial}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		trusts, err := d.trustReader.ListTrusts(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("listing trusts for %q: %w", current.Name, err)
		}

		for _, t := range trusts {
			if !t.Direction.Followable() {
				continue
			}
			if seen[t.TargetDomainSid] {
				continue
			}
			seen[t.TargetDomainSid] = true

			next := collect.NewEnumerationDomain(t.TargetDomainFQDN, t.TargetDomainSid)
			ordered = append(ordered, next)
			queue = append(queue, next)
		}
	}

	return ordered, nil
}
