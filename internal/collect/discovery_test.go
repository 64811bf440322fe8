package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

var errNotFound = errors.New("domain not found")

type fakeTrustReader struct {
	domains map[string]collect.EnumerationDomain
	trusts  map[string][]collect.TrustRecord
}

func (f *fakeTrustReader) ResolveDomain(ctx context.Context, name string) (collect.EnumerationDomain, error) {
	d, ok := f.domains[name]
	if !ok {
		return collect.EnumerationDomain{}, errNotFound
	}
	return d, nil
}

func (f *fakeTrustReader) ListTrusts(ctx context.Context, domain collect.EnumerationDomain) ([]collect.TrustRecord, error) {
	return f.trusts[domain.DomainSid], nil
}

// fakeForestReader replays a fixed forest membership list keyed by the
// initial domain's SID, independent of any trust graph.
type fakeForestReader struct {
	domains map[string][]collect.EnumerationDomain
	err     error
}

func (f *fakeForestReader) ListForestDomains(ctx context.Context, initial collect.EnumerationDomain) ([]collect.EnumerationDomain, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.domains[initial.DomainSid], nil
}

func TestDiscoverSingleReturnsOnlyInitialDomain(t *testing.T) {
	reader := &fakeTrustReader{
		domains: map[string]collect.EnumerationDomain{
			"corp.local": collect.NewEnumerationDomain("corp.local", "S-1-5-21-1"),
		},
	}
	d := NewDiscoverer(reader, nil, noop.NewTracerProvider().Tracer("test"))

	domains, err := d.Discover(context.Background(), "corp.local", DiscoverSingle)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	require.Equal(t, "CORP.LOCAL", domains[0].Name)
}

func TestDiscoverSearchForestReturnsForestMembersNotTrustPartners(t *testing.T) {
	reader := &fakeTrustReader{
		domains: map[string]collect.EnumerationDomain{
			"corp.local": collect.NewEnumerationDomain("corp.local", "S-1-5-21-1"),
		},
		trusts: map[string][]collect.TrustRecord{
			"S-1-5-21-1": {
				// An external trust partner: bidirectional and
				// followable, but not part of the forest, so it must
				// never show up in a SearchForest result.
				{TargetDomainSid: "S-1-5-21-9", TargetDomainFQDN: "external-partner.com", Direction: collect.TrustBidirectional},
			},
		},
	}
	forest := &fakeForestReader{
		domains: map[string][]collect.EnumerationDomain{
			"S-1-5-21-1": {
				collect.NewEnumerationDomain("child.corp.local", "S-1-5-21-2"),
				collect.NewEnumerationDomain("grandchild.corp.local", "S-1-5-21-3"),
			},
		},
	}
	d := NewDiscoverer(reader, forest, noop.NewTracerProvider().Tracer("test"))

	domains, err := d.Discover(context.Background(), "corp.local", DiscoverSearchForest)
	require.NoError(t, err)

	require.Len(t, domains, 3)
	require.Equal(t, "CORP.LOCAL", domains[0].Name)

	var sids []string
	for _, dom := range domains {
		sids = append(sids, dom.DomainSid)
	}
	require.ElementsMatch(t, []string{"S-1-5-21-1", "S-1-5-21-2", "S-1-5-21-3"}, sids)
	require.NotContains(t, sids, "S-1-5-21-9")
}

func TestDiscoverSearchForestPropagatesForestReaderError(t *testing.T) {
	reader := &fakeTrustReader{
		domains: map[string]collect.EnumerationDomain{
			"corp.local": collect.NewEnumerationDomain("corp.local", "S-1-5-21-1"),
		},
	}
	forest := &fakeForestReader{err: errors.New("partitions container unreadable")}
	d := NewDiscoverer(reader, forest, noop.NewTracerProvider().Tracer("test"))

	_, err := d.Discover(context.Background(), "corp.local", DiscoverSearchForest)
	require.Error(t, err)
}

func TestDiscoverRecurseDomainsWalksFullGraph(t *testing.T) {
	reader := &fakeTrustReader{
		domains: map[string]collect.EnumerationDomain{
			"corp.local": collect.NewEnumerationDomain("corp.local", "S-1-5-21-1"),
		},
		trusts: map[string][]collect.TrustRecord{
			"S-1-5-21-1": {
				{TargetDomainSid: "S-1-5-21-2", TargetDomainFQDN: "child.corp.local", Direction: collect.TrustOutbound},
			},
			"S-1-5-21-2": {
				{TargetDomainSid: "S-1-5-21-3", TargetDomainFQDN: "grandchild.corp.local", Direction: collect.TrustOutbound},
				{TargetDomainSid: "S-1-5-21-1", TargetDomainFQDN: "corp.local", Direction: collect.TrustBidirectional},
			},
		},
	}
	d := NewDiscoverer(reader, nil, noop.NewTracerProvider().Tracer("test"))

	domains, err := d.Discover(context.Background(), "corp.local", DiscoverRecurseDomains)
	require.NoError(t, err)

	require.Len(t, domains, 3)
	sids := []string{domains[0].DomainSid, domains[1].DomainSid, domains[2].DomainSid}
	require.Equal(t, []string{"S-1-5-21-1", "S-1-5-21-2", "S-1-5-21-3"}, sids)
}

func TestDiscoverReturnsErrorWhenInitialDomainUnresolvable(t *testing.T) {
	reader := &fakeTrustReader{domains: map[string]collect.EnumerationDomain{}}
	d := NewDiscoverer(reader, nil, noop.NewTracerProvider().Tracer("test"))

	_, err := d.Discover(context.Background(), "nope.local", DiscoverSingle)
	require.Error(t, err)
}
