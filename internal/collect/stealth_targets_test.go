package collect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shivpratapsingh111/adcollect/internal/cache"
	domain "github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
)

// scriptedLDAPClient routes Search calls by a substring of the request
// filter, since the stealth builder issues several differently-shaped
// queries against what is, in these tests, a single fake connection.
type scriptedLDAPClient struct {
	byFilterContains map[string][]domain.DirectoryObject
	hostToSID        map[string]string
	searchCalls      atomic.Int32
}

func (c *scriptedLDAPClient) Search(ctx context.Context, req ldap.SearchRequest) (<-chan domain.DirectoryObject, <-chan error) {
	c.searchCalls.Add(1)
	var matched []domain.DirectoryObject
	for frag, objs := range c.byFilterContains {
		if strings.Contains(req.Filter, frag) {
			matched = objs
			break
		}
	}

	// Buffered and filled eagerly: build() consumes this with a plain
	// range, not a select against ctx, so there's no cancellation race to
	// model here.
	out := make(chan domain.DirectoryObject, len(matched))
	errs := make(chan error, 1)
	for _, o := range matched {
		out <- o
	}
	close(out)
	close(errs)
	return out, errs
}

func (c *scriptedLDAPClient) ResolveHostSID(ctx context.Context, host string) (string, error) {
	if sid, ok := c.hostToSID[host]; ok {
		return sid, nil
	}
	return "", fmt.Errorf("host %q not found", host)
}

func (c *scriptedLDAPClient) Close() error { return nil }

func stealthNCSet() NCSet {
	return NCSet{
		Default: NCQuery{Filter: "(objectClass=*)", Attributes: []string{"objectclass", "objectsid"}},
		Config:  NCQuery{Filter: "(objectClass=container)", Attributes: []string{"objectclass"}},
	}
}

func TestStealthTargetBuilderExtractsHostsAndResolvesSID(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")

	userWithPath := domain.NewAttributeObject("CN=alice,DC=corp,DC=local", map[string]string{
		"objectclass":    "user",
		"homedirectory":  `\\HOST1\home\alice`,
	})
	resolvedComputer := domain.NewAttributeObject("CN=HOST1,DC=corp,DC=local", map[string]string{
		"objectclass": "computer",
		"objectsid":   "S-1-5-21-9-9-500",
	})

	client := &scriptedLDAPClient{
		byFilterContains: map[string][]domain.DirectoryObject{
			"homedirectory":  {userWithPath},
			"objectSid=S-1-5-21-9-9-500": {resolvedComputer},
		},
		hostToSID: map[string]string{"HOST1": "S-1-5-21-9-9-500"},
	}

	builder := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: client}, stealthNCSet(), true, nil)

	require.NoError(t, builder.Build(context.Background()))

	targets := builder.Targets()
	require.Contains(t, targets, "S-1-5-21-9-9-500")
}

func TestStealthTargetBuilderBuildIsMemoizedAcrossConcurrentCallers(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	client := &scriptedLDAPClient{byFilterContains: map[string][]domain.DirectoryObject{}}
	builder := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: client}, stealthNCSet(), true, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = builder.Build(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// Two scans per domain (user-path sweep + config-nc sweep), regardless
	// of how many goroutines called Build concurrently.
	require.Equal(t, int32(2), client.searchCalls.Load())
}

func TestStealthTargetBuilderMergesDomainControllersUnlessExcluded(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	dc := domain.NewAttributeObject("CN=DC1,DC=corp,DC=local", map[string]string{
		"objectclass": "computer",
		"objectsid":   "S-1-5-21-1-1000",
	})

	clientIncluding := &scriptedLDAPClient{byFilterContains: map[string][]domain.DirectoryObject{
		"primaryGroupID=516": {dc},
	}}
	builderIncluding := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: clientIncluding}, stealthNCSet(), false, nil)
	require.NoError(t, builderIncluding.Build(context.Background()))
	require.Contains(t, builderIncluding.Targets(), "S-1-5-21-1-1000")

	clientExcluding := &scriptedLDAPClient{byFilterContains: map[string][]domain.DirectoryObject{
		"primaryGroupID=516": {dc},
	}}
	builderExcluding := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: clientExcluding}, stealthNCSet(), true, nil)
	require.NoError(t, builderExcluding.Build(context.Background()))
	require.NotContains(t, builderExcluding.Targets(), "S-1-5-21-1-1000")
}

func TestStealthTargetBuilderConfigTargetsSeparateFromDefaultTargets(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	configObj := domain.NewAttributeObject("CN=Sites,CN=Configuration,DC=corp,DC=local", map[string]string{
		"objectclass": "container",
	})

	client := &scriptedLDAPClient{byFilterContains: map[string][]domain.DirectoryObject{
		"objectClass=container": {configObj},
	}}
	builder := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: client}, stealthNCSet(), true, nil)
	require.NoError(t, builder.Build(context.Background()))

	require.Empty(t, builder.Targets())
	require.Len(t, builder.ConfigTargets(), 1)
	require.Contains(t, builder.ConfigTargets(), "CN=Sites,CN=Configuration,DC=corp,DC=local")
}

func TestStealthTargetBuilderBuildRespectsContextCancellation(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	client := &scriptedLDAPClient{byFilterContains: map[string][]domain.DirectoryObject{}}
	builder := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: client}, stealthNCSet(), true, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := builder.Build(ctx)
	// Either the build itself raced past the already-expired deadline and
	// succeeded, or Build observed ctx.Done() first; both are acceptable,
	// but a panic or hang is not.
	_ = err
}

func TestStealthTargetBuilderResolveHostConsultsCacheBeforeLDAP(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	resolvedComputer := domain.NewAttributeObject("CN=HOST1,DC=corp,DC=local", map[string]string{
		"objectclass": "computer",
		"objectsid":   "S-1-5-21-9-9-500",
	})
	client := &scriptedLDAPClient{
		byFilterContains: map[string][]domain.DirectoryObject{
			"objectSid=S-1-5-21-9-9-500": {resolvedComputer},
		},
		// No hostToSID entry: if resolveHost fell through to LDAP despite
		// the cache hit, ResolveHostSID would fail and the host would be
		// dropped.
		hostToSID: map[string]string{},
	}

	builder := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: client}, stealthNCSet(), true, nil)
	builder.Cache = cache.New()
	builder.Cache.PutHostResolution("HOST1", "S-1-5-21-9-9-500")

	sid, resolvedClient, baseDN := builder.resolveHost(context.Background(), "HOST1")
	require.Equal(t, "S-1-5-21-9-9-500", sid)
	require.Same(t, client, resolvedClient)
	require.Equal(t, "DC=CORP,DC=LOCAL", baseDN)
}

func TestStealthTargetBuilderResolveHostPopulatesCacheOnMiss(t *testing.T) {
	dom := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	client := &scriptedLDAPClient{
		byFilterContains: map[string][]domain.DirectoryObject{},
		hostToSID:        map[string]string{"HOST1": "S-1-5-21-9-9-500"},
	}

	builder := NewStealthTargetBuilder([]domain.EnumerationDomain{dom}, DomainClients{dom.DomainSid: client}, stealthNCSet(), true, nil)
	builder.Cache = cache.New()

	sid, _, _ := builder.resolveHost(context.Background(), "HOST1")
	require.Equal(t, "S-1-5-21-9-9-500", sid)

	cached, ok := builder.Cache.HostResolution("HOST1")
	require.True(t, ok)
	require.Equal(t, "S-1-5-21-9-9-500", cached)
}

func TestExtractUNCHost(t *testing.T) {
	require.Equal(t, "HOST1", extractUNCHost(`\\HOST1\share\path`))
	require.Equal(t, "HOST1", extractUNCHost(`\\HOST1`))
	require.Equal(t, "", extractUNCHost(`C:\local\path`))
	require.Equal(t, "", extractUNCHost(""))
}
