package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	domain "github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
)

// fakeLDAPClient replays a fixed object list on every Search call,
// enough to drive the Link Runner's sequence without a real directory.
type fakeLDAPClient struct {
	objects []domain.DirectoryObject
}

func (f *fakeLDAPClient) Search(ctx context.Context, req ldap.SearchRequest) (<-chan domain.DirectoryObject, <-chan error) {
	// Unbuffered, matching connClient.Search: every send blocks until the
	// drain loop receives it, so the deferred channel closes below can
	// only run after every object has actually been forwarded.
	out := make(chan domain.DirectoryObject)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, o := range f.objects {
			select {
			case out <- o:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}

func (f *fakeLDAPClient) ResolveHostSID(ctx context.Context, host string) (string, error) {
	return "", errors.New("not supported in fake")
}

func (f *fakeLDAPClient) Close() error { return nil }

type fakeDialer struct {
	client *fakeLDAPClient
	dialErr error
}

func (d *fakeDialer) Dial(ctx context.Context, server string) (ldap.Client, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.client, nil
}

func domainObjectWithSID(sid string) domain.DirectoryObject {
	return domain.NewAttributeObject("DC=corp,DC=local", map[string]string{
		"objectsid":   sid,
		"objectclass": "domainDNS",
	})
}

func TestLinkRunnerHappyPathSingleDomainNoLoop(t *testing.T) {
	dir := t.TempDir()

	client := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domainObjectWithSID("S-1-5-21-1-2-3"),
		domain.NewAttributeObject("CN=alice,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}
	dialer := &fakeDialer{client: client}

	registry := domain.ProcessorRegistry{domain.ObjectUser: echoUserProcessor{}, domain.ObjectDomain: echoUserProcessor{}}

	opts := DefaultOptions()
	opts.Domain = "corp.local"
	opts.SkipPortCheck = true
	opts.OutputDirectory = dir
	opts.Threads = 1
	opts.MemCache = true

	runner := NewLinkRunner(dialer, nil, NewMemCheckpointStore(), registry, nil, nil, noop.NewTracerProvider().Tracer("test"), opts)

	rc, ctx := domain.NewRunContext(context.Background())

	reason := runner.Run(ctx, rc)
	require.Equal(t, "", reason)
	require.False(t, rc.IsFaulted())
	require.Len(t, rc.Domains, 1)
}

func TestBuildNCSetDCOnlyExcludesUsersAndWorkstations(t *testing.T) {
	runner := &LinkRunner{}

	rc, _ := domain.NewRunContext(context.Background())
	rc.DCOnly = true
	nc := runner.buildNCSet(rc)

	require.NotContains(t, nc.Default.Filter, "objectClass=user")
	require.Contains(t, nc.Default.Filter, "primaryGroupID=516")

	rc.DCOnly = false
	nc = runner.buildNCSet(rc)
	require.Contains(t, nc.Default.Filter, "objectClass=user")
}

func TestLinkRunnerFaultsOnConnectionFailure(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}
	opts := DefaultOptions()
	opts.Domain = "corp.local"
	runner := NewLinkRunner(dialer, nil, NewMemCheckpointStore(), domain.ProcessorRegistry{}, nil, nil, noop.NewTracerProvider().Tracer("test"), opts)

	rc, ctx := domain.NewRunContext(context.Background())

	reason := runner.Run(ctx, rc)
	require.NotEqual(t, "", reason)
	require.True(t, rc.IsFaulted())
}

// TestLinkRunnerFaultsOnInitializeValidationFailure exercises spec.md's
// Scenario S6: a username with no matching password fails validation
// inside the Initialize link, and that fault must short-circuit every
// later link, including TestConnection, so no dial is ever attempted.
func TestLinkRunnerFaultsOnInitializeValidationFailure(t *testing.T) {
	dialer := &fakeDialer{client: &fakeLDAPClient{}}
	opts := DefaultOptions()
	opts.Domain = "corp.local"
	opts.LdapUsername = "alice"
	// opts.LdapPassword intentionally left empty.
	runner := NewLinkRunner(dialer, nil, NewMemCheckpointStore(), domain.ProcessorRegistry{}, nil, nil, noop.NewTracerProvider().Tracer("test"), opts)

	rc, ctx := domain.NewRunContext(context.Background())

	reason := runner.Run(ctx, rc)
	require.NotEqual(t, "", reason)
	require.True(t, rc.IsFaulted())
	require.Empty(t, rc.Domains)
}

func TestLinkRunnerRunsLoopPhase(t *testing.T) {
	dir := t.TempDir()

	client := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domainObjectWithSID("S-1-5-21-1-2-3"),
		domain.NewAttributeObject("CN=alice,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}
	dialer := &fakeDialer{client: client}
	registry := domain.ProcessorRegistry{domain.ObjectUser: echoUserProcessor{}, domain.ObjectDomain: echoUserProcessor{}}

	opts := DefaultOptions()
	opts.Domain = "corp.local"
	opts.SkipPortCheck = true
	opts.OutputDirectory = dir
	opts.Threads = 1
	opts.MemCache = true
	opts.Loop = true
	opts.LoopDuration = 80 * time.Millisecond
	opts.LoopInterval = 10 * time.Millisecond

	runner := NewLinkRunner(dialer, nil, NewMemCheckpointStore(), registry, nil, nil, noop.NewTracerProvider().Tracer("test"), opts)

	rc, ctx := domain.NewRunContext(context.Background())

	reason := runner.Run(ctx, rc)
	require.Equal(t, "", reason)
}
