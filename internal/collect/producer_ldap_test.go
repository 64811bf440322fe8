package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// erroringLDAPClient streams a handful of objects and then fails, to
// exercise the "log and abandon this domain's stream" path without
// faulting the whole run.
type erroringLDAPClient struct {
	objects []domain.DirectoryObject
	failErr error
}

func (c *erroringLDAPClient) Search(ctx context.Context, req ldap.SearchRequest) (<-chan domain.DirectoryObject, <-chan error) {
	out := make(chan domain.DirectoryObject)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		for _, o := range c.objects {
			select {
			case out <- o:
			case <-ctx.Done():
				return
			}
		}
		errs <- c.failErr
	}()
	return out, errs
}

func (c *erroringLDAPClient) ResolveHostSID(ctx context.Context, host string) (string, error) {
	return "", errors.New("not supported in fake")
}

func (c *erroringLDAPClient) Close() error { return nil }

func defaultNCSet() NCSet {
	return NCSet{
		Default: NCQuery{Filter: "(objectClass=*)", Attributes: []string{"objectclass"}},
		Config:  NCQuery{Filter: "(objectClass=*)", Attributes: []string{"objectclass"}},
	}
}

func TestLDAPProducerStreamsEveryDomain(t *testing.T) {
	domA := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	domB := domain.NewEnumerationDomain("child.corp.local", "S-1-5-21-2")

	clientA := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domain.NewAttributeObject("CN=a1,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}
	clientB := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domain.NewAttributeObject("CN=b1,DC=child,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
		domain.NewAttributeObject("CN=b2,DC=child,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}

	clients := DomainClients{domA.DomainSid: clientA, domB.DomainSid: clientB}
	producer := NewLDAPProducer([]domain.EnumerationDomain{domA, domB}, clients, defaultNCSet(), logger.NewNop())

	rc, ctx := domain.NewRunContext(context.Background())
	out := make(chan domain.DirectoryObject, 10)

	err := producer.Produce(ctx, rc, out)
	close(out)
	require.NoError(t, err)

	var got []domain.DirectoryObject
	for o := range out {
		got = append(got, o)
	}
	require.Len(t, got, 3)
}

func TestLDAPProducerSkipsDomainWithoutBoundClient(t *testing.T) {
	domA := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	domB := domain.NewEnumerationDomain("unbound.local", "S-1-5-21-2")

	clientA := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domain.NewAttributeObject("CN=a1,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}

	clients := DomainClients{domA.DomainSid: clientA}
	producer := NewLDAPProducer([]domain.EnumerationDomain{domA, domB}, clients, defaultNCSet(), logger.NewNop())

	rc, ctx := domain.NewRunContext(context.Background())
	out := make(chan domain.DirectoryObject, 10)

	err := producer.Produce(ctx, rc, out)
	close(out)
	require.NoError(t, err)

	var got []domain.DirectoryObject
	for o := range out {
		got = append(got, o)
	}
	require.Len(t, got, 1)
	require.False(t, rc.IsFaulted())
}

func TestLDAPProducerAbandonsStreamOnErrorWithoutFaulting(t *testing.T) {
	domA := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")

	client := &erroringLDAPClient{
		objects: []domain.DirectoryObject{
			domain.NewAttributeObject("CN=a1,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
		},
		failErr: errors.New("paging cookie expired"),
	}

	clients := DomainClients{domA.DomainSid: client}
	producer := NewLDAPProducer([]domain.EnumerationDomain{domA}, clients, defaultNCSet(), logger.NewNop())

	rc, ctx := domain.NewRunContext(context.Background())
	out := make(chan domain.DirectoryObject, 10)

	err := producer.Produce(ctx, rc, out)
	close(out)
	require.NoError(t, err)
	require.False(t, rc.IsFaulted())

	var got []domain.DirectoryObject
	for o := range out {
		got = append(got, o)
	}
	require.Len(t, got, 1)
}

func TestLDAPProducerConfigNCUsesConfigDN(t *testing.T) {
	domA := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	client := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domain.NewAttributeObject("CN=schema,CN=Configuration,DC=corp,DC=local", map[string]string{"objectclass": "container"}),
	}}
	clients := DomainClients{domA.DomainSid: client}
	producer := NewLDAPProducer([]domain.EnumerationDomain{domA}, clients, defaultNCSet(), logger.NewNop())

	rc, ctx := domain.NewRunContext(context.Background())
	out := make(chan domain.DirectoryObject, 10)

	err := producer.ProduceConfigNC(ctx, rc, out)
	close(out)
	require.NoError(t, err)

	var got []domain.DirectoryObject
	for o := range out {
		got = append(got, o)
	}
	require.Len(t, got, 1)
}

func TestLDAPProducerStopsOnDeferredCancellation(t *testing.T) {
	domA := domain.NewEnumerationDomain("corp.local", "S-1-5-21-1")
	domB := domain.NewEnumerationDomain("child.corp.local", "S-1-5-21-2")

	clientA := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domain.NewAttributeObject("CN=a1,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}
	clientB := &fakeLDAPClient{objects: []domain.DirectoryObject{
		domain.NewAttributeObject("CN=b1,DC=child,DC=corp,DC=local", map[string]string{"objectclass": "user"}),
	}}
	clients := DomainClients{domA.DomainSid: clientA, domB.DomainSid: clientB}
	producer := NewLDAPProducer([]domain.EnumerationDomain{domA, domB}, clients, defaultNCSet(), logger.NewNop())

	rc, ctx := domain.NewRunContext(context.Background())
	rc.RequestCancellation(false)
	out := make(chan domain.DirectoryObject, 10)

	err := producer.Produce(ctx, rc, out)
	close(out)
	require.NoError(t, err)

	var got []domain.DirectoryObject
	for range out {
		got = append(got, domain.DirectoryObject(nil))
	}
	require.Len(t, got, 0)
}
