package collect

import (
	"context"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
)

// ldapForestReader implements ForestReader against a bound LDAP client,
// reading the Partitions container under the Configuration naming
// context rather than any domain's trust objects. The Configuration NC
// is replicated to every domain controller in the forest, so it can be
// read from whichever domain the run was invoked against and still
// enumerate every domain the forest has, including siblings the initial
// domain never negotiated a trust with.
type ldapForestReader struct {
	dialer   ldap.Dialer
	resolver domainResolver
}

// domainResolver is the narrow slice of TrustReader forest discovery
// reuses to turn a bare DNS name into a SID-bearing EnumerationDomain,
// without pulling in ListTrusts.
type domainResolver interface {
	ResolveDomain(ctx context.Context, name string) (collect.EnumerationDomain, error)
}

// NewLDAPForestReader builds a ForestReader that dials dialer for both
// the Partitions query and the per-domain SID lookups it triggers.
func NewLDAPForestReader(dialer ldap.Dialer) ForestReader {
	return &ldapForestReader{dialer: dialer, resolver: NewLDAPTrustReader(dialer)}
}

// ListForestDomains reads CN=Partitions,CN=Configuration,<initial's DN>
// for crossRef objects flagged FLAG_CR_NTDS_DOMAIN (systemFlags bit 0x1),
// the standard AD marker distinguishing domain partitions from the
// Schema and Configuration cross-references that also live there. The
// initial domain itself is excluded from the result; Discover already
// carries it at index 0.
func (r *ldapForestReader) ListForestDomains(ctx context.Context, initial collect.EnumerationDomain) ([]collect.EnumerationDomain, error) {
	client, err := r.dialer.Dial(ctx, initial.Name)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", initial.Name, err)
	}
	defer client.Close()

	req := ldap.SearchRequest{
		BaseDN:     "CN=Partitions,CN=Configuration," + domainDN(initial.Name),
		Filter:     "(&(objectClass=crossRef)(systemFlags:1.2.840.113556.1.4.803:=1)(dnsRoot=*))",
		Attributes: []string{"dnsRoot", "nCName"},
		Scope:      goldap.ScopeSingleLevel,
	}
	out, errs := client.Search(ctx, req)

	var dnsRoots []string
	for obj := range out {
		dnsRoot, ok := obj.GetProperty("dnsroot")
		if !ok || strings.EqualFold(dnsRoot, initial.Name) {
			continue
		}
		dnsRoots = append(dnsRoots, dnsRoot)
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("listing forest partitions for %q: %w", initial.Name, err)
	}

	domains := make([]collect.EnumerationDomain, 0, len(dnsRoots))
	for _, name := range dnsRoots {
		d, err := r.resolver.ResolveDomain(ctx, name)
		if err != nil {
			// A partition whose domain head object can't be read (a
			// partial DC, a partition mid-creation) is dropped rather
			// than faulting the whole forest query over one member.
			continue
		}
		domains = append(domains, d)
	}

	return domains, nil
}
