package collect

import (
	"context"
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
)

// ldapTrustReader implements TrustReader against a bound LDAP client,
// resolving a domain's own identity from its root object and its trust
// edges from the trustedDomain objects directly under its CN=System
// container.
type ldapTrustReader struct {
	dialer ldap.Dialer
	port   int
}

// NewLDAPTrustReader builds a TrustReader that dials a fresh connection
// to each domain it's asked about, using dialer's credentials for every
// bind (trust discovery happens before per-domain clients exist, so it
// can't reuse them).
func NewLDAPTrustReader(dialer ldap.Dialer) TrustReader {
	return &ldapTrustReader{dialer: dialer}
}

func (r *ldapTrustReader) ResolveDomain(ctx context.Context, name string) (collect.EnumerationDomain, error) {
	client, err := r.dialer.Dial(ctx, name)
	if err != nil {
		return collect.EnumerationDomain{}, fmt.Errorf("dialing %q: %w", name, err)
	}
	defer client.Close()

	req := ldap.SearchRequest{
		BaseDN:     domainDN(strings.ToUpper(name)),
		Filter:     "(objectClass=domainDNS)",
		Attributes: []string{"objectSid"},
		Scope:      goldap.ScopeBaseObject,
	}
	out, errs := client.Search(ctx, req)

	var sid string
	for obj := range out {
		if s, ok := obj.TryGetSecurityIdentifier(); ok {
			sid = s
		}
	}
	if err := <-errs; err != nil {
		return collect.EnumerationDomain{}, fmt.Errorf("resolving domain %q: %w", name, err)
	}

	return collect.NewEnumerationDomain(name, sid), nil
}

func (r *ldapTrustReader) ListTrusts(ctx context.Context, domain collect.EnumerationDomain) ([]collect.TrustRecord, error) {
	client, err := r.dialer.Dial(ctx, domain.Name)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", domain.Name, err)
	}
	defer client.Close()

	req := ldap.SearchRequest{
		BaseDN:     "CN=System," + domainDN(domain.Name),
		Filter:     "(objectClass=trustedDomain)",
		Attributes: []string{"trustpartner", "trustdirection", "objectsid"},
		Scope:      goldap.ScopeSingleLevel,
	}
	out, errs := client.Search(ctx, req)

	var trusts []collect.TrustRecord
	for obj := range out {
		partner, _ := obj.GetProperty("trustpartner")
		dirRaw, _ := obj.GetProperty("trustdirection")
		sid, _ := obj.TryGetSecurityIdentifier()

		trusts = append(trusts, collect.TrustRecord{
			SourceDomainSid:  domain.DomainSid,
			TargetDomainSid:  strings.ToUpper(sid),
			TargetDomainFQDN: partner,
			Direction:        parseTrustDirection(dirRaw),
		})
	}
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("listing trusts for %q: %w", domain.Name, err)
	}

	return trusts, nil
}

// parseTrustDirection maps MS-ADTS's trustDirection attribute (a small
// integer: 0 disabled, 1 inbound, 2 outbound, 3 bidirectional) onto the
// domain enum.
func parseTrustDirection(raw string) collect.TrustDirection {
	switch raw {
	case "1":
		return collect.TrustInbound
	case "2":
		return collect.TrustOutbound
	case "3":
		return collect.TrustBidirectional
	default:
		return collect.TrustDisabled
	}
}
