package collect

import (
	gldap "github.com/go-ldap/ldap/v3"

	"context"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// LDAPProducer is the default, full-coverage strategy: one paged query per
// naming context per target domain (spec.md §4.3).
type LDAPProducer struct {
	Domains []collect.EnumerationDomain
	Clients DomainClients
	NC      NCSet
	Log     *logger.Logger
}

// NewLDAPProducer constructs the default producer over domains, dialing
// each through the client already bound for its SID.
func NewLDAPProducer(domains []collect.EnumerationDomain, clients DomainClients, nc NCSet, log *logger.Logger) *LDAPProducer {
	return &LDAPProducer{Domains: domains, Clients: clients, NC: nc, Log: newProducerLogger(log)}
}

func (p *LDAPProducer) Produce(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error {
	return p.run(ctx, rc, out, p.NC.Default, domainDN)
}

func (p *LDAPProducer) ProduceConfigNC(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error {
	return p.run(ctx, rc, out, p.NC.Config, configDN)
}

func (p *LDAPProducer) run(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject, q NCQuery, baseDNFor func(string) string) error {
	for _, domain := range p.Domains {
		if rc.NeedsCancellation() {
			return nil
		}

		client, ok := p.Clients[domain.DomainSid]
		if !ok {
			p.Log.Warn(ctx, "no ldap client bound for domain, skipping", "domain", domain.Name)
			continue
		}

		objects, errs := client.Search(ctx, ldap.SearchRequest{
			BaseDN:     baseDNFor(domain.Name),
			Filter:     q.Filter,
			Attributes: q.Attributes,
			Scope:      gldap.ScopeWholeSubtree,
		})

		p.drain(ctx, rc, out, objects, errs, domain.Name)
	}
	return nil
}

// drain forwards every object from objects to out until either the
// stream completes, an error arrives (logged, stream abandoned, run not
// faulted per spec.md §7), or cancellation fires.
func (p *LDAPProducer) drain(
	ctx context.Context,
	rc *collect.RunContext,
	out chan<- collect.DirectoryObject,
	objects <-chan collect.DirectoryObject,
	errs <-chan error,
	domainName string,
) {
	for {
		select {
		case obj, ok := <-objects:
			if !ok {
				return
			}
			if !emit(ctx, rc, out, obj) {
				return
			}
		case err, ok := <-errs:
			if ok && err != nil {
				p.Log.Warn(ctx, "ldap producer stream error, abandoning stream", "domain", domainName, "error", fmt.Sprint(err))
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func configDN(name string) string {
	return "CN=Configuration," + domainDN(name)
}
