package collect

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	gldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/cache"
	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// ComputerFileProducer resolves an explicit, caller-supplied host list
// instead of querying LDAP broadly (spec.md §4.3). ProduceConfigNC is a
// deliberate no-op: a fixed host list has no configuration-partition
// analogue.
type ComputerFileProducer struct {
	Path    string
	Domains []collect.EnumerationDomain
	Clients DomainClients
	NC      NCQuery
	Log     *logger.Logger

	// Cache and Metrics are optional. When Cache is set, resolveSID
	// consults it before issuing an LDAP round trip (SPEC_FULL.md §7).
	Cache   *cache.Cache
	Metrics *metrics.Collector
}

// NewComputerFileProducer builds a producer that reads hosts/SIDs from
// path, resolving against domains.
func NewComputerFileProducer(path string, domains []collect.EnumerationDomain, clients DomainClients, nc NCQuery, log *logger.Logger) *ComputerFileProducer {
	return &ComputerFileProducer{Path: path, Domains: domains, Clients: clients, NC: nc, Log: newProducerLogger(log)}
}

func (p *ComputerFileProducer) Produce(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error {
	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("opening computer file %q: %w", p.Path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rc.NeedsCancellation() {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sid, err := p.resolveSID(ctx, line)
		if err != nil {
			p.Log.Warn(ctx, "computer file entry did not resolve, skipping", "entry", line, "error", fmt.Sprint(err))
			continue
		}

		obj, err := p.fetchBySID(ctx, sid)
		if err != nil {
			p.Log.Warn(ctx, "computer file sid lookup failed, skipping", "entry", line, "sid", sid, "error", fmt.Sprint(err))
			continue
		}

		if !emit(ctx, rc, out, obj) {
			return nil
		}
	}
	return scanner.Err()
}

// ProduceConfigNC is a no-op: a fixed host list has no configuration
// naming context to stream (spec.md §4.3).
func (p *ComputerFileProducer) ProduceConfigNC(ctx context.Context, rc *collect.RunContext, out chan<- collect.DirectoryObject) error {
	return nil
}

func (p *ComputerFileProducer) resolveSID(ctx context.Context, line string) (string, error) {
	if strings.HasPrefix(line, "S-1-5-21") {
		return line, nil
	}

	host := strings.ToUpper(line)
	if p.Cache != nil {
		if cached, ok := p.Cache.HostResolution(host); ok {
			if p.Metrics != nil {
				p.Metrics.CacheHits.Inc()
			}
			return cached, nil
		}
		if p.Metrics != nil {
			p.Metrics.CacheMisses.Inc()
		}
	}

	for _, client := range p.Clients {
		sid, err := client.ResolveHostSID(ctx, line)
		if err == nil && sid != "" {
			if p.Cache != nil {
				p.Cache.PutHostResolution(host, sid)
			}
			return sid, nil
		}
	}
	return "", fmt.Errorf("no client could resolve host %q", line)
}

func (p *ComputerFileProducer) fetchBySID(ctx context.Context, sid string) (collect.DirectoryObject, error) {
	filter := fmt.Sprintf("(objectSid=%s)", gldap.EscapeFilter(sid))
	for _, domain := range p.Domains {
		client, ok := p.Clients[domain.DomainSid]
		if !ok {
			continue
		}
		objects, errs := client.Search(ctx, ldap.SearchRequest{
			BaseDN:     domainDN(domain.Name),
			Filter:     filter,
			Attributes: p.NC.Attributes,
			Scope:      gldap.ScopeWholeSubtree,
		})
		obj, ok := <-objects
		if ok {
			return obj, nil
		}
		if err := <-errs; err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("sid %q not found in any target domain", sid)
}
