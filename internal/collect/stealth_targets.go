package collect

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/cache"
	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// StealthTargetBuilder builds the stealth target set exactly once and
// makes that build awaitable, correcting the fire-and-forget
// "_stealthTargetsBuilt" bit flagged in spec.md §9: every caller — the
// default-NC and config-NC emission paths, and every loop pass — calls
// Build and blocks until the single underlying build this process will
// ever run has finished, instead of racing a bare boolean.
//
// It is created on first use and held by the LinkRunner, which hands
// the same instance to the Stealth Producer of the base pass and of
// every loop pass, rather than held as process-global state.
type StealthTargetBuilder struct {
	Domains           []collect.EnumerationDomain
	Clients           DomainClients
	NC                NCSet
	ExcludeDCs        bool
	Log               *logger.Logger

	// Cache and Metrics are optional. When Cache is set, resolveHost
	// consults it before issuing an LDAP round trip and records every
	// fresh resolution back into it (SPEC_FULL.md §7).
	Cache   *cache.Cache
	Metrics *metrics.Collector

	once     sync.Once
	done     chan struct{}
	buildErr error

	mu            sync.RWMutex
	targets       map[string]collect.DirectoryObject
	configTargets map[string]collect.DirectoryObject
}

// NewStealthTargetBuilder constructs a builder over domains/clients. Call
// Build before reading Targets/ConfigTargets.
func NewStealthTargetBuilder(domains []collect.EnumerationDomain, clients DomainClients, nc NCSet, excludeDCs bool, log *logger.Logger) *StealthTargetBuilder {
	return &StealthTargetBuilder{
		Domains:    domains,
		Clients:    clients,
		NC:         nc,
		ExcludeDCs: excludeDCs,
		Log:        newProducerLogger(log),
		done:       make(chan struct{}),
	}
}

// Build runs the three-step target derivation exactly once for the
// lifetime of this builder; every subsequent call — including concurrent
// ones, including ones made on a later loop pass reusing the same
// builder — blocks only until that single build completes, then returns
// its cached result.
func (b *StealthTargetBuilder) Build(ctx context.Context) error {
	b.once.Do(func() {
		b.buildErr = b.build(ctx)
		close(b.done)
	})

	select {
	case <-b.done:
		return b.buildErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Targets returns the default-NC stealth target set, keyed by SID. Valid
// only after Build has returned successfully.
func (b *StealthTargetBuilder) Targets() map[string]collect.DirectoryObject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.targets
}

// ConfigTargets returns the configuration-partition result set the
// ProduceConfigNC path streams. Separate from Targets: spec.md §9 flags
// the original implementation for using the default-NC data on this
// path by mistake, so this builder keeps the two sets distinct from the
// start.
func (b *StealthTargetBuilder) ConfigTargets() map[string]collect.DirectoryObject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configTargets
}

func (b *StealthTargetBuilder) build(ctx context.Context) error {
	hosts := map[string]struct{}{}

	pathAttrs := []string{"homedirectory", "scriptpath", "profilepath"}
	userFilter := "(&(objectClass=user)(|(homedirectory=*)(scriptpath=*)(profilepath=*)))"

	for _, domain := range b.Domains {
		client, ok := b.Clients[domain.DomainSid]
		if !ok {
			continue
		}

		objects, errs := client.Search(ctx, ldap.SearchRequest{
			BaseDN:     domainDN(domain.Name),
			Filter:     userFilter,
			Attributes: pathAttrs,
			Scope:      gldap.ScopeWholeSubtree,
		})

		for obj := range objects {
			for _, attr := range pathAttrs {
				v, ok := obj.GetProperty(attr)
				if !ok {
					continue
				}
				if host := extractUNCHost(v); host != "" {
					hosts[strings.ToUpper(host)] = struct{}{}
				}
			}
		}
		if err := <-errs; err != nil {
			b.Log.Warn(ctx, "stealth target scan failed for domain, continuing", "domain", domain.Name, "error", fmt.Sprint(err))
		}
	}

	targets := map[string]collect.DirectoryObject{}
	for host := range hosts {
		targets[host] = nil // placeholder, resolved below
	}

	for host := range hosts {
		if err := ctx.Err(); err != nil {
			return err
		}
		sid, client, baseDN := b.resolveHost(ctx, host)
		if sid == "" || !strings.HasPrefix(sid, "S-1-5") {
			continue
		}
		obj, err := b.fetchBySID(ctx, client, baseDN, sid, b.NC.Default)
		if err != nil {
			b.Log.Warn(ctx, "stealth host resolved but entry fetch failed", "host", host, "sid", sid, "error", fmt.Sprint(err))
			continue
		}
		targets[sid] = obj
	}
	// hosts were only placeholders keying the resolution loop above; the
	// final set is keyed by SID.
	for host := range hosts {
		delete(targets, host)
	}

	if !b.ExcludeDCs {
		b.mergeDomainControllers(ctx, targets)
	}

	configTargets := map[string]collect.DirectoryObject{}
	for _, domain := range b.Domains {
		client, ok := b.Clients[domain.DomainSid]
		if !ok {
			continue
		}
		objects, errs := client.Search(ctx, ldap.SearchRequest{
			BaseDN:     configDN(domain.Name),
			Filter:     b.NC.Config.Filter,
			Attributes: b.NC.Config.Attributes,
			Scope:      gldap.ScopeWholeSubtree,
		})
		for obj := range objects {
			configTargets[obj.DistinguishedName()] = obj
		}
		if err := <-errs; err != nil {
			b.Log.Warn(ctx, "stealth config-nc scan failed for domain, continuing", "domain", domain.Name, "error", fmt.Sprint(err))
		}
	}

	b.mu.Lock()
	b.targets = targets
	b.configTargets = configTargets
	b.mu.Unlock()
	return nil
}

func (b *StealthTargetBuilder) resolveHost(ctx context.Context, host string) (sid string, client ldap.Client, baseDN string) {
	if b.Cache != nil {
		if cached, ok := b.Cache.HostResolution(host); ok {
			if b.Metrics != nil {
				b.Metrics.CacheHits.Inc()
			}
			for _, domain := range b.Domains {
				if c, ok := b.Clients[domain.DomainSid]; ok {
					return cached, c, domainDN(domain.Name)
				}
			}
		} else if b.Metrics != nil {
			b.Metrics.CacheMisses.Inc()
		}
	}

	for _, domain := range b.Domains {
		c, ok := b.Clients[domain.DomainSid]
		if !ok {
			continue
		}
		resolved, err := c.ResolveHostSID(ctx, host)
		if err == nil && resolved != "" {
			if b.Cache != nil {
				b.Cache.PutHostResolution(host, resolved)
			}
			return resolved, c, domainDN(domain.Name)
		}
	}
	return "", nil, ""
}

func (b *StealthTargetBuilder) fetchBySID(ctx context.Context, client ldap.Client, baseDN, sid string, q NCQuery) (collect.DirectoryObject, error) {
	if client == nil {
		return nil, fmt.Errorf("no client available to fetch sid %q", sid)
	}
	filter := fmt.Sprintf("(objectSid=%s)", gldap.EscapeFilter(sid))
	objects, errs := client.Search(ctx, ldap.SearchRequest{
		BaseDN:     baseDN,
		Filter:     filter,
		Attributes: q.Attributes,
		Scope:      gldap.ScopeWholeSubtree,
	})
	obj, ok := <-objects
	if !ok {
		if err := <-errs; err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sid %q not found", sid)
	}
	return obj, nil
}

func (b *StealthTargetBuilder) mergeDomainControllers(ctx context.Context, targets map[string]collect.DirectoryObject) {
	const dcFilter = "(&(objectCategory=computer)(primaryGroupID=516))"
	for _, domain := range b.Domains {
		client, ok := b.Clients[domain.DomainSid]
		if !ok {
			continue
		}
		objects, errs := client.Search(ctx, ldap.SearchRequest{
			BaseDN:     domainDN(domain.Name),
			Filter:     dcFilter,
			Attributes: b.NC.Default.Attributes,
			Scope:      gldap.ScopeWholeSubtree,
		})
		for obj := range objects {
			if sid, ok := obj.TryGetSecurityIdentifier(); ok {
				targets[sid] = obj
			}
		}
		if err := <-errs; err != nil {
			b.Log.Warn(ctx, "stealth domain controller scan failed, continuing", "domain", domain.Name, "error", fmt.Sprint(err))
		}
	}
}

// extractUNCHost pulls the host component out of a UNC-style path
// (\\host\share\...), returning "" if v isn't one.
func extractUNCHost(v string) string {
	if !strings.HasPrefix(v, `\\`) {
		return ""
	}
	rest := v[2:]
	if idx := strings.IndexByte(rest, '\\'); idx >= 0 {
		return rest[:idx]
	}
	return rest
}
