package ldap

import (
	"context"
	"fmt"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
)

// connClient is the production Client backed by a bound *goldap.Conn.
type connClient struct {
	conn    *goldap.Conn
	baseDN  string
	metrics *metrics.Collector
}

func (c *connClient) Close() error {
	return c.conn.Close()
}

// Search pages through results using goldap's SearchWithPaging, streaming
// each entry out as it's normalized, so a worker pool downstream can start
// processing before the whole result set has arrived.
func (c *connClient) Search(ctx context.Context, req SearchRequest) (<-chan collect.DirectoryObject, <-chan error) {
	out := make(chan collect.DirectoryObject)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		pageSize := req.PageSize
		if pageSize == 0 {
			pageSize = 1000
		}

		request := goldap.NewSearchRequest(
			req.BaseDN,
			req.Scope,
			goldap.NeverDerefAliases,
			0, 0, false,
			req.Filter,
			req.Attributes,
			nil,
		)

		start := time.Now()
		result, err := c.conn.SearchWithPaging(request, pageSize)
		if c.metrics != nil {
			c.metrics.LDAPQueryTime.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			errs <- fmt.Errorf("ldap search %q under %q: %w", req.Filter, req.BaseDN, err)
			return
		}

		for _, entry := range result.Entries {
			select {
			case out <- newEntryObject(entry):
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}

// ResolveHostSID binds a one-off search for a single computer object by
// SAM account name and decodes its objectSid, used by producers that
// enumerate hosts without a prior full LDAP sweep.
func (c *connClient) ResolveHostSID(ctx context.Context, host string) (string, error) {
	filter := fmt.Sprintf("(&(objectClass=computer)(sAMAccountName=%s$))", goldap.EscapeFilter(host))
	request := goldap.NewSearchRequest(
		c.baseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		1, 0, false,
		filter,
		[]string{"objectSid"},
		nil,
	)

	result, err := c.conn.Search(request)
	if err != nil {
		return "", fmt.Errorf("resolving sid for host %q: %w", host, err)
	}
	if len(result.Entries) == 0 {
		return "", fmt.Errorf("resolving sid for host %q: not found", host)
	}

	obj := newEntryObject(result.Entries[0])
	sid, ok := obj.TryGetSecurityIdentifier()
	if !ok {
		return "", fmt.Errorf("resolving sid for host %q: no objectSid attribute", host)
	}
	return sid, nil
}
