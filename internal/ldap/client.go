// Package ldap is the external collaborator boundary: everything the
// collector needs from an LDAP directory, behind a narrow port so the
// producers in internal/collect never import go-ldap/v3 directly. The
// shape is grounded on the retrieved f0oster/adSpy activedirectory
// package, which wraps the same library around a single base DN and a
// page size.
package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/metrics"
)

// SearchRequest describes one paged LDAP search.
type SearchRequest struct {
	BaseDN     string
	Filter     string
	Attributes []string
	PageSize   uint32
	Scope      int
}

// Client is the port the producers depend on. A concrete adapter wraps a
// real *goldap.Conn; tests can supply a fake.
type Client interface {
	// Search streams every entry matching req to the returned channel,
	// closing it when the search completes or ctx is canceled. Errors
	// encountered mid-stream are sent on the error channel and terminate
	// the search.
	Search(ctx context.Context, req SearchRequest) (<-chan collect.DirectoryObject, <-chan error)

	// ResolveHostSID resolves a computer's SAM account name to its
	// machine-account SID by binding to it directly, used by the stealth
	// and computer-file producers to avoid a full LDAP search per host.
	ResolveHostSID(ctx context.Context, host string) (string, error)

	// Close releases the underlying connection.
	Close() error
}

// Dialer opens authenticated connections to a directory, grounded on the
// teacher's factory pattern (internal/enumeration/factory.Factory) of
// centralizing how a collaborator is constructed from configuration.
type Dialer interface {
	Dial(ctx context.Context, server string) (Client, error)
}

// GoLDAPDialer is the production Dialer, backed by github.com/go-ldap/ldap/v3.
type GoLDAPDialer struct {
	Credentials             collect.Credentials
	BaseDN                  string
	Port                    int
	UseTLS                  bool
	DisableCertVerification bool
	Metrics                 *metrics.Collector
}

// NewGoLDAPDialer returns a Dialer that authenticates with creds and scopes
// host lookups to baseDN.
func NewGoLDAPDialer(creds collect.Credentials, baseDN string, port int, useTLS bool) *GoLDAPDialer {
	return &GoLDAPDialer{Credentials: creds, BaseDN: baseDN, Port: port, UseTLS: useTLS}
}

func (d *GoLDAPDialer) Dial(ctx context.Context, server string) (Client, error) {
	conn, err := dial(ctx, server, d.Port, d.UseTLS, d.DisableCertVerification)
	if err != nil {
		return nil, err
	}

	if d.Credentials.Kind == collect.CredentialExplicit {
		if err := conn.Bind(d.Credentials.Username, d.Credentials.Password); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &connClient{conn: conn, baseDN: d.BaseDN, metrics: d.Metrics}, nil
}

func dial(ctx context.Context, server string, port int, useTLS, skipCertVerify bool) (*goldap.Conn, error) {
	scheme := "ldap"
	if useTLS {
		scheme = "ldaps"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, server, port)
	opts := []goldap.DialOpt{goldap.DialWithDialer(&net.Dialer{Timeout: 30 * time.Second})}
	if useTLS && skipCertVerify {
		opts = append(opts, goldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec
	}
	return goldap.DialURL(url, opts...)
}

// CheckPort probes server:port with a short TCP dial, the fast pre-flight
// check SharpHound runs before attempting a full LDAP bind so a
// misconfigured or unreachable domain controller fails in milliseconds
// instead of waiting out a 30-second bind timeout.
func CheckPort(ctx context.Context, server string, port int, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", server, port))
	if err != nil {
		return fmt.Errorf("port check %s:%d: %w", server, port, err)
	}
	return conn.Close()
}
