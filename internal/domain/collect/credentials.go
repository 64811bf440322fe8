package collect

import "fmt"

// CredentialKind distinguishes how the LDAP bind is authenticated. Modeled
// after the teacher's TaskCredentials tagged-value-object (pkg/messaging's
// CredentialType for GitHub/S3 auth), generalized to the two bind modes
// SharpHound-class collectors support: the caller's own Windows identity,
// or an explicit username/password pair.
type CredentialKind string

const (
	CredentialIntegrated CredentialKind = "integrated"
	CredentialExplicit   CredentialKind = "explicit"
)

// Credentials carries the LDAP bind identity. Username and Password must
// be both-or-neither set (spec.md §4.1's Initialize check); constructing
// through NewExplicitCredentials enforces that at the boundary.
type Credentials struct {
	Kind     CredentialKind
	Username string
	Password string
}

// IntegratedCredentials uses the process's own security context to bind,
// the default when no username/password flags are supplied.
func IntegratedCredentials() Credentials {
	return Credentials{Kind: CredentialIntegrated}
}

// NewExplicitCredentials validates that username and password are either
// both present or both absent before constructing an explicit credential.
func NewExplicitCredentials(username, password string) (Credentials, error) {
	if (username == "") != (password == "") {
		return Credentials{}, fmt.Errorf("ldap credentials: username and password must both be set or both be empty")
	}
	if username == "" {
		return IntegratedCredentials(), nil
	}
	return Credentials{Kind: CredentialExplicit, Username: username, Password: password}, nil
}
