package collect

import "context"

// Processor performs per-object enrichment (ACL parsing, session
// enumeration, registry queries, SPN parsing, ...). This core treats it
// as a pluggable external collaborator (spec.md §1): the worker pool
// dispatches a DirectoryObject to the Processor registered for its kind
// and forwards whatever OutputRecords come back.
type Processor interface {
	// Process turns one directory object into zero or more output
	// records. An error is logged by the caller and does not abort the
	// run (spec.md §7, "per-object error").
	Process(ctx context.Context, obj DirectoryObject, methods MethodSet) ([]OutputRecord, error)
}

// ObjectKind classifies a DirectoryObject so the worker pool can route it
// to the right Processor. Inference is based on objectClass, the same
// attribute a real LDAP schema exposes.
type ObjectKind string

const (
	ObjectUser      ObjectKind = "user"
	ObjectGroup     ObjectKind = "group"
	ObjectComputer  ObjectKind = "computer"
	ObjectDomain    ObjectKind = "domain"
	ObjectGPO       ObjectKind = "gpo"
	ObjectOU        ObjectKind = "ou"
	ObjectContainer ObjectKind = "container"
	ObjectCert      ObjectKind = "cert"
	ObjectUnknown   ObjectKind = "unknown"
)

// InferKind classifies obj from its objectClass / sAMAccountType-style
// attributes. Unknown objects are routed nowhere and logged at the
// worker pool level.
func InferKind(obj DirectoryObject) ObjectKind {
	classes := obj.Split("objectclass", ",")
	has := func(want string) bool {
		for _, c := range classes {
			if c == want {
				return true
			}
		}
		return false
	}
	switch {
	case has("computer"):
		return ObjectComputer
	case has("group"):
		return ObjectGroup
	case has("user"):
		return ObjectUser
	case has("domain") || has("domainDNS"):
		return ObjectDomain
	case has("groupPolicyContainer"):
		return ObjectGPO
	case has("organizationalUnit"):
		return ObjectOU
	case has("container"):
		return ObjectContainer
	case has("pKIEnrollmentService") || has("certificationAuthority") ||
		has("msPKI-Certificate-Template") || has("msPKI-Enterprise-Oid"):
		return ObjectCert
	default:
		return ObjectUnknown
	}
}

// ProcessorRegistry maps an ObjectKind to the Processor that handles it.
// A kind with no registered Processor is skipped (logged, not faulted).
type ProcessorRegistry map[ObjectKind]Processor

// Lookup returns the Processor for kind, and whether one is registered.
func (r ProcessorRegistry) Lookup(kind ObjectKind) (Processor, bool) {
	p, ok := r[kind]
	return p, ok
}
