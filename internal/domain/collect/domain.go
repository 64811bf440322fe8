package collect

import "strings"

// EnumerationDomain identifies one AD domain selected for collection.
// Identity is the domain SID; Name and DomainSID are always upper-cased
// so map lookups and deduplication are case-insensitive by construction.
type EnumerationDomain struct {
	Name      string
	DomainSid string
}

// NewEnumerationDomain upper-cases name and sid. A missing SID is recorded
// as "UNKNOWN" rather than left empty, so it can still be used as a map
// key without colliding with a domain whose SID genuinely resolved to "".
func NewEnumerationDomain(name, sid string) EnumerationDomain {
	if sid == "" {
		sid = "Unknown"
	}
	return EnumerationDomain{
		Name:      strings.ToUpper(name),
		DomainSid: strings.ToUpper(sid),
	}
}

// TrustDirection qualifies a discovered trust edge. Only Outbound and
// Bidirectional trusts are followed during recursive domain discovery
// (spec.md §4.2); Inbound-only and Disabled trusts are recorded but not
// traversed.
type TrustDirection int

const (
	TrustDisabled TrustDirection = iota
	TrustInbound
	TrustOutbound
	TrustBidirectional
)

func (d TrustDirection) String() string {
	switch d {
	case TrustInbound:
		return "Inbound"
	case TrustOutbound:
		return "Outbound"
	case TrustBidirectional:
		return "Bidirectional"
	default:
		return "Disabled"
	}
}

// Followable reports whether a trust of this direction qualifies a target
// domain for BFS traversal during RecurseDomains discovery.
func (d TrustDirection) Followable() bool {
	return d == TrustOutbound || d == TrustBidirectional
}

// TrustRecord is one edge discovered while enumerating a domain's trusts.
type TrustRecord struct {
	SourceDomainSid string
	TargetDomainSid string
	TargetDomainFQDN string
	Direction        TrustDirection
}
