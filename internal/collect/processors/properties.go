// Package processors holds the default Processor implementations that
// turn a raw DirectoryObject into the OutputRecords BloodHound-style
// consumers expect: one JSON object per collected principal, carrying
// an ObjectIdentifier, a Properties bag, and whichever edge-producing
// sections the run's collection methods enabled.
package processors

import (
	"strings"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

// identifierOf returns obj's SID if it has one, falling back to its DN
// so even schema objects without a security principal (OUs, containers,
// GPOs) get a stable identifier.
func identifierOf(obj collect.DirectoryObject) string {
	if sid, ok := obj.TryGetSecurityIdentifier(); ok && sid != "" {
		return sid
	}
	return obj.DistinguishedName()
}

// baseProperties collects the attribute set every output kind shares:
// the distinguished name, plus samaccountname, the upper-cased cn as
// name, and description where each is present.
func baseProperties(obj collect.DirectoryObject) map[string]any {
	props := map[string]any{
		"distinguishedname": obj.DistinguishedName(),
	}
	if name, ok := obj.GetProperty("samaccountname"); ok {
		props["samaccountname"] = name
	}
	if name, ok := obj.GetProperty("cn"); ok {
		props["name"] = strings.ToUpper(name)
	}
	if desc, ok := obj.GetProperty("description"); ok {
		props["description"] = desc
	}
	return props
}

// spnsOf extracts a user or computer's service principal names, the raw
// material for Kerberoast/SPN-target edges (MethodSPNTargets).
func spnsOf(obj collect.DirectoryObject) []string {
	return obj.Split("serviceprincipalname", ",")
}
