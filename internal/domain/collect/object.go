// Package collect holds the domain types shared by every stage of the
// collection pipeline: directory objects, output records, collection
// methods, credentials, and the run context that links mutate in order.
// Nothing in this package performs I/O.
package collect

import "strings"

// DirectoryObject is an attribute bag returned by an LDAP query. The core
// treats it as opaque: producers construct it, workers and processors read
// from it through this accessor interface, and the concrete LDAP
// transport's result shape stays an external collaborator.
type DirectoryObject interface {
	// GetProperty returns the first value of a named attribute and whether
	// it was present at all.
	GetProperty(name string) (string, bool)
	// TryGetSecurityIdentifier returns the object's SID, if it has one.
	TryGetSecurityIdentifier() (string, bool)
	// Split returns a named string property split on sep, or nil if the
	// property is absent.
	Split(name, sep string) []string
	// DistinguishedName returns the object's DN, used for logging and for
	// deduplicating cross-domain discovery.
	DistinguishedName() string
}

// AttributeObject is the default, map-backed DirectoryObject. Producers
// that don't need a richer representation (stealth targets, computer-file
// lookups, LDAP search results) all construct one of these.
type AttributeObject struct {
	DN         string
	Attributes map[string][]string
}

// NewAttributeObject creates an AttributeObject from a DN and a flat
// attribute map, used by producers that only have single-valued results.
func NewAttributeObject(dn string, attrs map[string]string) *AttributeObject {
	m := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		m[k] = []string{v}
	}
	return &AttributeObject{DN: dn, Attributes: m}
}

func (o *AttributeObject) DistinguishedName() string { return o.DN }

func (o *AttributeObject) GetProperty(name string) (string, bool) {
	vals, ok := o.Attributes[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (o *AttributeObject) TryGetSecurityIdentifier() (string, bool) {
	return o.GetProperty("objectsid")
}

func (o *AttributeObject) Split(name, sep string) []string {
	v, ok := o.GetProperty(name)
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, sep)
}
