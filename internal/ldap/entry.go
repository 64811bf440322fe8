package ldap

import (
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

// entryObject adapts a *goldap.Entry to collect.DirectoryObject, the only
// place in the module where the go-ldap entry shape leaks into domain
// code.
type entryObject struct {
	entry *goldap.Entry
}

// newEntryObject wraps entry, matching the f0oster/adSpy
// ActiveDirectoryObject pattern of normalizing a raw LDAP result into a
// DN-plus-attribute-map shape before anything downstream touches it.
func newEntryObject(entry *goldap.Entry) collect.DirectoryObject {
	return &entryObject{entry: entry}
}

func (o *entryObject) DistinguishedName() string { return o.entry.DN }

func (o *entryObject) GetProperty(name string) (string, bool) {
	v := o.entry.GetAttributeValue(name)
	if v == "" {
		return "", false
	}
	return v, true
}

func (o *entryObject) Split(name, sep string) []string {
	values := o.entry.GetAttributeValues(name)
	if len(values) == 1 && strings.Contains(values[0], sep) {
		return strings.Split(values[0], sep)
	}
	return values
}

// TryGetSecurityIdentifier decodes the binary objectSid attribute into its
// string SID form.
func (o *entryObject) TryGetSecurityIdentifier() (string, bool) {
	raw := o.entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return "", false
	}
	sid, err := decodeSID(raw)
	if err != nil {
		return "", false
	}
	return sid, true
}
