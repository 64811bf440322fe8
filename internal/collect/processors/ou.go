package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type ouRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	LinkedGPOs       []string       `json:"LinkedGPOs,omitempty"`
	ChildObjects     []string       `json:"ChildObjects,omitempty"`
}

// OUProcessor records an organizational unit's identity, its linked
// GPOs (gPLink, MethodGPOLocalGroup), and, under MethodContainer, the
// object's own member attribute split on commas as ChildObjects. The
// directory is not queried for the objects beneath the OU.
type OUProcessor struct{}

func (OUProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := ouRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}

	if methods.Has(collect.MethodGPOLocalGroup) {
		rec.LinkedGPOs = parseGPLink(obj)
	}
	if methods.Has(collect.MethodContainer) {
		rec.ChildObjects = obj.Split("member", ",")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling ou %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindOU, Data: data}}, nil
}

// parseGPLink extracts the GPO distinguished names out of an AD gPLink
// value, formatted as one or more "[LDAP://<dn>;<options>]" segments.
func parseGPLink(obj collect.DirectoryObject) []string {
	raw, ok := obj.GetProperty("gplink")
	if !ok || raw == "" {
		return nil
	}

	var links []string
	for _, segment := range splitBrackets(raw) {
		dn, _, _ := strings.Cut(segment, ";")
		dn = strings.TrimPrefix(dn, "LDAP://")
		if dn != "" {
			links = append(links, dn)
		}
	}
	return links
}

func splitBrackets(raw string) []string {
	var segments []string
	start := -1
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '[':
			start = i + 1
		case ']':
			if start >= 0 {
				segments = append(segments, raw[start:i])
				start = -1
			}
		}
	}
	return segments
}
