package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type groupMember struct {
	ObjectIdentifier string `json:"ObjectIdentifier"`
}

type groupRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	Members          []groupMember  `json:"Members"`
}

// GroupProcessor expands a group's member DNs into membership edges
// (MethodGroup), the core of BloodHound-style graph construction.
type GroupProcessor struct{}

func (GroupProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := groupRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}

	if methods.Has(collect.MethodGroup) {
		// member holds full DNs joined by commas; each DN ends with its DC=
		// components, so a non-DC component after a DC= one starts the next.
		var parts []string
		for _, part := range strings.Split(strings.Join(obj.Split("member", ","), ","), ",") {
			if part == "" {
				continue
			}
			isDC := strings.HasPrefix(strings.ToUpper(part), "DC=")
			if !isDC && len(parts) > 0 && strings.HasPrefix(strings.ToUpper(parts[len(parts)-1]), "DC=") {
				rec.Members = append(rec.Members, groupMember{ObjectIdentifier: strings.Join(parts, ",")})
				parts = nil
			}
			parts = append(parts, part)
		}
		if len(parts) > 0 {
			rec.Members = append(rec.Members, groupMember{ObjectIdentifier: strings.Join(parts, ",")})
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling group %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindGroup, Data: data}}, nil
}
