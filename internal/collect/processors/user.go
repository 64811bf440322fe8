package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

// userRecord is the JSON shape written for every KindUser record.
type userRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	SPNTargets       []string       `json:"SPNTargets,omitempty"`
	AllowedToDelegate []string      `json:"AllowedToDelegate,omitempty"`
}

// UserProcessor turns a user DirectoryObject into a single OutputRecord,
// projecting SPN targets only when MethodSPNTargets is enabled (spec.md
// §6's per-method attribute gating).
type UserProcessor struct{}

func (UserProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := userRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}
	if enabled, ok := obj.GetProperty("useraccountcontrol"); ok {
		rec.Properties["useraccountcontrol"] = enabled
	}

	if methods.Has(collect.MethodSPNTargets) {
		rec.SPNTargets = spnsOf(obj)
	}
	if methods.Has(collect.MethodObjectProps) {
		rec.AllowedToDelegate = obj.Split("msds-allowedtodelegateto", ",")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling user %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindUser, Data: data}}, nil
}
