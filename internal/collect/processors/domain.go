package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type domainTrust struct {
	TargetDomainSid string `json:"TargetDomainSid"`
	TrustDirection   string `json:"TrustDirection"`
}

type domainRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	Trusts           []domainTrust  `json:"Trusts,omitempty"`
}

// DomainProcessor records a domainDNS object's identity. Trust edges
// are resolved upstream by the Discoverer, not re-derived here — this
// processor only ever sees the domain object itself during the
// per-object pipeline, never the trustedDomain children.
type DomainProcessor struct{}

func (DomainProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := domainRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling domain %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindDomain, Data: data}}, nil
}
