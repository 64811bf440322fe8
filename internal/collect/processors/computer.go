package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type computerRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	PrimaryGroupSid  string         `json:"PrimaryGroupSid,omitempty"`
	SPNTargets       []string       `json:"SPNTargets,omitempty"`
}

// ComputerProcessor records a computer's identity and, when
// MethodComputer is set, its primary group membership — the edge that
// marks a host as a domain controller (primary group RID 516).
type ComputerProcessor struct{}

func (ComputerProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := computerRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}
	if os, ok := obj.GetProperty("operatingsystem"); ok {
		rec.Properties["operatingsystem"] = os
	}
	if dnsHost, ok := obj.GetProperty("dnshostname"); ok {
		rec.Properties["dnshostname"] = dnsHost
	}

	if methods.Has(collect.MethodComputer) {
		if rid, ok := obj.GetProperty("primarygroupid"); ok {
			rec.PrimaryGroupSid = rid
		}
	}
	if methods.Has(collect.MethodSPNTargets) {
		rec.SPNTargets = spnsOf(obj)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling computer %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindComputer, Data: data}}, nil
}
