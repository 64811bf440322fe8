package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type gpoRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	GPCFileSysPath   string         `json:"GPCFileSysPath,omitempty"`
}

// GPOProcessor records a group policy container's identity and its
// on-disk SYSVOL path, the link GPOLocalGroup edges resolve against.
type GPOProcessor struct{}

func (GPOProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := gpoRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}
	if path, ok := obj.GetProperty("gpcfilesyspath"); ok {
		rec.GPCFileSysPath = path
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling gpo %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindGPO, Data: data}}, nil
}
