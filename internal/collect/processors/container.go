package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type containerRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
	ChildObjects     []string       `json:"ChildObjects,omitempty"`
}

// ContainerProcessor records a container object's identity and, under
// MethodContainer, the object's own member attribute split on commas as
// ChildObjects. The directory is not queried for the objects beneath
// the container.
type ContainerProcessor struct{}

func (ContainerProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	rec := containerRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       baseProperties(obj),
	}
	if methods.Has(collect.MethodContainer) {
		rec.ChildObjects = obj.Split("member", ",")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling container %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindContainer, Data: data}}, nil
}
