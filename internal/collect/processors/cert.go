package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

type certRecord struct {
	ObjectIdentifier string         `json:"ObjectIdentifier"`
	Properties       map[string]any `json:"Properties"`
}

// CertProcessor records AD CS schema objects living under CN=Public Key
// Services,CN=Services,CN=Configuration — enterprise/root CAs, certificate
// templates, and issuance policy OIDs (MethodCertServices). These arrive
// through the same Configuration NC sweep every other config object does;
// only classification and this processor are new.
type CertProcessor struct{}

func (CertProcessor) Process(ctx context.Context, obj collect.DirectoryObject, methods collect.MethodSet) ([]collect.OutputRecord, error) {
	if !methods.Has(collect.MethodCertServices) {
		return nil, nil
	}

	props := baseProperties(obj)
	if classes := obj.Split("objectclass", ","); len(classes) > 0 {
		props["objectclass"] = classes
	}
	if template, ok := obj.GetProperty("mspki-certificate-template"); ok {
		props["certificatetemplate"] = template
	}
	if cert, ok := obj.GetProperty("cacertificate"); ok {
		props["cacertificate"] = cert
	}

	rec := certRecord{
		ObjectIdentifier: identifierOf(obj),
		Properties:       props,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling cert object %q: %w", obj.DistinguishedName(), err)
	}
	return []collect.OutputRecord{{Kind: collect.KindCert, Data: data}}, nil
}
