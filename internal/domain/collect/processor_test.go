package collect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferKindMatchesRealADObjectClassCasing(t *testing.T) {
	cases := []struct {
		name    string
		classes string
		want    ObjectKind
	}{
		{"domain head, mixed-case domainDNS", "top,domainDNS", ObjectDomain},
		{"user", "top,person,organizationalPerson,user", ObjectUser},
		{"group", "top,group", ObjectGroup},
		{"computer", "top,person,computer", ObjectComputer},
		{"gpo", "top,groupPolicyContainer", ObjectGPO},
		{"ou", "top,organizationalUnit", ObjectOU},
		{"container", "top,container", ObjectContainer},
		{"enterprise CA", "top,pKIEnrollmentService", ObjectCert},
		{"root CA", "top,certificationAuthority", ObjectCert},
		{"cert template", "top,msPKI-Certificate-Template", ObjectCert},
		{"issuance policy OID", "top,msPKI-Enterprise-Oid", ObjectCert},
		{"unrecognized", "top,unknownClass", ObjectUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj := NewAttributeObject("CN=x,DC=corp,DC=local", map[string]string{"objectclass": tc.classes})
			require.Equal(t, tc.want, InferKind(obj))
		})
	}
}
