package processors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

func TestUserProcessorProjectsSPNTargetsOnlyWhenEnabled(t *testing.T) {
	obj := collect.NewAttributeObject("CN=svc,DC=corp,DC=local", map[string]string{
		"cn":                   "svc",
		"serviceprincipalname": "MSSQLSvc/db01:1433",
		"objectsid":            "S-1-5-21-1-2-3-1001",
	})

	recs, err := UserProcessor{}.Process(context.Background(), obj, collect.MethodSet(0))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, collect.KindUser, recs[0].Kind)

	var decoded userRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Empty(t, decoded.SPNTargets)
	require.Equal(t, "S-1-5-21-1-2-3-1001", decoded.ObjectIdentifier)

	recs, err = UserProcessor{}.Process(context.Background(), obj, collect.MethodSet(collect.MethodSPNTargets))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Equal(t, []string{"MSSQLSvc/db01:1433"}, decoded.SPNTargets)
}

func TestGroupProcessorExpandsMembersOnlyWhenMethodGroupSet(t *testing.T) {
	obj := collect.NewAttributeObject("CN=Domain Admins,DC=corp,DC=local", map[string]string{
		"member": "CN=alice,DC=corp,DC=local,CN=bob,DC=corp,DC=local",
	})

	recs, err := GroupProcessor{}.Process(context.Background(), obj, collect.MethodSet(0))
	require.NoError(t, err)
	var decoded groupRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Empty(t, decoded.Members)

	recs, err = GroupProcessor{}.Process(context.Background(), obj, collect.MethodSet(collect.MethodGroup))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Len(t, decoded.Members, 2)
}

func TestComputerProcessorRecordsPrimaryGroupWhenEnabled(t *testing.T) {
	obj := collect.NewAttributeObject("CN=DC01,DC=corp,DC=local", map[string]string{
		"primarygroupid": "516",
		"dnshostname":    "dc01.corp.local",
	})

	recs, err := ComputerProcessor{}.Process(context.Background(), obj, collect.MethodSet(collect.MethodComputer))
	require.NoError(t, err)
	var decoded computerRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Equal(t, "516", decoded.PrimaryGroupSid)
	require.Equal(t, "dc01.corp.local", decoded.Properties["dnshostname"])
}

func TestOUProcessorParsesGPLinkSegments(t *testing.T) {
	obj := collect.NewAttributeObject("OU=Servers,DC=corp,DC=local", map[string]string{
		"gplink": "[LDAP://CN={GUID1},CN=Policies,CN=System,DC=corp,DC=local;0][LDAP://CN={GUID2},CN=Policies,CN=System,DC=corp,DC=local;1]",
	})

	recs, err := OUProcessor{}.Process(context.Background(), obj, collect.MethodSet(collect.MethodGPOLocalGroup))
	require.NoError(t, err)
	var decoded ouRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Len(t, decoded.LinkedGPOs, 2)
	require.Equal(t, "CN={GUID1},CN=Policies,CN=System,DC=corp,DC=local", decoded.LinkedGPOs[0])
}

func TestDefaultRegistryCoversEveryObjectKind(t *testing.T) {
	registry := DefaultRegistry()
	for _, kind := range []collect.ObjectKind{
		collect.ObjectUser, collect.ObjectGroup, collect.ObjectComputer,
		collect.ObjectDomain, collect.ObjectGPO, collect.ObjectOU, collect.ObjectContainer,
		collect.ObjectCert,
	} {
		_, ok := registry.Lookup(kind)
		require.True(t, ok, "missing processor for %s", kind)
	}
}

func TestCertProcessorOnlyEmitsWhenCertServicesEnabled(t *testing.T) {
	obj := collect.NewAttributeObject("CN=CorpCA,CN=Enrollment Services,CN=Public Key Services,CN=Services,CN=Configuration,DC=corp,DC=local", map[string]string{
		"objectclass":                "top,pKIEnrollmentService",
		"cacertificate":               "MIIC...",
		"mspki-certificate-template": "WebServer",
	})

	recs, err := CertProcessor{}.Process(context.Background(), obj, collect.MethodSet(0))
	require.NoError(t, err)
	require.Empty(t, recs)

	recs, err = CertProcessor{}.Process(context.Background(), obj, collect.MethodSet(collect.MethodCertServices))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, collect.KindCert, recs[0].Kind)

	var decoded certRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &decoded))
	require.Equal(t, "WebServer", decoded.Properties["certificatetemplate"])
	require.Equal(t, "MIIC...", decoded.Properties["cacertificate"])
}
