package collect

// CollectionMethod is a single bit in the CollectionMethods bitset flag
// (spec.md §6). Named presets below mirror the flag values a future CLI
// would accept.
type CollectionMethod uint32

const (
	MethodGroup CollectionMethod = 1 << iota
	MethodLocalAdmin
	MethodGPOLocalGroup
	MethodSession
	MethodLoggedOn
	MethodTrusts
	MethodACL
	MethodObjectProps
	MethodSPNTargets
	MethodContainer
	MethodDomain
	MethodComputer
	MethodCertServices
)

// MethodSet is the resolved bitset carried on RunContext.
type MethodSet uint32

// Has reports whether every bit in m is present in the set.
func (s MethodSet) Has(m CollectionMethod) bool { return s&MethodSet(m) != 0 }

// With returns a new set with m added.
func (s MethodSet) With(m CollectionMethod) MethodSet { return s | MethodSet(m) }

// Default is the preset used when CollectionMethods isn't overridden: the
// object-graph methods excluding the expensive session/ACL sweeps.
func Default() MethodSet {
	return MethodSet(MethodGroup | MethodLocalAdmin | MethodGPOLocalGroup |
		MethodTrusts | MethodACL | MethodObjectProps | MethodSPNTargets |
		MethodContainer | MethodDomain | MethodComputer)
}

// All returns every known method.
func All() MethodSet {
	return MethodSet(MethodGroup | MethodLocalAdmin | MethodGPOLocalGroup |
		MethodSession | MethodLoggedOn | MethodTrusts | MethodACL |
		MethodObjectProps | MethodSPNTargets | MethodContainer |
		MethodDomain | MethodComputer | MethodCertServices)
}

// SessionOnly is the subset GetLoopCollectionMethods reduces a run to for
// every pass after the first (spec.md §4.7 step 2): cheap, high-churn
// session data, skipping the expensive structural sweeps that don't
// change between a 30-second loop interval.
func SessionOnly() MethodSet {
	return MethodSet(MethodSession | MethodLoggedOn)
}

// GetLoopCollectionMethods narrows a run's collection methods to the
// loop subset, preserving DCOnly-style narrowing the caller already
// applied (MethodDomain/MethodComputer are metadata, not session data, so
// they're dropped along with everything else not in SessionOnly).
func GetLoopCollectionMethods(_ MethodSet) MethodSet {
	return SessionOnly()
}

// namesToMethod maps the CLI's --CollectionMethods string tokens to bits,
// for the optional YAML preset file described in SPEC_FULL.md §7.
var namesToMethod = map[string]CollectionMethod{
	"Group":         MethodGroup,
	"LocalAdmin":    MethodLocalAdmin,
	"GPOLocalGroup": MethodGPOLocalGroup,
	"Session":       MethodSession,
	"LoggedOn":      MethodLoggedOn,
	"Trusts":        MethodTrusts,
	"ACL":           MethodACL,
	"ObjectProps":   MethodObjectProps,
	"SPNTargets":    MethodSPNTargets,
	"Container":     MethodContainer,
	"CertServices":  MethodCertServices,
	"DCOM":          0,
}

// ParseMethodNames resolves a list of CLI method tokens into a MethodSet.
// "Default" and "All" expand to their presets; an unknown token is
// ignored rather than faulting the whole set, matching the tolerant
// parsing a CLI flag library such as pflag typically performs upstream.
func ParseMethodNames(names []string) MethodSet {
	var set MethodSet
	for _, n := range names {
		switch n {
		case "Default":
			set |= Default()
		case "All":
			set |= All()
		default:
			if m, ok := namesToMethod[n]; ok {
				set = set.With(m)
			}
		}
	}
	if set == 0 {
		return Default()
	}
	return set
}
