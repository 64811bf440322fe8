package collect

import "encoding/json"

// RecordKind identifies which output writer an OutputRecord is routed to
// (spec.md §4.5's dispatch table is keyed on this).
type RecordKind string

const (
	KindUser      RecordKind = "users"
	KindGroup     RecordKind = "groups"
	KindComputer  RecordKind = "computers"
	KindDomain    RecordKind = "domains"
	KindGPO       RecordKind = "gpos"
	KindOU        RecordKind = "ous"
	KindContainer RecordKind = "containers"
	KindCert      RecordKind = "certs"
)

// DataType is the "type" field written into a writer's meta footer. It is
// usually the plural RecordKind, but is kept distinct so a writer can
// report a different label than its routing key if a future kind needs
// to.
func (k RecordKind) DataType() string { return string(k) }

// OutputRecord is a single processed object on its way to a writer. Data
// is left as raw JSON: the concrete serialization format of an individual
// record is an external collaborator (spec.md §1) — this core only needs
// to know which writer a record belongs to and how many bytes it is.
type OutputRecord struct {
	Kind RecordKind
	Data json.RawMessage
}

// CollectorVersion is stamped into every MetaTag; bumped independently of
// the wire Version below, which is the frozen contract with the
// downstream ingestor and must not change without a deliberate decision.
const CollectorVersion = "1.0.0"

// MetaVersion is the wire-format version documented in spec.md §6. It is
// a frozen downstream contract: OutputRecord serialization may evolve,
// but this number only changes if the downstream ingestor's schema does.
const MetaVersion = 6

// MetaTag is the per-file footer a writer appends once it has flushed.
type MetaTag struct {
	Count             int       `json:"count"`
	CollectionMethods MethodSet `json:"collection_methods"`
	DataType          string    `json:"type"`
	Version           int       `json:"version"`
	CollectorVersion  string    `json:"collector_version"`
}

// NewMetaTag builds the footer for a writer with count records collected
// under methods, tagged with the frozen wire version.
func NewMetaTag(count int, methods MethodSet, dataType string) MetaTag {
	return MetaTag{
		Count:             count,
		CollectionMethods: methods,
		DataType:          dataType,
		Version:           MetaVersion,
		CollectorVersion:  CollectorVersion,
	}
}
