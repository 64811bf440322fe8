// Package cache implements the resolver cache (spec.md §4.8, C1): the
// persistent bidirectional maps the collector reuses across runs to avoid
// re-resolving names, SIDs, and host machine accounts it already knows
// about. The type is grounded on the teacher's entity style
// (internal/domain/enumeration.Checkpoint/EnumerationState): private
// fields, a guarding mutex, and exported accessor/mutator methods rather
// than exposing the maps directly.
package cache

import "sync"

// Label is the resolved AD object type recorded for a SID (user, group,
// computer, ...). Left as a plain string rather than collect.ObjectKind
// so the cache package has no dependency on the domain package — it is
// loaded before anything else in the pipeline exists.
type Label string

// Cache is the thread-safe, persistable resolver cache described in
// spec.md §3. All six maps are keyed by upper-cased principal names or
// SIDs; writes are serialized through mu, reads are allowed concurrently.
type Cache struct {
	mu sync.RWMutex

	valueToID      map[string]string
	idToType       map[string]Label
	hostResolution map[string]string
	machineSid     map[string]string
	sidToDomain    map[string]string
	globalCatalog  map[string]string
}

// New returns an empty Cache, used both for a fresh start and as the
// fallback when loading from disk fails (spec.md §4.8).
func New() *Cache {
	return &Cache{
		valueToID:      make(map[string]string),
		idToType:       make(map[string]Label),
		hostResolution: make(map[string]string),
		machineSid:     make(map[string]string),
		sidToDomain:    make(map[string]string),
		globalCatalog:  make(map[string]string),
	}
}

// Delta reports how many entries a mutation added versus updated, making
// spec.md §8 invariant 2 ("the cache after a run is a strict superset of
// the cache before") directly observable without diffing the whole map.
type Delta struct {
	Added   int
	Updated int
}

// PutValueToID records the SID (or other canonical ID) a name resolves
// to. Both key and value are expected pre-uppercased by the caller,
// matching spec.md's "all maps keyed by uppercased principals".
func (c *Cache) PutValueToID(name, id string) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return put(c.valueToID, name, id)
}

// ValueToID looks up the ID a name resolves to.
func (c *Cache) ValueToID(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.valueToID[name]
	return v, ok
}

// PutIDType records the AD object type for a SID.
func (c *Cache) PutIDType(id string, label Label) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	before, existed := c.idToType[id]
	c.idToType[id] = label
	if !existed {
		return Delta{Added: 1}
	}
	if before != label {
		return Delta{Updated: 1}
	}
	return Delta{}
}

// IDType looks up the AD object type recorded for a SID.
func (c *Cache) IDType(id string) (Label, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.idToType[id]
	return v, ok
}

// PutHostResolution records the SID a hostname resolved to, so the
// stealth and computer-file producers can skip a repeat LDAP round trip
// on a later loop pass (SPEC_FULL.md §7).
func (c *Cache) PutHostResolution(host, sid string) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return put(c.hostResolution, host, sid)
}

// HostResolution looks up a previously resolved hostname-to-SID mapping.
func (c *Cache) HostResolution(host string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.hostResolution[host]
	return v, ok
}

// PutMachineSid records a host's own machine-account SID.
func (c *Cache) PutMachineSid(host, sid string) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return put(c.machineSid, host, sid)
}

// MachineSid looks up a host's machine-account SID.
func (c *Cache) MachineSid(host string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.machineSid[host]
	return v, ok
}

// PutSidToDomain records which domain a SID belongs to, used to route
// cross-domain SID lookups during RecurseDomains collection.
func (c *Cache) PutSidToDomain(sid, domainSid string) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return put(c.sidToDomain, sid, domainSid)
}

// SidToDomain looks up which domain a SID belongs to.
func (c *Cache) SidToDomain(sid string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sidToDomain[sid]
	return v, ok
}

// PutGlobalCatalog records a domain's resolved global catalog server.
func (c *Cache) PutGlobalCatalog(domainSid, server string) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return put(c.globalCatalog, domainSid, server)
}

// GlobalCatalog looks up a domain's resolved global catalog server.
func (c *Cache) GlobalCatalog(domainSid string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.globalCatalog[domainSid]
	return v, ok
}

// put is the shared add-or-update helper every Put* method above wraps
// in its own lock, so it never takes one itself.
func put(m map[string]string, key, value string) Delta {
	before, existed := m[key]
	m[key] = value
	if !existed {
		return Delta{Added: 1}
	}
	if before != value {
		return Delta{Updated: 1}
	}
	return Delta{}
}

// Stats is the per-map count snapshot GetStats returns for logging
// (spec.md §4.8).
type Stats struct {
	ValueToID      int
	IDToType       int
	HostResolution int
	MachineSid     int
	SidToDomain    int
	GlobalCatalog  int
}

// GetStats returns the current entry count for each of the six maps.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		ValueToID:      len(c.valueToID),
		IDToType:       len(c.idToType),
		HostResolution: len(c.hostResolution),
		MachineSid:     len(c.machineSid),
		SidToDomain:    len(c.sidToDomain),
		GlobalCatalog:  len(c.globalCatalog),
	}
}
