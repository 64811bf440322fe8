package cache

import "encoding/json"

// document is the on-disk shape of a Cache: a single JSON blob holding
// all six maps, matching spec.md §4.8's "serialize as a single blob".
type document struct {
	ValueToIDCache      map[string]string `json:"value_to_id_cache"`
	IdToTypeCache       map[string]Label  `json:"id_to_type_cache"`
	HostResolutionMap   map[string]string `json:"host_resolution_map"`
	MachineSidCache     map[string]string `json:"machine_sid_cache"`
	SidToDomainCache    map[string]string `json:"sid_to_domain_cache"`
	GlobalCatalogCache  map[string]string `json:"global_catalog_cache"`
}

// MarshalJSON serializes the six maps as a single document. The cache's
// own mutex guards the read, matching the entity-style (un)marshalers on
// the teacher's Checkpoint type.
func (c *Cache) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(document{
		ValueToIDCache:     c.valueToID,
		IdToTypeCache:      c.idToType,
		HostResolutionMap:  c.hostResolution,
		MachineSidCache:    c.machineSid,
		SidToDomainCache:   c.sidToDomain,
		GlobalCatalogCache: c.globalCatalog,
	})
}

// UnmarshalJSON reconstructs all six maps from a previously-saved
// document. Nil maps in the source document become empty maps rather
// than nil, so later Put* calls never need a nil check.
func (c *Cache) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valueToID = nonNil(doc.ValueToIDCache)
	c.idToType = doc.IdToTypeCache
	if c.idToType == nil {
		c.idToType = make(map[string]Label)
	}
	c.hostResolution = nonNil(doc.HostResolutionMap)
	c.machineSid = nonNil(doc.MachineSidCache)
	c.sidToDomain = nonNil(doc.SidToDomainCache)
	c.globalCatalog = nonNil(doc.GlobalCatalogCache)
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return m
}
