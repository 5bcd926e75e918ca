package lsm

import "github.com/bobboyms/stonedb/pkg/types"

// expired reports whether item has passed its table's TTL attribute (a Ts
// value holding milliseconds since epoch), evaluated lazily at read time —
// stonedb does not run a background reaper; an expired row is treated as
// absent by Get/Query/Scan. Compaction does not remove expired rows; they
// stay on disk until overwritten or deleted.
func expired(schema *TableSchema, item types.Item, nowMillis int64) bool {
	if schema.TTLAttr == "" || item == nil {
		return false
	}
	v, ok := item[schema.TTLAttr]
	if !ok || v.Kind != types.KindTs {
		return false
	}
	return v.Ts <= nowMillis
}
