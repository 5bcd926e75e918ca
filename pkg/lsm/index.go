package lsm

import "github.com/bobboyms/stonedb/pkg/types"

// indexRecord is one materialized LSI/GSI row: a synthetic key (§3's
// 0xFF-prefixed index pk encoding) carrying a copy (or projection) of the
// base row, stored in the same stripe keyspace as ordinary rows.
type indexRecord struct {
	stripe int
	key    types.Key
	item   types.Item // nil for a tombstone (index row removal)
}

// buildIndexRecords computes every LSI/GSI row that must be written
// alongside item's base-table Put. LSI rows share the base row's partition
// key and therefore its stripe; GSI rows are keyed (and stripe-routed) by
// their own partition attribute.
func buildIndexRecords(schema *TableSchema, item types.Item, baseKey types.Key) []indexRecord {
	out := make([]indexRecord, 0, len(schema.Indexes))
	for _, idx := range schema.Indexes {
		rec, ok := buildOneIndexRecord(schema, idx, item, baseKey)
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func buildOneIndexRecord(schema *TableSchema, idx IndexDef, item types.Item, baseKey types.Key) (indexRecord, bool) {
	var indexPKBytes []byte
	var stripe int

	switch idx.Kind {
	case LocalSecondaryIndex:
		indexPKBytes = baseKey.PK
		stripe = types.Stripe(baseKey.PK)
	case GlobalSecondaryIndex:
		pkVal, ok := item[idx.PKAttr]
		if !ok {
			return indexRecord{}, false
		}
		indexPKBytes = scalarBytes(pkVal)
		stripe = types.Stripe(indexPKBytes)
	}

	var indexSK []byte
	if idx.SKAttr != "" {
		skVal, ok := item[idx.SKAttr]
		if !ok {
			return indexRecord{}, false
		}
		indexSK = scalarBytes(skVal)
	}

	synthPK := types.EncodeIndexPK(idx.Name, indexPKBytes, indexSK)
	projected := projectItem(schema, idx, item)

	return indexRecord{
		stripe: stripe,
		key:    types.Key{PK: synthPK},
		item:   projected,
	}, true
}

// projectItem copies item down to idx's declared projection, always
// keeping the base table's key attributes so a reader can join an index
// row back to its base row without a second lookup.
func projectItem(schema *TableSchema, idx IndexDef, item types.Item) types.Item {
	if idx.Projection == nil {
		return item.Clone()
	}
	out := make(types.Item, len(idx.Projection)+2)
	for _, name := range idx.Projection {
		if v, ok := item[name]; ok {
			out[name] = v.Clone()
		}
	}
	if v, ok := item[schema.PKAttr]; ok {
		out[schema.PKAttr] = v.Clone()
	}
	if schema.HasSK() {
		if v, ok := item[schema.SKAttr]; ok {
			out[schema.SKAttr] = v.Clone()
		}
	}
	return out
}
