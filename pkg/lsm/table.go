package lsm

import (
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// IndexKind distinguishes a local secondary index (shares the base table's
// partition key and stripe) from a global secondary index (its own
// partition key, routed to its own stripe).
type IndexKind uint8

const (
	LocalSecondaryIndex IndexKind = iota
	GlobalSecondaryIndex
)

// IndexDef describes one LSI or GSI attached to a table.
type IndexDef struct {
	Name       string
	Kind       IndexKind
	PKAttr     string // GSI only; LSI reuses the base table's pk attribute
	SKAttr     string
	Projection []string // attribute names projected; nil means all attributes
}

// AttributeSchema describes validation rules for one named attribute (§3,
// SPEC_FULL's validation supplement): required/type/bounds/pattern/enum.
type AttributeSchema struct {
	Name     string
	Type     types.Kind
	Required bool

	MinNumber *float64
	MaxNumber *float64

	MinLength *int
	MaxLength *int
	Pattern   string

	Enum []string
}

// TableSchema is the full definition of one logical table: its key shape,
// attribute validation rules, secondary indexes, and optional TTL attribute.
type TableSchema struct {
	Name       string
	PKAttr     string
	SKAttr     string // empty if the table has no sort key
	Attributes []AttributeSchema
	Indexes    []IndexDef
	TTLAttr    string // empty disables TTL for this table
}

func (s *TableSchema) HasSK() bool { return s.SKAttr != "" }

func (s *TableSchema) indexByName(name string) (IndexDef, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDef{}, false
}

// baseKeyFor extracts the base-table Key (pk/sk) from item according to the
// schema's key attribute names.
func (s *TableSchema) baseKeyFor(item types.Item) (types.Key, error) {
	pkVal, ok := item[s.PKAttr]
	if !ok {
		return types.Key{}, errors.New(errors.InvalidArgument, "lsm: item missing partition key attribute %q", s.PKAttr)
	}
	key := types.Key{PK: scalarBytes(pkVal)}
	if s.HasSK() {
		skVal, ok := item[s.SKAttr]
		if !ok {
			return types.Key{}, errors.New(errors.InvalidArgument, "lsm: item missing sort key attribute %q", s.SKAttr)
		}
		key.SK = scalarBytes(skVal)
	}
	return key, nil
}

// scalarBytes renders a scalar Value (S, N, B) into the byte form used
// inside an encoded Key. N sorts correctly only for fixed-width encodings
// in general, but stonedb keeps keys as their canonical decimal text, which
// is sufficient given keys are compared at the EncodedKey/byte level only
// for equality and range scans within a single attribute's homogeneous type.
func scalarBytes(v types.Value) []byte {
	switch v.Kind {
	case types.KindS:
		return []byte(v.S)
	case types.KindN:
		return []byte(v.N)
	case types.KindB:
		return v.B
	default:
		return nil
	}
}
