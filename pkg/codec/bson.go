// Package codec converts between stonedb's types.Value/types.Item model
// and BSON, the encoding of the item payloads inside WAL and SST records,
// adapted from the teacher's pkg/storage/bson.go. N values round-trip
// through bson.Decimal128 (or as their raw text when Decimal128 cannot
// represent them) so arbitrary-precision decimal text never gets coerced
// through a float64.
package codec

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// kind tags, stored as the first element of each encoded bson.D so
// DecodeValue knows which Value arm to reconstruct without guessing from
// the underlying Go type bson.Unmarshal hands back.
const (
	tagKind = "$k"
	tagVal  = "$v"
)

// EncodeItem converts an Item into a bson.D ready for bson.Marshal.
func EncodeItem(item types.Item) bson.D {
	doc := make(bson.D, 0, len(item))
	for _, name := range types.SortedAttributeNames(item) {
		doc = append(doc, bson.E{Key: name, Value: EncodeValue(item[name])})
	}
	return doc
}

// DecodeItem reverses EncodeItem from an unmarshaled bson.D.
func DecodeItem(doc bson.D) (types.Item, error) {
	item := make(types.Item, len(doc))
	for _, e := range doc {
		v, err := DecodeValue(e.Value)
		if err != nil {
			return nil, err
		}
		item[e.Key] = v
	}
	return item, nil
}

// EncodeValue converts one Value into its bson representation: a small
// tagged document {$k: kind, $v: value} so every Kind (including N's
// Decimal128 and VecF32's float array) survives a round trip exactly.
func EncodeValue(v types.Value) bson.D {
	switch v.Kind {
	case types.KindNull:
		return bson.D{{Key: tagKind, Value: "NULL"}}
	case types.KindS:
		return bson.D{{Key: tagKind, Value: "S"}, {Key: tagVal, Value: v.S}}
	case types.KindN:
		dec, err := bson.ParseDecimal128(v.N)
		if err != nil {
			// Not all decimal text big.Rat accepts is Decimal128-representable
			// (e.g. repeating fractions); fall back to the raw string so the
			// value is never silently lost.
			return bson.D{{Key: tagKind, Value: "N"}, {Key: tagVal, Value: v.N}}
		}
		return bson.D{{Key: tagKind, Value: "N"}, {Key: tagVal, Value: dec}}
	case types.KindB:
		return bson.D{{Key: tagKind, Value: "B"}, {Key: tagVal, Value: v.B}}
	case types.KindBool:
		return bson.D{{Key: tagKind, Value: "BOOL"}, {Key: tagVal, Value: v.Bool}}
	case types.KindTs:
		return bson.D{{Key: tagKind, Value: "TS"}, {Key: tagVal, Value: v.Ts}}
	case types.KindVecF32:
		vec := make(bson.A, len(v.Vec))
		for i, f := range v.Vec {
			vec[i] = float64(f)
		}
		return bson.D{{Key: tagKind, Value: "VECF32"}, {Key: tagVal, Value: vec}}
	case types.KindL:
		list := make(bson.A, len(v.L))
		for i, e := range v.L {
			list[i] = EncodeValue(e)
		}
		return bson.D{{Key: tagKind, Value: "L"}, {Key: tagVal, Value: list}}
	case types.KindM:
		return bson.D{{Key: tagKind, Value: "M"}, {Key: tagVal, Value: EncodeItem(v.M)}}
	default:
		return bson.D{{Key: tagKind, Value: "NULL"}}
	}
}

// DecodeValue reverses EncodeValue from an unmarshaled bson value, which
// must be a bson.D as EncodeValue produced it; any other type is reported
// as a Corruption error.
func DecodeValue(raw any) (types.Value, error) {
	doc, err := asD(raw)
	if err != nil {
		return types.Value{}, err
	}
	fields := make(map[string]any, len(doc))
	for _, e := range doc {
		fields[e.Key] = e.Value
	}
	kind, _ := fields[tagKind].(string)
	val := fields[tagVal]

	switch kind {
	case "NULL":
		return types.Null(), nil
	case "S":
		s, _ := val.(string)
		return types.S(s), nil
	case "N":
		switch n := val.(type) {
		case bson.Decimal128:
			return types.N(n.String()), nil
		case string:
			return types.N(n), nil
		default:
			return types.N(fmt.Sprintf("%v", n)), nil
		}
	case "B":
		b, _ := val.(bson.Binary)
		if b.Data != nil {
			return types.B(b.Data), nil
		}
		if bs, ok := val.([]byte); ok {
			return types.B(bs), nil
		}
		return types.B(nil), nil
	case "BOOL":
		b, _ := val.(bool)
		return types.Bool(b), nil
	case "TS":
		ts, err := asInt64(val)
		if err != nil {
			return types.Value{}, err
		}
		return types.Ts(ts), nil
	case "VECF32":
		arr, _ := val.(bson.A)
		vec := make([]float32, len(arr))
		for i, e := range arr {
			f, err := asFloat64(e)
			if err != nil {
				return types.Value{}, err
			}
			vec[i] = float32(f)
		}
		return types.VecF32(vec), nil
	case "L":
		arr, _ := val.(bson.A)
		elems := make([]types.Value, len(arr))
		for i, e := range arr {
			ev, err := DecodeValue(e)
			if err != nil {
				return types.Value{}, err
			}
			elems[i] = ev
		}
		return types.L(elems...), nil
	case "M":
		inner, err := asD(val)
		if err != nil {
			return types.Value{}, err
		}
		item, err := DecodeItem(inner)
		if err != nil {
			return types.Value{}, err
		}
		return types.M(item), nil
	default:
		return types.Value{}, errors.New(errors.Corruption, "codec: unknown value kind %q", kind)
	}
}

func asD(raw any) (bson.D, error) {
	v, ok := raw.(bson.D)
	if !ok {
		return nil, errors.New(errors.Corruption, "codec: expected a document, got %T", raw)
	}
	return v, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, errors.New(errors.Corruption, "codec: expected an integer, got %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.New(errors.Corruption, "codec: expected a number, got %T", v)
	}
}
