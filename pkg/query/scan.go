// Package query implements the sort-key condition language Query()
// evaluates against a partition's rows (§4.5), plus the pagination cursor
// Query/Scan use to resume a truncated read.
package query

import (
	"bytes"

	"github.com/bobboyms/stonedb/pkg/types"
)

// ScanOperator is a sort-key comparison operator.
type ScanOperator int

const (
	OpEqual          ScanOperator = iota // =
	OpNotEqual                           // !=
	OpGreaterThan                        // >
	OpGreaterOrEqual                     // >=
	OpLessThan                           // <
	OpLessOrEqual                        // <=
	OpBetween                            // BETWEEN x AND y
	OpBeginsWith                         // begins_with(sk, prefix)
)

// ScanCondition restricts which rows of a partition a Query returns.
type ScanCondition struct {
	Operator ScanOperator
	Value    types.Comparable // unary operators (=, !=, >, <, >=, <=, BETWEEN start)
	ValueEnd types.Comparable // BETWEEN end
	Prefix   []byte           // OpBeginsWith
}

func Equal(value types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpEqual, Value: value}
}

func NotEqual(value types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpNotEqual, Value: value}
}

func GreaterThan(value types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpGreaterThan, Value: value}
}

func GreaterOrEqual(value types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpGreaterOrEqual, Value: value}
}

func LessThan(value types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpLessThan, Value: value}
}

func LessOrEqual(value types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpLessOrEqual, Value: value}
}

func Between(start, end types.Comparable) *ScanCondition {
	return &ScanCondition{Operator: OpBetween, Value: start, ValueEnd: end}
}

// BeginsWith restricts to sort keys whose raw encoded bytes start with prefix.
func BeginsWith(prefix []byte) *ScanCondition {
	return &ScanCondition{Operator: OpBeginsWith, Prefix: prefix}
}

// Matches reports whether key satisfies the condition.
func (sc *ScanCondition) Matches(key types.Comparable) bool {
	switch sc.Operator {
	case OpEqual:
		return key.Compare(sc.Value) == 0
	case OpNotEqual:
		return key.Compare(sc.Value) != 0
	case OpGreaterThan:
		return key.Compare(sc.Value) > 0
	case OpGreaterOrEqual:
		return key.Compare(sc.Value) >= 0
	case OpLessThan:
		return key.Compare(sc.Value) < 0
	case OpLessOrEqual:
		return key.Compare(sc.Value) <= 0
	case OpBetween:
		return key.Compare(sc.Value) >= 0 && key.Compare(sc.ValueEnd) <= 0
	case OpBeginsWith:
		enc, ok := key.(types.EncodedKey)
		return ok && bytes.HasPrefix(enc, sc.Prefix)
	default:
		return false
	}
}

// GetStartKey returns the key a Seek() should begin at to optimize the scan.
func (sc *ScanCondition) GetStartKey() types.Comparable {
	switch sc.Operator {
	case OpEqual, OpGreaterThan, OpGreaterOrEqual, OpBetween:
		return sc.Value
	default:
		return nil // full scan required
	}
}

// ShouldSeek reports whether Seek() can position the scan directly at
// GetStartKey instead of walking from the partition's first row.
func (sc *ScanCondition) ShouldSeek() bool {
	switch sc.Operator {
	case OpEqual, OpGreaterThan, OpGreaterOrEqual, OpBetween:
		return true
	default:
		return false
	}
}

// ShouldContinue reports whether the scan should keep walking forward
// after visiting key.
func (sc *ScanCondition) ShouldContinue(key types.Comparable) bool {
	switch sc.Operator {
	case OpEqual:
		return key.Compare(sc.Value) <= 0
	case OpLessThan:
		return key.Compare(sc.Value) < 0
	case OpLessOrEqual:
		return key.Compare(sc.Value) <= 0
	case OpBetween:
		return key.Compare(sc.ValueEnd) <= 0
	default:
		return true
	}
}

// Page bounds a single Query/Scan invocation: at most Limit rows are
// returned, resuming after ExclusiveStartKey when it is non-nil (§4.5's
// pagination cursor). Descending reverses the scan direction (§6's "forward
// flag", inverted so the zero value Page{} keeps the default ascending
// order); ExclusiveStartKey is then read as "skip keys >= cursor" instead of
// "skip keys <= cursor".
type Page struct {
	Limit             int
	ExclusiveStartKey types.EncodedKey
	Descending        bool
}

// Result carries one page of rows back to the caller, with
// LastEvaluatedKey set when more rows remain beyond Limit.
type Result struct {
	Records          []*types.Record
	LastEvaluatedKey types.EncodedKey
}
