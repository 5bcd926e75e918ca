package lsm

import (
	"regexp"
	"strconv"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// numberAsFloat is used only for validation-bound comparisons (min/max),
// never for storage or ordering — those stay on types.CompareDecimal's
// big.Rat path.

// validateItem enforces the table's attribute schema (required, type,
// numeric bounds, string length/pattern, enum membership) before a Put is
// accepted. Grounded on the rule set kstone-core's validation module
// applies: required + type + min/max for numbers, min/max length + pattern
// for strings, enum membership for any scalar.
func validateItem(schema *TableSchema, item types.Item) error {
	for _, attr := range schema.Attributes {
		v, present := item[attr.Name]
		if !present {
			if attr.Required {
				return errors.New(errors.InvalidArgument, "lsm: attribute %q is required", attr.Name)
			}
			continue
		}
		if v.Kind != attr.Type {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q must be %s, got %s", attr.Name, attr.Type, v.Kind)
		}
		if err := validateBounds(attr, v); err != nil {
			return err
		}
	}
	return nil
}

func validateBounds(attr AttributeSchema, v types.Value) error {
	switch attr.Type {
	case types.KindN:
		f, err := numberAsFloat(v.N)
		if err != nil {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q is not a valid number", attr.Name)
		}
		if attr.MinNumber != nil && f < *attr.MinNumber {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q is below the minimum %v", attr.Name, *attr.MinNumber)
		}
		if attr.MaxNumber != nil && f > *attr.MaxNumber {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q exceeds the maximum %v", attr.Name, *attr.MaxNumber)
		}
	case types.KindS:
		if attr.MinLength != nil && len(v.S) < *attr.MinLength {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q is shorter than the minimum length %d", attr.Name, *attr.MinLength)
		}
		if attr.MaxLength != nil && len(v.S) > *attr.MaxLength {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q exceeds the maximum length %d", attr.Name, *attr.MaxLength)
		}
		if attr.Pattern != "" {
			matched, err := regexp.MatchString(attr.Pattern, v.S)
			if err != nil {
				return errors.Wrap(errors.InternalError, err, "lsm: invalid pattern for attribute %q", attr.Name)
			}
			if !matched {
				return errors.New(errors.InvalidArgument, "lsm: attribute %q does not match its required pattern", attr.Name)
			}
		}
	}
	if len(attr.Enum) > 0 {
		candidate := valueText(v)
		found := false
		for _, e := range attr.Enum {
			if e == candidate {
				found = true
				break
			}
		}
		if !found {
			return errors.New(errors.InvalidArgument, "lsm: attribute %q is not one of the allowed values", attr.Name)
		}
	}
	return nil
}

func valueText(v types.Value) string {
	switch v.Kind {
	case types.KindS:
		return v.S
	case types.KindN:
		return v.N
	default:
		return ""
	}
}

func numberAsFloat(decimal string) (float64, error) {
	return strconv.ParseFloat(decimal, 64)
}
