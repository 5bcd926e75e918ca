// Package errors defines stonedb's error taxonomy: a fixed set of Code
// values (§7) plus the typed error structs the engine returns, each of
// which reports the Code it maps to so callers can branch on category
// without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies every error the engine can return (§7).
type Code uint8

const (
	IOError Code = iota
	Corruption
	NotFound
	InvalidArgument
	AlreadyExists
	WALFull
	ChecksumMismatch
	InternalError
	EncryptionError
	CompressionError
	ManifestCorruption
	CompactionError
	StripeError
	InvalidExpression
	ConditionalCheckFailed
	TransactionCanceled
	InvalidQuery
	ResourceExhausted
)

func (c Code) String() string {
	switch c {
	case IOError:
		return "IO_ERROR"
	case Corruption:
		return "CORRUPTION"
	case NotFound:
		return "NOT_FOUND"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case WALFull:
		return "WAL_FULL"
	case ChecksumMismatch:
		return "CHECKSUM_MISMATCH"
	case InternalError:
		return "INTERNAL_ERROR"
	case EncryptionError:
		return "ENCRYPTION_ERROR"
	case CompressionError:
		return "COMPRESSION_ERROR"
	case ManifestCorruption:
		return "MANIFEST_CORRUPTION"
	case CompactionError:
		return "COMPACTION_ERROR"
	case StripeError:
		return "STRIPE_ERROR"
	case InvalidExpression:
		return "INVALID_EXPRESSION"
	case ConditionalCheckFailed:
		return "CONDITIONAL_CHECK_FAILED"
	case TransactionCanceled:
		return "TRANSACTION_CANCELED"
	case InvalidQuery:
		return "INVALID_QUERY"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// IsRetryable reports whether a caller may reasonably retry the operation
// that produced this code, per §7's retryable subset.
func (c Code) IsRetryable() bool {
	switch c {
	case IOError, WALFull, ResourceExhausted, CompactionError, StripeError:
		return true
	default:
		return false
	}
}

// Coded is implemented by every error stonedb returns, letting callers
// recover the Code without type-switching on concrete structs.
type Coded interface {
	error
	ErrCode() Code
}

// Error is the general-purpose carrier for a coded failure: a Code, a
// human message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) ErrCode() Code { return e.Code }
func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries cause as its Unwrap target.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the Code from err if it (or something in its chain)
// implements Coded, defaulting to InternalError otherwise.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.ErrCode()
	}
	return InternalError
}

// IsRetryable reports whether err's Code is in the retryable subset.
func IsRetryable(err error) bool {
	return CodeOf(err).IsRetryable()
}

// TableAlreadyExistsError is returned when creating a table whose name is
// already registered in the manifest.
type TableAlreadyExistsError struct {
	Name string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}
func (e *TableAlreadyExistsError) ErrCode() Code { return AlreadyExists }

// TableNotFoundError is returned when an operation names a table the
// manifest has no record of.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}
func (e *TableNotFoundError) ErrCode() Code { return NotFound }

// TwoPrimaryKeysError is returned when a table schema names more than one
// partition key attribute.
type TwoPrimaryKeysError struct {
	Total int
}

func (e *TwoPrimaryKeysError) Error() string {
	return fmt.Sprintf("schema defines %d partition key attributes; exactly one is allowed", e.Total)
}
func (e *TwoPrimaryKeysError) ErrCode() Code { return InvalidArgument }

// PrimaryKeyNotDefinedError is returned when a table schema omits the
// required partition key attribute.
type PrimaryKeyNotDefinedError struct {
	TableName string
}

func (e *PrimaryKeyNotDefinedError) Error() string {
	return fmt.Sprintf("partition key not defined for table %q", e.TableName)
}
func (e *PrimaryKeyNotDefinedError) ErrCode() Code { return InvalidArgument }

// DuplicateKeyError is returned by Insert on a unique pkg/btree tree when
// the key is already present.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in index", e.Key)
}
func (e *DuplicateKeyError) ErrCode() Code { return AlreadyExists }

// IndexNotFoundError is returned when a Query/Scan or DDL operation names
// an LSI/GSI the table's schema does not define.
type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}
func (e *IndexNotFoundError) ErrCode() Code { return InvalidArgument }

// InvalidKeyTypeError is returned when an index key attribute resolves to
// a Value kind that cannot be ordered (only S, N and B are key-eligible).
type InvalidKeyTypeError struct {
	Name     string
	TypeName string
}

func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("invalid key type for index %q: %s", e.Name, e.TypeName)
}
func (e *InvalidKeyTypeError) ErrCode() Code { return InvalidArgument }
