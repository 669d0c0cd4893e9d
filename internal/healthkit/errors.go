package healthkit

import "fmt"

// ErrorKind classifies what went wrong with a single export record.
type ErrorKind int

const (
	KindBadTimestamp ErrorKind = iota
	KindMalformedRecord
	KindUnknownType
	KindUnitMismatch
	KindUnknownCategoryValue
	KindMissingSource
	KindBadNumber
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadTimestamp:
		return "bad timestamp"
	case KindMalformedRecord:
		return "malformed record"
	case KindUnknownType:
		return "unknown record type"
	case KindUnitMismatch:
		return "unit mismatch"
	case KindUnknownCategoryValue:
		return "unknown category value"
	case KindMissingSource:
		return "missing source name"
	case KindBadNumber:
		return "bad numeric value"
	default:
		return "unknown error"
	}
}

// RecordError describes why one Record could not be converted. Record is the
// 1-based index of the record within the document, or 0 when the error is
// raised before the driver assigns one.
type RecordError struct {
	Kind   ErrorKind
	Record int
	Detail string
	Err    error
}

func (e *RecordError) Error() string {
	msg := e.Kind.String()
	if e.Record > 0 {
		msg = fmt.Sprintf("record %d: %s", e.Record, msg)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error { return e.Err }

func recordErr(kind ErrorKind, format string, args ...any) *RecordError {
	return &RecordError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
