package jpegr

import "fmt"

// ErrorCode classifies a session failure.
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeInvalidParam
	CodeInvalidOperation
	CodeUnsupportedFeature
	CodeMemError
	CodeUnknownError
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidParam:
		return "invalid param"
	case CodeInvalidOperation:
		return "invalid operation"
	case CodeUnsupportedFeature:
		return "unsupported feature"
	case CodeMemError:
		return "memory error"
	default:
		return "unknown error"
	}
}

// Error is the failure record returned by session operations. Detail is a
// short human-readable string naming the offending values.
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Detail
}

// CodeOf extracts the ErrorCode from an error returned by a session
// operation. A nil error maps to CodeOK, a foreign error to CodeUnknownError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknownError
}

func newError(code ErrorCode, format string, args ...any) *Error {
	detail := fmt.Sprintf(format, args...)
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	return &Error{Code: code, Detail: detail}
}

func errInvalidParam(format string, args ...any) *Error {
	return newError(CodeInvalidParam, format, args...)
}

func errInvalidOperation(format string, args ...any) *Error {
	return newError(CodeInvalidOperation, format, args...)
}

func errUnsupported(format string, args ...any) *Error {
	return newError(CodeUnsupportedFeature, format, args...)
}

func errMem(format string, args ...any) *Error {
	return newError(CodeMemError, format, args...)
}

func errUnknown(format string, args ...any) *Error {
	return newError(CodeUnknownError, format, args...)
}
