package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

/* ========================================================================
 * Error Package - unified error handling
 * ========================================================================
 * Business error codes plus wrapping and conversion helpers.
 * Codes follow the gRPC status code taxonomy; 2xxx codes are
 * tenant/permission specific.
 * ======================================================================== */

// ErrorCode is a business error code.
type ErrorCode int

const (
	// generic (1xxx)
	ErrCodeUnknown          ErrorCode = 1000
	ErrCodeInvalidArgument  ErrorCode = 1001
	ErrCodeNotFound         ErrorCode = 1002
	ErrCodeAlreadyExists    ErrorCode = 1003
	ErrCodePermissionDenied ErrorCode = 1004
	ErrCodeUnauthenticated  ErrorCode = 1005
	ErrCodeInternal         ErrorCode = 1006
	ErrCodeUnavailable      ErrorCode = 1007
	ErrCodeTimeout          ErrorCode = 1008
	ErrCodeCanceled         ErrorCode = 1009

	// tenancy and access control (2xxx)
	ErrCodeTenantNotFound      ErrorCode = 2001
	ErrCodeTenantScopeRequired ErrorCode = 2002
	ErrCodeSelfEscalation      ErrorCode = 2003
	ErrCodeSelfDeletion        ErrorCode = 2004
)

// BizError carries a business error code alongside the cause chain.
type BizError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is matches BizErrors by code so sentinels work with errors.Is.
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *BizError) Unwrap() error {
	return e.Cause
}

// New creates a business error.
func New(code ErrorCode, message string) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a business error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *BizError {
	return &BizError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps a cause with a business error code.
func Wrap(code ErrorCode, message string, cause error) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps a cause with a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *BizError {
	return &BizError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Predefined sentinels for errors.Is checks.
var (
	ErrInvalidArgument  = New(ErrCodeInvalidArgument, "invalid argument")
	ErrNotFound         = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = New(ErrCodeAlreadyExists, "resource already exists")
	ErrPermissionDenied = New(ErrCodePermissionDenied, "permission denied")
	ErrUnauthenticated  = New(ErrCodeUnauthenticated, "unauthenticated")
	ErrInternal         = New(ErrCodeInternal, "internal error")
	ErrUnavailable      = New(ErrCodeUnavailable, "service unavailable")
	ErrTimeout          = New(ErrCodeTimeout, "timeout")
	ErrCanceled         = New(ErrCodeCanceled, "canceled")

	// ErrTenantNotFound: the host named a subdomain but no company matches the slug.
	ErrTenantNotFound = New(ErrCodeTenantNotFound, "tenant not found")
	// ErrTenantScopeRequired: a tenant-scoped operation was constructed without a company id.
	ErrTenantScopeRequired = New(ErrCodeTenantScopeRequired, "tenant scope required")
	// ErrSelfEscalation: a caller tried to change the role on their own user record.
	ErrSelfEscalation = New(ErrCodeSelfEscalation, "cannot change own role")
	// ErrSelfDeletion: a caller tried to delete their own user record.
	ErrSelfDeletion = New(ErrCodeSelfDeletion, "cannot delete own account")
)

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code extracts the business error code, ErrCodeUnknown for foreign errors.
func Code(err error) ErrorCode {
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return ErrCodeUnknown
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return Code(err) == ErrCodeNotFound
}

// AsBizError converts err to a BizError when possible.
func AsBizError(err error) (*BizError, bool) {
	if err == nil {
		return nil, false
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr, true
	}
	return nil, false
}

/* ========================================================================
 * gRPC conversion
 * ======================================================================== */

var errorCodeToGRPCCode = map[ErrorCode]codes.Code{
	ErrCodeUnknown:          codes.Unknown,
	ErrCodeInvalidArgument:  codes.InvalidArgument,
	ErrCodeNotFound:         codes.NotFound,
	ErrCodeAlreadyExists:    codes.AlreadyExists,
	ErrCodePermissionDenied: codes.PermissionDenied,
	ErrCodeUnauthenticated:  codes.Unauthenticated,
	ErrCodeInternal:         codes.Internal,
	ErrCodeUnavailable:      codes.Unavailable,
	ErrCodeTimeout:          codes.DeadlineExceeded,
	ErrCodeCanceled:         codes.Canceled,

	// cross-tenant probes must look like missing records
	ErrCodeTenantNotFound:      codes.NotFound,
	ErrCodeTenantScopeRequired: codes.PermissionDenied,
	ErrCodeSelfEscalation:      codes.PermissionDenied,
	ErrCodeSelfDeletion:        codes.PermissionDenied,
}

// ToGRPCError converts a business error to a gRPC status error.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	var bizErr *BizError
	if errors.As(err, &bizErr) {
		grpcCode, ok := errorCodeToGRPCCode[bizErr.Code]
		if !ok {
			grpcCode = codes.Unknown
		}
		return status.Error(grpcCode, bizErr.Message)
	}

	return status.Error(codes.Internal, err.Error())
}

/* ========================================================================
 * HTTP conversion
 * ======================================================================== */

var httpStatusCode = map[ErrorCode]int{
	ErrCodeUnknown:          500,
	ErrCodeInvalidArgument:  400,
	ErrCodeNotFound:         404,
	ErrCodeAlreadyExists:    409,
	ErrCodePermissionDenied: 403,
	ErrCodeUnauthenticated:  401,
	ErrCodeInternal:         500,
	ErrCodeUnavailable:      503,
	ErrCodeTimeout:          504,
	ErrCodeCanceled:         499,

	ErrCodeTenantNotFound:      404,
	ErrCodeTenantScopeRequired: 403,
	ErrCodeSelfEscalation:      403,
	ErrCodeSelfDeletion:        403,
}

// HTTPStatus maps a business error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		if code, ok := httpStatusCode[bizErr.Code]; ok {
			return code
		}
	}
	return 500
}
