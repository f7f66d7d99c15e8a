package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := stderrors.New("driver: connection refused")
	err := Wrap(ErrCodeUnavailable, "load session", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("cause lost from chain")
	}
	if Code(err) != ErrCodeUnavailable {
		t.Fatalf("code = %d", Code(err))
	}
	if got := err.Error(); got != fmt.Sprintf("[%d] load session: %v", ErrCodeUnavailable, cause) {
		t.Fatalf("message = %q", got)
	}
}

func TestSentinelMatchingByCode(t *testing.T) {
	wrapped := Wrap(ErrCodeNotFound, "customer 9", stderrors.New("record not found"))
	if !Is(wrapped, ErrNotFound) {
		t.Fatal("wrapped not-found must match the sentinel")
	}
	if Is(wrapped, ErrPermissionDenied) {
		t.Fatal("codes must not cross-match")
	}
	if !IsNotFound(wrapped) {
		t.Fatal("IsNotFound")
	}
	if IsNotFound(ErrTenantNotFound) {
		t.Fatal("tenant-not-found is a distinct code")
	}
}

func TestCodeOnForeignError(t *testing.T) {
	if Code(stderrors.New("plain")) != ErrCodeUnknown {
		t.Fatal("foreign errors map to unknown")
	}
	if Code(nil) != ErrCodeUnknown {
		t.Fatal("nil maps to unknown")
	}
}

func TestAsBizError(t *testing.T) {
	inner := New(ErrCodeSelfDeletion, "cannot delete own account")
	outer := fmt.Errorf("handler: %w", inner)

	biz, ok := AsBizError(outer)
	if !ok || biz.Code != ErrCodeSelfDeletion {
		t.Fatalf("AsBizError = %v, %v", biz, ok)
	}
	if _, ok := AsBizError(stderrors.New("plain")); ok {
		t.Fatal("plain error is not a BizError")
	}
	if _, ok := AsBizError(nil); ok {
		t.Fatal("nil is not a BizError")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 200},
		{ErrInvalidArgument, 400},
		{ErrUnauthenticated, 401},
		{ErrPermissionDenied, 403},
		{ErrNotFound, 404},
		{ErrTenantNotFound, 404},
		{ErrTenantScopeRequired, 403},
		{ErrSelfEscalation, 403},
		{ErrSelfDeletion, 403},
		{ErrTimeout, 504},
		{stderrors.New("plain"), 500},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestToGRPCErrorHidesTenantExistence(t *testing.T) {
	st, ok := status.FromError(ToGRPCError(ErrTenantNotFound))
	if !ok {
		t.Fatal("not a status error")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("tenant-not-found must surface as NotFound, got %v", st.Code())
	}

	st, _ = status.FromError(ToGRPCError(stderrors.New("plain")))
	if st.Code() != codes.Internal {
		t.Fatalf("foreign error must surface as Internal, got %v", st.Code())
	}
	if ToGRPCError(nil) != nil {
		t.Fatal("nil stays nil")
	}
}
