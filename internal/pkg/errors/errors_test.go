package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New("GROUP_NOT_FOUND", "group not found", http.StatusNotFound),
			want: "GROUP_NOT_FOUND: group not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("connection refused"), "CONTROLLER_UNREACHABLE", "controller unreachable", http.StatusServiceUnavailable),
			want: "CONTROLLER_UNREACHABLE: controller unreachable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg", 500)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound(CodeClientNotFound, "client not found")
	wrapped := fmt.Errorf("wrapped: %w", appErr)

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeClientNotFound {
		t.Errorf("Code = %q, want %q", got.Code, CodeClientNotFound)
	}
}

func TestHasCode(t *testing.T) {
	err := ErrGroupNotFoundf("guests")

	if !HasCode(err, CodeGroupNotFound) {
		t.Error("HasCode should match GROUP_NOT_FOUND")
	}
	if HasCode(err, CodeGroupExists) {
		t.Error("HasCode should not match a different code")
	}
	if HasCode(fmt.Errorf("plain"), CodeGroupNotFound) {
		t.Error("HasCode should not match a non-AppError")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
	}{
		{"NotFound", NotFound("NF", "not found"), http.StatusNotFound},
		{"BadRequest", BadRequest("BR", "bad request"), http.StatusBadRequest},
		{"Unauthorized", Unauthorized("UA", "unauthorized"), http.StatusUnauthorized},
		{"Conflict", Conflict("CF", "conflict"), http.StatusConflict},
		{"Unavailable", Unavailable("UV", "unavailable"), http.StatusServiceUnavailable},
		{"Internal", Internal("IE", "internal"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestDomainConstructors(t *testing.T) {
	ambiguous := ErrClientAmbiguousf("phone", []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"})
	if ambiguous.Code != CodeClientAmbiguous {
		t.Errorf("Code = %q, want %q", ambiguous.Code, CodeClientAmbiguous)
	}
	if ambiguous.Params["candidates"] == nil {
		t.Error("ambiguous error should carry candidates param")
	}

	rule := ErrInvalidRulef("name", "~[unclosed", "invalid regex")
	if rule.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", rule.HTTPStatus, http.StatusBadRequest)
	}
	if rule.Params["pattern"] != "~[unclosed" {
		t.Errorf("pattern param = %v, want ~[unclosed", rule.Params["pattern"])
	}
}
