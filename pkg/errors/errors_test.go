package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStoreErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{
			name: "not found with key",
			err:  NotFound("head", "data", "a/b.txt"),
			want: "head a/b.txt: NOT_FOUND",
		},
		{
			name: "transport with cause",
			err:  Transport("put", "data", "a.txt", errors.New("connection reset")),
			want: "put a.txt: TRANSPORT: connection reset",
		},
		{
			name: "transport without key",
			err:  Transport("list", "data", "", errors.New("timeout")),
			want: "list: TRANSPORT: timeout",
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

func TestErrorsIsMatchesByCode(t *testing.T) {
	base := NotFound("head", "data", "missing.txt")
	wrapped := fmt.Errorf("stat failed: %w", base)

	if !errors.Is(wrapped, &StoreError{Code: CodeNotFound}) {
		t.Error("wrapped NotFound should match StoreError with CodeNotFound")
	}
	if errors.Is(wrapped, &StoreError{Code: CodeTransport}) {
		t.Error("wrapped NotFound should not match CodeTransport")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", NotFound("head", "b", "k"), true},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("head", "b", "k")), true},
		{"transport", Transport("get", "b", "k", errors.New("boom")), false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transport("get", "data", "k", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}

func TestErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"not found", NotFound("head", "b", "k"), -ENOENT},
		{"is directory", IsDirectoryError("open", "/dir"), -EISDIR},
		{"invalid argument", InvalidArgument("open", "/f", errors.New("bad flags")), -EINVAL},
		{"read only", ReadOnly("write", "/f"), -EACCES},
		{"transport", Transport("get", "b", "k", errors.New("boom")), -EIO},
		{"plain error", errors.New("boom"), -EIO},
		{"wrapped not found", fmt.Errorf("outer: %w", NotFound("head", "b", "k")), -ENOENT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Errno(tt.err); got != tt.want {
				t.Errorf("Errno() = %d, want %d", got, tt.want)
			}
		})
	}
}
