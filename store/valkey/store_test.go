package valkey

import (
	"context"
	"errors"
	"testing"

	"github.com/healthstack/securecore/store"
)

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New() with empty address should fail")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil passes through", err: nil, want: nil},
		{name: "deadline maps to unavailable", err: context.DeadlineExceeded, want: store.ErrUnavailable},
		{name: "cancellation maps to unavailable", err: context.Canceled, want: store.ErrUnavailable},
		{name: "dial failure maps to unavailable", err: errors.New("dial tcp: connection refused"), want: store.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("classify() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyPrefixing(t *testing.T) {
	s := &Store{prefix: "seccore:"}
	if got := s.key("rl:auth:t:id"); got != "seccore:rl:auth:t:id" {
		t.Errorf("key() = %q, want prefixed key", got)
	}
}
