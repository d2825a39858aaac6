package runtime

import (
	"context"
	"testing"
)

type stubExecutor struct {
	nodeType string
}

func (s *stubExecutor) Execute(ctx context.Context, input *ExecutionInput) (*ExecutionOutput, error) {
	return &ExecutionOutput{Data: map[string]interface{}{}}, nil
}

func (s *stubExecutor) Validate(config map[string]interface{}) error { return nil }
func (s *stubExecutor) GetType() string                              { return s.nodeType }
func (s *stubExecutor) GetMetadata() NodeMetadata {
	return NodeMetadata{Type: s.nodeType, Category: "test"}
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &stubExecutor{nodeType: "stub"}
	b := &stubExecutor{nodeType: "stub"}

	if err := r.Register(a); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register(b); err != nil {
		t.Fatalf("duplicate registration must be a no-op, not an error: %v", err)
	}

	got, err := r.Get("stub")
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Error("duplicate registration should not have replaced the original executor")
	}
}

func TestGetUnknownNodeType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("does-not-exist")
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*UnknownNodeTypeError); !ok {
		t.Fatalf("expected *UnknownNodeTypeError, got %T", err)
	}
}

func TestUnregisterAndContains(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExecutor{nodeType: "stub"})

	if !r.Contains("stub") {
		t.Fatal("expected stub to be registered")
	}
	r.Unregister("stub")
	if r.Contains("stub") {
		t.Fatal("expected stub to be removed")
	}
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExecutor{nodeType: "a"})
	r.Register(&stubExecutor{nodeType: "b"})

	r.Clear()
	if len(r.List()) != 0 {
		t.Fatal("expected an empty registry after Clear")
	}
}

func TestDiscoverContinuesPastFailures(t *testing.T) {
	r := NewRegistry()
	constructors := []Constructor{
		func() NodeExecutor { return &stubExecutor{nodeType: "ok"} },
		func() NodeExecutor { panic("boom") },
	}
	failures := r.Discover(constructors)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if !r.Contains("ok") {
		t.Fatal("expected the successful constructor's executor to be registered")
	}
}
