package scope

import (
	"context"
	"reflect"
	"testing"
)

func TestFromEmpty(t *testing.T) {
	t.Parallel()
	s := From(context.Background())
	if s.Values == nil || len(s.Values) != 0 {
		t.Fatalf("want empty non-nil map, got %v", s.Values)
	}
}

func TestWithMergesAndOverrides(t *testing.T) {
	t.Parallel()
	ctx := With(context.Background(), map[string]string{"a": "1"})
	ctx = With(ctx, map[string]string{"b": "2", "a": "override"})

	want := map[string]string{"a": "override", "b": "2"}
	if got := From(ctx).Values; !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
}

func TestWithLeavesParentUntouched(t *testing.T) {
	t.Parallel()
	parent := With(context.Background(), map[string]string{"a": "1"})
	_ = With(parent, map[string]string{"a": "2", "b": "3"})

	if v, _ := Get(parent, "a"); v != "1" {
		t.Fatalf("parent a = %q", v)
	}
	if _, ok := Get(parent, "b"); ok {
		t.Fatal("child key leaked into parent")
	}
}

func TestWithActor(t *testing.T) {
	t.Parallel()
	ctx := WithActor(context.Background(), "clerk")
	if v, ok := Get(ctx, Actor); !ok || v != "clerk" {
		t.Fatalf("actor %q ok=%v", v, ok)
	}
	if _, ok := Get(ctx, "missing"); ok {
		t.Fatal("missing key reported present")
	}
}
