package adapters

import (
	"context"
	"errors"
	"testing"
)

func TestInsertAndFetchTextSingleRowOnly(t *testing.T) {
	a := &mockAdapter{}
	ctx := context.Background()

	if _, _, err := InsertAndFetchText(ctx, a, "users", "[1]{name}:\n  Alice", WriteOptions{}); err != nil {
		t.Fatalf("InsertAndFetchText failed: %v", err)
	}

	_, _, err := InsertAndFetchText(ctx, a, "users", "[2]{name}:\n  Alice\n  Bob", WriteOptions{})
	if !errors.Is(err, ErrValue) {
		t.Errorf("err = %v, want ErrValue for multi-row payload", err)
	}
}

func TestTextSurfaceRejectsMalformedPayload(t *testing.T) {
	a := &mockAdapter{}
	ctx := context.Background()

	if _, _, err := InsertManyAndFetchText(ctx, a, "users", "not a notation block", WriteOptions{}); !errors.Is(err, ErrValue) {
		t.Errorf("err = %v, want ErrValue", err)
	}
	if _, _, err := UpdateAndFetchText(ctx, a, "users", "[1]{a}:\n  1", "broken", WriteOptions{}); !errors.Is(err, ErrValue) {
		t.Errorf("err = %v, want ErrValue", err)
	}
}
