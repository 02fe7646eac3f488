package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPrincipalDeleted(t *testing.T) {
	p := &Principal{ID: "p1", Kind: KindUser}
	if p.Deleted() {
		t.Fatal("principal without DeletedAt must not read as deleted")
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	if !p.Deleted() {
		t.Fatal("principal with DeletedAt must read as deleted")
	}
}

func TestStoreLivenessFollowsDeleted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	p := &Principal{Kind: KindUser, Username: "alice", Email: "alice@example.com", Active: true}
	if err := store.principals.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.principals.SoftDelete(ctx, KindUser, p.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !store.principals.raw(p.ID).Deleted() {
		t.Fatal("expected record marked deleted")
	}
	if _, err := store.principals.FindByID(ctx, KindUser, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted record must be invisible, got %v", err)
	}

	if err := store.principals.Restore(ctx, KindUser, p.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if store.principals.raw(p.ID).Deleted() {
		t.Fatal("expected record restored")
	}
	if _, err := store.principals.FindByID(ctx, KindUser, p.ID); err != nil {
		t.Fatalf("restored record must be visible, got %v", err)
	}
}
