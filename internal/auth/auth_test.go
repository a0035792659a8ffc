package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *TokenStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE principals (
		token_hash TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		role       TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTokenStore(db)
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"admin", "SuperAdmin", " bodega ", "Comercial"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q) error: %v", s, err)
		}
	}
	for _, s := range []string{"", "root", "visitor"} {
		if _, err := ParseRole(s); err == nil {
			t.Errorf("ParseRole(%q) should fail", s)
		}
	}
}

func TestCanWriteArea(t *testing.T) {
	tests := []struct {
		role Role
		area string
		want bool
	}{
		{RoleAdmin, "Despacho", true},
		{RoleSuperAdmin, "Bodega", true},
		{RoleBodega, "Bodega", true},
		{RoleBodega, "bodega", true},
		{RoleBodega, "Despacho", false},
		{RoleDespacho, "Despacho", true},
		{Role("visitor"), "Bodega", false},
	}
	for _, tt := range tests {
		if got := CanWriteArea(tt.role, tt.area); got != tt.want {
			t.Errorf("CanWriteArea(%s, %s) = %v, want %v", tt.role, tt.area, got, tt.want)
		}
	}
}

func TestTokenStore_RegisterResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	token, err := s.Register(ctx, " Ana@Example.com ", RoleMontaje)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if token == "" {
		t.Fatal("Register returned empty token")
	}

	p, err := s.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Email != "ana@example.com" || p.Role != RoleMontaje {
		t.Errorf("Principal = %+v", p)
	}

	var stored string
	s.db.QueryRow(`SELECT token_hash FROM principals`).Scan(&stored)
	if stored == token {
		t.Error("token stored in plain text")
	}
}

func TestTokenStore_ResolveUnknown(t *testing.T) {
	s := openTestStore(t)
	for _, tok := range []string{"", "nope"} {
		if _, err := s.Resolve(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Resolve(%q) = %v, want ErrUnauthenticated", tok, err)
		}
	}
}

func TestTokenStore_RegisterRejectsBadInput(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Register(context.Background(), "", RoleAdmin); err == nil {
		t.Error("empty email should fail")
	}
	if _, err := s.Register(context.Background(), "a@b.c", Role("root")); err == nil {
		t.Error("unknown role should fail")
	}
}

func TestTokenStore_Revoke(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t1, _ := s.Register(ctx, "a@b.c", RoleAdmin)
	t2, _ := s.Register(ctx, "a@b.c", RoleAdmin)

	n, err := s.Revoke(ctx, "A@B.C")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if n != 2 {
		t.Errorf("Revoke removed %d, want 2", n)
	}
	for _, tok := range []string{t1, t2} {
		if _, err := s.Resolve(ctx, tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("revoked token still resolves: %v", err)
		}
	}
}
