package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentityProvider resolves an opaque bearer token to a principal.
type IdentityProvider interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}

// TokenStore keeps principals in SQLite keyed by the sha256 of their token.
// Plain tokens are only ever returned once, from Register.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a store backed by the given SQL database.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Register issues a new token for email with the given role.
func (s *TokenStore) Register(ctx context.Context, email string, role Role) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("empty email")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (token_hash, email, role, created_at)
		VALUES (?, ?, ?, ?)`,
		hashToken(token), email, string(role), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve implements IdentityProvider.
func (s *TokenStore) Resolve(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	var p Principal
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT email, role FROM principals WHERE token_hash = ?`, hashToken(token),
	).Scan(&p.Email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, err
	}
	p.Role, err = ParseRole(role)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// Revoke deletes every token belonging to email.
func (s *TokenStore) Revoke(ctx context.Context, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM principals WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StaticProvider resolves from a fixed token map. Used by tests.
type StaticProvider map[string]Principal

func (p StaticProvider) Resolve(_ context.Context, token string) (Principal, error) {
	if pr, ok := p[token]; ok {
		return pr, nil
	}
	return Principal{}, ErrUnauthenticated
}
