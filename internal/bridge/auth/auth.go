// Package auth is the single credential gate in front of every mutating
// operation. Two credential kinds exist: the privileged shared secret
// presented by trusted internal callers, and the per-session API key held by
// a registered worker.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/robloxguru/gamebridge/internal/bridge/domain"
)

// Kind discriminates the two credential flavors
type Kind int

const (
	// KindPrivilegedSecret is the fixed shared secret for internal callers
	KindPrivilegedSecret Kind = iota
	// KindSessionKey is a per-session bearer apiKey
	KindSessionKey
)

// Credential pairs a kind with the presented value
type Credential struct {
	Kind  Kind
	Value string
}

// SessionLookup resolves an apiKey to its session, if any
type SessionLookup interface {
	SessionByAPIKey(ctx context.Context, apiKey string) (*domain.Session, error)
}

// Gate validates credentials. It fails closed: any mismatch, missing value,
// or malformed configuration yields ErrInvalidCredential.
type Gate struct {
	digest   []byte
	salt     string
	sessions SessionLookup
}

// NewGate builds a gate from the hex SHA-256 digest of salt+secret.
func NewGate(secretDigest, salt string, sessions SessionLookup) (*Gate, error) {
	digest, err := hex.DecodeString(secretDigest)
	if err != nil {
		return nil, fmt.Errorf("invalid secret digest: %w", err)
	}
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("invalid secret digest: want %d bytes, got %d", sha256.Size, len(digest))
	}

	return &Gate{
		digest:   digest,
		salt:     salt,
		sessions: sessions,
	}, nil
}

// Verify checks a credential of either kind. For a privileged secret the
// salted digest of the presented value is compared in constant time against
// the configured digest. For a session key the registry is consulted and the
// owning session is returned.
func (g *Gate) Verify(ctx context.Context, cred Credential) (*domain.Session, error) {
	if cred.Value == "" {
		return nil, domain.ErrInvalidCredential
	}

	switch cred.Kind {
	case KindPrivilegedSecret:
		sum := sha256.Sum256([]byte(g.salt + cred.Value))
		if subtle.ConstantTimeCompare(sum[:], g.digest) != 1 {
			return nil, domain.ErrInvalidCredential
		}
		return nil, nil

	case KindSessionKey:
		session, err := g.sessions.SessionByAPIKey(ctx, cred.Value)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil, domain.ErrInvalidCredential
			}
			return nil, err
		}
		return session, nil
	}

	return nil, domain.ErrInvalidCredential
}

// DigestSecret computes the stored form of a privileged secret. Exposed so
// operators can derive config values with a one-liner.
func DigestSecret(secret, salt string) string {
	sum := sha256.Sum256([]byte(salt + secret))
	return hex.EncodeToString(sum[:])
}
