package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the given
	// apiKey or jobId
	ErrSessionNotFound = errors.New("session not found")

	// ErrSnapshotNotFound is returned when a jobId has no stored snapshot
	ErrSnapshotNotFound = errors.New("player snapshot not found")

	// ErrInvalidCredential is returned by the credential gate on any
	// mismatch or missing credential
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrRateLimited is returned when a client exceeds its request quota
	ErrRateLimited = errors.New("rate limit exceeded")
)
