/*
Package otp stores short-lived one-time codes.

CONTRACT:
  Put(key, value, ttl)  stores value under key until ttl elapses; a ttl
                        that is not positive fails with ErrInvalidTTL
  Peek(key)             returns the value without consuming it
  TakeOnce(key)         returns the value and deletes it atomically; a second
                        call, or a call after expiry, fails with
                        ErrCodeNotFound

  Stores are injected, never package globals. Expiry is part of the store
  contract, so no caller runs a cleanup sweep.

IMPLEMENTATIONS:
  - Memory: single process, for tests and development
  - Redis:  shared across instances (SET with TTL, GETDEL)
*/
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrCodeNotFound covers unknown, expired and already consumed codes alike.
	ErrCodeNotFound = errors.New("code not found or expired")

	ErrInvalidTTL = errors.New("ttl must be positive")
)

type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Peek(ctx context.Context, key string) (string, error)
	TakeOnce(ctx context.Context, key string) (string, error)
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode returns a random code of n characters without look-alike symbols.
func NewCode(n int) (string, error) {
	buf := make([]byte, n)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
