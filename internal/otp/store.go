// Package otp issues and redeems one-time password reset codes.  Codes live
// in Redis under a TTL and can be redeemed exactly once.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidCode covers wrong, expired and already used codes alike.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrUnavailable is returned when no Redis client is configured.
	ErrUnavailable = errors.New("otp store unavailable")
)

const codeDigits = 6

type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStore returns a store backed by rdb.  rdb may be nil, in which case
// every call returns ErrUnavailable.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl, prefix: "otp"}
}

func (s *Store) key(hallID int64, userID string) string {
	return fmt.Sprintf("%s:%d:%s", s.prefix, hallID, userID)
}

// Issue generates a fresh code for the account, replacing any earlier one.
func (s *Store) Issue(ctx context.Context, hallID int64, userID string) (string, time.Time, error) {
	if s.rdb == nil {
		return "", time.Time{}, ErrUnavailable
	}
	code, err := newCode()
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.rdb.Set(ctx, s.key(hallID, userID), code, s.ttl).Err(); err != nil {
		return "", time.Time{}, err
	}
	return code, time.Now().UTC().Add(s.ttl), nil
}

// Redeem consumes the stored code.  The stored code is deleted whatever the
// outcome, so a guess burns it.
func (s *Store) Redeem(ctx context.Context, hallID int64, userID, code string) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	stored, err := s.rdb.GetDel(ctx, s.key(hallID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	return nil
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
