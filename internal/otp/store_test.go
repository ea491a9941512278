package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Minute), mr
}

func TestIssueAndRedeemOnce(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	code, exp, err := s.Issue(ctx, 1, "owner1")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.True(t, exp.After(time.Now()))
	assert.Equal(t, time.Minute, mr.TTL("otp:1:owner1"))

	require.NoError(t, s.Redeem(ctx, 1, "owner1", code))
	assert.ErrorIs(t, s.Redeem(ctx, 1, "owner1", code), ErrInvalidCode)
}

func TestRedeemWrongCodeBurnsIt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, _, err := s.Issue(ctx, 1, "owner1")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, s.Redeem(ctx, 1, "owner1", wrong), ErrInvalidCode)
	assert.ErrorIs(t, s.Redeem(ctx, 1, "owner1", code), ErrInvalidCode)
}

func TestRedeemExpired(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	code, _, err := s.Issue(ctx, 1, "owner1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, s.Redeem(ctx, 1, "owner1", code), ErrInvalidCode)
}

func TestCodesAreScopedPerHall(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	code, _, err := s.Issue(ctx, 1, "owner1")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Redeem(ctx, 2, "owner1", code), ErrInvalidCode)
	require.NoError(t, s.Redeem(ctx, 1, "owner1", code))
}

func TestNilClient(t *testing.T) {
	s := NewStore(nil, 0)
	_, _, err := s.Issue(context.Background(), 1, "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Redeem(context.Background(), 1, "x", "123456"), ErrUnavailable)
}
