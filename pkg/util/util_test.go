package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milestonez/pkg/circuitbreaker"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("42", "secret", time.Hour)
	require.NoError(t, err)

	userID, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "42", userID)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)
}

func TestParseJWT_NumericClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	userID, err := ParseJWT(signed, "secret")
	require.NoError(t, err)
	assert.Equal(t, "7", userID)
}

func TestParseJWT_Expired(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "1",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseJWT(signed, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", ExtractToken(r))
}

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) UpstreamStatus() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
		kind      string
	}{
		{nil, false, ""},
		{circuitbreaker.ErrCircuitBreakerOpen, true, "circuit_open"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true, "timeout"},
		{context.Canceled, false, "context_canceled"},
		{statusErr(503), true, "upstream_unavailable"},
		{statusErr(429), true, "rate_limited"},
		{statusErr(400), false, "upstream_rejected"},
		{fmt.Errorf("exec: database is locked"), true, "db_busy"},
		{fmt.Errorf("something else"), false, "unknown_error"},
	}

	for _, tt := range tests {
		retryable, kind := IsRetryableError(tt.err)
		assert.Equal(t, tt.retryable, retryable, "%v", tt.err)
		assert.Equal(t, tt.kind, kind, "%v", tt.err)
	}
}

// Requires a reachable redis; set TEST_REDIS_ADDR to run.
func TestDeduper_AcquireOnce(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDeduper(rdb, time.Minute, nil)
	ctx := context.Background()
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())

	assert.True(t, d.AcquireOnce(ctx, "generate", key))
	assert.False(t, d.AcquireOnce(ctx, "generate", key))

	d.Release(ctx, "generate", key)
	assert.True(t, d.AcquireOnce(ctx, "generate", key))
	d.Release(ctx, "generate", key)
}

func TestDeduper_RedisDownAllows(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDeduper(rdb, time.Minute, nil)
	assert.True(t, d.AcquireOnce(context.Background(), "generate", "k"))
}
