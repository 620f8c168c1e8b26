package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/audit"
)

func TestLoggerChainsRecordsAndStopsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	macKey := []byte("test-mac-key-0123456789abcdef")

	logger, err := audit.NewLogger(path, macKey, nil, audit.DefaultBuffer)
	require.NoError(t, err)
	logger.Start()

	logger.Log(audit.KindSessionOpened, "sess-1", "", "caller")
	logger.Log(audit.KindWalletCreated, "sess-1", "wallet-1", "")
	logger.Log(audit.KindSessionClosed, "sess-1", "", "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, logger.Stop(ctx))
	require.Zero(t, logger.Dropped())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var prevMAC string
	var seq uint64
	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		count++
		var ev struct {
			Seq       uint64 `json:"seq"`
			PrevMAC   string `json:"prev_mac"`
			MAC       string `json:"mac"`
			Kind      string `json:"kind"`
			SessionID string `json:"session_id"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		require.Equal(t, seq+1, ev.Seq)
		require.Equal(t, prevMAC, ev.PrevMAC)
		require.NotEmpty(t, ev.MAC)
		seq = ev.Seq
		prevMAC = ev.MAC
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, 3, count)
}

func TestLoggerDropsUnderBackpressure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := audit.NewLogger(path, []byte("k"), nil, 1)
	require.NoError(t, err)
	// Never started: the queue fills immediately and every Log call past
	// its capacity is dropped rather than blocking the caller.
	for i := 0; i < 10; i++ {
		logger.Log(audit.KindSignOperation, "s", "w", "")
	}
	require.Greater(t, logger.Dropped(), uint64(0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, logger.Stop(ctx))
}

func TestStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := audit.NewLogger(path, []byte("k"), nil, audit.DefaultBuffer)
	require.NoError(t, err)
	logger.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, logger.Stop(ctx))
	require.NoError(t, logger.Stop(ctx))
}

func TestNilLoggerMethodsAreSafe(t *testing.T) {
	var l *audit.Logger
	l.Start()
	l.Log(audit.KindSessionOpened, "s", "", "")
	require.Zero(t, l.Dropped())
	require.NoError(t, l.Stop(context.Background()))
}

func TestClientRateLimiterTokenBucket(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	limiter := audit.NewClientRateLimiter(2, clock)

	require.True(t, limiter.Allow("sess"))
	require.True(t, limiter.Allow("sess"))
	require.False(t, limiter.Allow("sess"), "burst capacity of 2 is exhausted")

	now = now.Add(30 * time.Second) // half the per-minute rate's refill window
	require.True(t, limiter.Allow("sess"))
}

func TestClientRateLimiterPerSessionIsolation(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	limiter := audit.NewClientRateLimiter(1, clock)

	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))
	require.True(t, limiter.Allow("b"), "a separate session must have its own bucket")
}

func TestClientRateLimiterForget(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	limiter := audit.NewClientRateLimiter(1, clock)

	require.True(t, limiter.Allow("sess"))
	require.False(t, limiter.Allow("sess"))

	limiter.Forget("sess")
	require.True(t, limiter.Allow("sess"), "forgetting a session resets its bucket")
}
