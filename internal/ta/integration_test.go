package ta_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/ca"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/config"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/ta"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taproto"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/telemetry"
)

// startTestTA spins up a real TA context and UDS server in a temp
// directory and returns a connected Client Proxy, mirroring the
// real-socket integration style of
// internal/signer/integration_test.go, adapted from gRPC-over-UDS to
// internal/taproto framing over the same transport primitive.
func startTestTA(t *testing.T) *ca.Client {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := &config.Config{
		Env: "development",
		TA: config.TAConfig{
			SocketPath:         filepath.Join(tmpDir, "ta.sock"),
			SealedStoreDir:     filepath.Join(tmpDir, "sealed"),
			SessionTTLSec:      3600,
			DevUUID:            config.DevUUID,
			ProductionUUID:     config.ProductionUUID,
			RateLimitPerMinute: 1000,
			FactorySeedSource:  "emulated",
		},
	}

	taCtx, err := ta.Create(context.Background(), cfg, telemetry.Nop())
	require.NoError(t, err)

	srv, err := ta.NewServer(taCtx, cfg.TA.SocketPath, telemetry.Nop())
	require.NoError(t, err)

	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(stopCtx)
		_ = taCtx.Destroy(stopCtx)
	})

	waitForSocket(t, cfg.TA.SocketPath)

	client, err := ca.Open(cfg.TA.SocketPath, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestHelloWorldRoundTrip(t *testing.T) {
	client := startTestTA(t)

	out, err := client.InvokeWithRetry(taproto.CmdHelloWorld, nil, 8)
	require.NoError(t, err)

	rd := taproto.NewReader(out)
	greeting, err := rd.GetString()
	require.NoError(t, err)
	require.NotEmpty(t, greeting)
}

func TestEchoIdentity(t *testing.T) {
	client := startTestTA(t)

	payload := []byte("round-trip-me")
	out, err := client.InvokeWithRetry(taproto.CmdEcho, payload, uint32(len(payload)))
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestBadCommandIsRejected(t *testing.T) {
	client := startTestTA(t)

	_, err := client.Invoke(taproto.CommandID(3), nil, 64)
	require.Error(t, err)
}

func TestCreateDeriveSignFlow(t *testing.T) {
	client := startTestTA(t)

	nonce := uint64(1)
	w := taproto.NewWriter()
	w.PutUint64(nonce)
	w.PutBytes(nil) // no user_binding

	out, err := client.InvokeWithRetry(taproto.CmdCreateWallet, w.Bytes(), 512)
	require.NoError(t, err)

	rd := taproto.NewReader(out)
	walletID, err := rd.GetString()
	require.NoError(t, err)
	mnemonicStr, err := rd.GetString()
	require.NoError(t, err)
	primaryAddr, err := rd.GetString()
	require.NoError(t, err)
	require.NotEmpty(t, walletID)
	require.NotEmpty(t, mnemonicStr)
	require.NotEmpty(t, primaryAddr)

	// Derive the same default path again; must match the creation-time
	// primary address exactly — derivation is deterministic.
	nonce++
	w = taproto.NewWriter()
	w.PutUint64(nonce)
	w.PutString(walletID)
	w.PutString("m/44'/60'/0'/0/0")

	out, err = client.InvokeWithRetry(taproto.CmdDeriveAddress, w.Bytes(), 256)
	require.NoError(t, err)
	rd = taproto.NewReader(out)
	derived, err := rd.GetString()
	require.NoError(t, err)
	require.Equal(t, primaryAddr, derived)

	// Sign a minimal legacy transaction with that wallet.
	nonce++
	w = taproto.NewWriter()
	w.PutUint64(nonce)
	w.PutString(walletID)
	w.PutString("m/44'/60'/0'/0/0")
	w.PutUint64(1) // chain_id
	w.PutUint64(0) // tx nonce
	w.PutBytes(make([]byte, 20))
	w.PutBytes([]byte{0x01})
	w.PutBytes([]byte{0x01})
	w.PutUint64(21000)
	w.PutBytes(nil)

	out, err = client.InvokeWithRetry(taproto.CmdSignTransaction, w.Bytes(), 1024)
	require.NoError(t, err)
	require.True(t, len(out) > 65, "signed payload should include the 65-byte signature plus the encoded tx")
}

func TestCreateHybridAccountAndSignDigest(t *testing.T) {
	client := startTestTA(t)

	nonce := uint64(1)
	w := taproto.NewWriter()
	w.PutUint64(nonce)
	w.PutBytes(nil) // no user_binding

	out, err := client.InvokeWithRetry(taproto.CmdCreateHybridAccount, w.Bytes(), 512)
	require.NoError(t, err)

	rd := taproto.NewReader(out)
	accountID, err := rd.GetString()
	require.NoError(t, err)
	primaryAddr, err := rd.GetString()
	require.NoError(t, err)
	require.NotEmpty(t, accountID)
	require.NotEmpty(t, primaryAddr)
	require.Empty(t, rd.Rest(), "command 20's response must be {account_id, primary_address} only, no mnemonic")

	// Sign a caller-supplied digest; the wire shape is {account_id,
	// hd_path, digest} -> {signature_bytes}, not a transaction envelope.
	nonce++
	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i + 1)
	}
	w = taproto.NewWriter()
	w.PutUint64(nonce)
	w.PutString(accountID)
	w.PutString("m/44'/60'/0'/0/0")
	w.PutBytes(digest)

	out, err = client.InvokeWithRetry(taproto.CmdSignWithHybridKey, w.Bytes(), 256)
	require.NoError(t, err)

	rd = taproto.NewReader(out)
	sig, err := rd.GetBytes()
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.Empty(t, rd.Rest())
}

func TestRemoveUnknownWalletIsNotFound(t *testing.T) {
	client := startTestTA(t)

	w := taproto.NewWriter()
	w.PutUint64(1)
	w.PutString("does-not-exist")

	_, err := client.InvokeWithRetry(taproto.CmdRemoveWallet, w.Bytes(), 8)
	require.Error(t, err)
	require.Equal(t, taerr.KindNotFound, taerr.As(err).Kind)
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			conn, err := net.DialTimeout("unix", path, 200*time.Millisecond)
			if err == nil {
				conn.Close()
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("socket %s did not become available", path)
}
