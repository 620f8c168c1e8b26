package sealedstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/sealedstore"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
)

func openTestStore(t *testing.T) *sealedstore.Store {
	t.Helper()
	dir := t.TempDir()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	store, err := sealedstore.Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	rec := sealedstore.Record{
		WalletID:       "wallet-1",
		Mnemonic:       "abandon abandon abandon ability able about above absent absorb abstract absurd abuse",
		PrimaryAddress: "0xAbC0000000000000000000000000000000dEaD",
		CreatedAtUnix:  1700000000,
	}
	require.NoError(t, store.Put(rec))

	got, err := store.Get("wallet-1")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestGetMissingIsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("does-not-exist")
	require.Equal(t, taerr.KindNotFound, taerr.As(err).Kind)
}

func TestDeleteOnMissingIsNotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.Delete("never-existed")
	require.Equal(t, taerr.KindNotFound, taerr.As(err).Kind)
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put(sealedstore.Record{WalletID: "w"}))
	require.NoError(t, store.Delete("w"))
	_, err := store.Get("w")
	require.Equal(t, taerr.KindNotFound, taerr.As(err).Kind)
}

func TestListIDs(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put(sealedstore.Record{WalletID: "a"}))
	require.NoError(t, store.Put(sealedstore.Record{WalletID: "b"}))

	ids, err := store.ListIDs()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestTamperedFileFailsIntegrityCheck(t *testing.T) {
	dir := t.TempDir()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	store, err := sealedstore.Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Put(sealedstore.Record{WalletID: "tampered", PrimaryAddress: "0x0"}))

	path := filepath.Join(dir, "tampered.sealed")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF // flip a bit inside the GCM tag/ciphertext
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = store.Get("tampered")
	require.Equal(t, taerr.KindIntegrityError, taerr.As(err).Kind)
}

func TestTruncatedFileFailsIntegrityCheck(t *testing.T) {
	dir := t.TempDir()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	store, err := sealedstore.Open(dir, key)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Put(sealedstore.Record{WalletID: "short"}))

	path := filepath.Join(dir, "short.sealed")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)/2], 0o600))

	_, err = store.Get("short")
	require.Equal(t, taerr.KindIntegrityError, taerr.As(err).Kind)
}

func TestOpenRejectsEmptyMasterKey(t *testing.T) {
	_, err := sealedstore.Open(t.TempDir(), nil)
	require.Error(t, err)
}
