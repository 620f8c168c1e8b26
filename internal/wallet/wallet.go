// Package wallet implements the Wallet Engine (spec §4.2): wallet
// creation from the Hybrid Entropy Unit, HD address derivation, and
// transaction signing, composing the mnemonic, bip32, hdpath, and
// txsign sub-packages the way
// Jasonyou1995/simple-eth-hd-wallet's top-level Wallet type composes the
// same pieces, but with secrets held behind internal/secmem instead of
// plain byte slices.
package wallet

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/audit"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/entropy"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/factoryseed"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/sealedstore"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/bip32"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/hdpath"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/mnemonic"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/txsign"
)

// Info is the non-secret wallet summary returned by GetWalletInfo and
// ListWallets; it never carries the mnemonic.
type Info struct {
	WalletID       string
	PrimaryAddress string
	CreatedAtUnix  int64
}

// CreateResult is returned exactly once, at creation time, per spec
// §4.2's "the mnemonic is returned to the Client exactly once" rule. The
// Client is responsible for its own backup; the TA never re-exports it.
type CreateResult struct {
	WalletID       string
	Mnemonic       string
	PrimaryAddress string
}

// Engine ties the entropy, derivation, and storage layers together. One
// Engine is created per TA Context and lives for the enclave's lifetime.
type Engine struct {
	store   *sealedstore.Store
	entropy *entropy.Unit
	seed    factoryseed.Source
	audit   *audit.Logger
	log     *zap.Logger
}

// New builds a Wallet Engine over an already-open Sealed Store.
func New(store *sealedstore.Store, eu *entropy.Unit, seedSrc factoryseed.Source, al *audit.Logger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, entropy: eu, seed: seedSrc, audit: al, log: log}
}

// CreateWallet runs the full entropy-to-sealed-record pipeline. On an
// entropy quality failure it retries exactly once, per spec §4.2's
// "local recovery: only entropy retry, one attempt" rule; a second
// failure propagates as EntropyQualityError.
func (e *Engine) CreateWallet(ctx context.Context, sessionID string, userBinding []byte) (CreateResult, error) {
	factorySeed, err := e.seed.FactorySeed(ctx)
	if err != nil {
		return CreateResult{}, taerr.Wrap(taerr.KindInternal, "read factory seed", err)
	}
	defer secmem.Zero(factorySeed)

	entropySecret, err := e.entropy.Derive(factorySeed, userBinding)
	if te := taerr.As(err); err != nil && te.Kind == taerr.KindEntropyQualityError {
		entropySecret, err = e.entropy.Derive(factorySeed, userBinding)
	}
	if err != nil {
		e.audit.Log(audit.KindEntropyOperation, sessionID, "", "quality_failure")
		return CreateResult{}, err
	}
	defer entropySecret.Destroy()
	e.audit.Log(audit.KindEntropyOperation, sessionID, "", "ok")

	var mnemonicStr string
	if walkErr := entropySecret.WithBytes(func(raw []byte) error {
		m, merr := mnemonic.FromEntropy(raw)
		mnemonicStr = m
		return merr
	}); walkErr != nil {
		return CreateResult{}, taerr.Wrap(taerr.KindInternal, "build mnemonic", walkErr)
	}

	address, err := addressFromMnemonic(mnemonicStr, hdpath.DefaultPath)
	if err != nil {
		return CreateResult{}, err
	}

	walletID := uuid.NewString()
	rec := sealedstore.Record{
		WalletID:       walletID,
		Mnemonic:       mnemonicStr,
		PrimaryAddress: address.Hex(),
		CreatedAtUnix:  time.Now().Unix(),
	}
	if err := e.store.Put(rec); err != nil {
		return CreateResult{}, err
	}
	e.audit.Log(audit.KindWalletCreated, sessionID, walletID, "")

	return CreateResult{WalletID: walletID, Mnemonic: mnemonicStr, PrimaryAddress: address.Hex()}, nil
}

// DeriveAddress recomputes the address at path for an existing wallet
// without exposing the mnemonic or any intermediate key material.
func (e *Engine) DeriveAddress(sessionID, walletID, path string) (string, error) {
	rec, err := e.store.Get(walletID)
	if err != nil {
		return "", err
	}
	hp, err := hdpath.Parse(path)
	if err != nil {
		e.audit.Log(audit.KindValidationFailure, sessionID, walletID, "bad_hd_path")
		return "", err
	}
	addr, err := addressFromMnemonicPath(rec.Mnemonic, hp)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// SignTransaction derives the signing key at path and signs req,
// returning the {r,s,v} signature concatenated with the encoded signed
// transaction. The derived key never survives past this call.
func (e *Engine) SignTransaction(sessionID, walletID, path string, req txsign.Request) ([]byte, error) {
	rec, err := e.store.Get(walletID)
	if err != nil {
		return nil, err
	}
	hp, err := hdpath.Parse(path)
	if err != nil {
		e.audit.Log(audit.KindValidationFailure, sessionID, walletID, "bad_hd_path")
		return nil, err
	}

	privKey, err := privateKeyFromMnemonicPath(rec.Mnemonic, hp)
	if err != nil {
		return nil, err
	}
	defer privKey.Destroy()

	signed, err := txsign.Sign(privKey, req)
	if err != nil {
		e.audit.Log(audit.KindValidationFailure, sessionID, walletID, "sign_failed")
		return nil, err
	}
	e.audit.Log(audit.KindSignOperation, sessionID, walletID, "")
	return signed, nil
}

// digestLength is the expected size of a pre-hashed message passed to
// SignDigest; go-ethereum's raw ECDSA signer requires exactly 32 bytes.
const digestLength = 32

// SignDigest derives the signing key at path and produces a raw ECDSA
// signature over a caller-supplied 32-byte digest, for callers that have
// already hashed their own payload rather than asking the enclave to
// build and sign a transaction. The derived key never survives past this
// call.
func (e *Engine) SignDigest(sessionID, walletID, path string, digest []byte) ([]byte, error) {
	if len(digest) != digestLength {
		e.audit.Log(audit.KindValidationFailure, sessionID, walletID, "bad_digest_length")
		return nil, taerr.New(taerr.KindBadParameters, "digest must be 32 bytes")
	}

	rec, err := e.store.Get(walletID)
	if err != nil {
		return nil, err
	}
	hp, err := hdpath.Parse(path)
	if err != nil {
		e.audit.Log(audit.KindValidationFailure, sessionID, walletID, "bad_hd_path")
		return nil, err
	}

	privKey, err := privateKeyFromMnemonicPath(rec.Mnemonic, hp)
	if err != nil {
		return nil, err
	}
	defer privKey.Destroy()

	var sig []byte
	walkErr := privKey.WithBytes(func(raw []byte) error {
		key, kerr := gethcrypto.ToECDSA(raw)
		if kerr != nil {
			return kerr
		}
		s, serr := gethcrypto.Sign(digest, key)
		if serr != nil {
			return serr
		}
		sig = s
		return nil
	})
	if walkErr != nil {
		e.audit.Log(audit.KindValidationFailure, sessionID, walletID, "sign_failed")
		return nil, taerr.Wrap(taerr.KindInternal, "sign digest", walkErr)
	}
	e.audit.Log(audit.KindSignOperation, sessionID, walletID, "digest")
	return sig, nil
}

// GetWalletInfo returns the non-secret summary for walletID.
func (e *Engine) GetWalletInfo(walletID string) (Info, error) {
	rec, err := e.store.Get(walletID)
	if err != nil {
		return Info{}, err
	}
	return Info{WalletID: rec.WalletID, PrimaryAddress: rec.PrimaryAddress, CreatedAtUnix: rec.CreatedAtUnix}, nil
}

// ListWallets returns every wallet_id currently sealed.
func (e *Engine) ListWallets() ([]string, error) {
	return e.store.ListIDs()
}

// RemoveWallet deletes walletID's sealed record. Removing an unknown
// wallet_id returns NotFound rather than succeeding silently, per spec
// §8's edge-case table.
func (e *Engine) RemoveWallet(sessionID, walletID string) error {
	if err := e.store.Delete(walletID); err != nil {
		return err
	}
	e.audit.Log(audit.KindWalletRemoved, sessionID, walletID, "")
	return nil
}

func addressFromMnemonic(m string, path string) (common.Address, error) {
	hp, err := hdpath.Parse(path)
	if err != nil {
		return common.Address{}, err
	}
	return addressFromMnemonicPath(m, hp)
}

func addressFromMnemonicPath(m string, hp hdpath.Path) (common.Address, error) {
	privKey, err := privateKeyFromMnemonicPath(m, hp)
	if err != nil {
		return common.Address{}, err
	}
	defer privKey.Destroy()

	var addr common.Address
	walkErr := privKey.WithBytes(func(raw []byte) error {
		key, kerr := gethcrypto.ToECDSA(raw)
		if kerr != nil {
			return kerr
		}
		addr = gethcrypto.PubkeyToAddress(key.PublicKey)
		return nil
	})
	if walkErr != nil {
		return common.Address{}, taerr.Wrap(taerr.KindInternal, "derive address", walkErr)
	}
	return addr, nil
}

func privateKeyFromMnemonicPath(m string, hp hdpath.Path) (*secmem.Secret, error) {
	seed, err := mnemonic.Seed(m)
	if err != nil {
		return nil, taerr.Wrap(taerr.KindInternal, "rebuild seed", err)
	}
	defer seed.Destroy()

	var privKey *secmem.Secret
	walkErr := seed.WithBytes(func(raw []byte) error {
		master, merr := bip32.NewMaster(raw)
		if merr != nil {
			return merr
		}
		pk, derr := master.Derive(hp)
		if derr != nil {
			return derr
		}
		privKey = pk
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return privKey, nil
}
