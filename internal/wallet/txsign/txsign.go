// Package txsign builds and signs legacy Ethereum transactions from the
// wire-level fields the Client supplies, using go-ethereum's own
// transaction and signer types so the produced bytes are exactly what a
// node would accept.
package txsign

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
)

// MaxEncodedSize bounds the RLP-encoded transaction the TA will sign, per
// spec §4.2's 8 KiB input ceiling.
const MaxEncodedSize = 8 * 1024

// Request is the set of fields needed to build and sign one legacy
// transaction.
type Request struct {
	ChainID  uint64
	Nonce    uint64
	To       *common.Address // nil for contract creation
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
	Data     []byte
}

// Sign derives the ECDSA key from privateKey behind the enclave boundary,
// signs an EIP-155 transaction built from req, and returns the 65-byte
// {r,s,v} signature concatenated with the RLP-encoded signed transaction.
// The raw scalar is zeroized on every return path, including errors.
func Sign(privateKey *secmem.Secret, req Request) (signed []byte, err error) {
	if len(req.Data)+estimateFixedSize(req) > MaxEncodedSize {
		return nil, taerr.New(taerr.KindBadParameters, "transaction exceeds maximum encoded size")
	}
	if req.Value == nil || req.GasPrice == nil {
		return nil, taerr.New(taerr.KindBadParameters, "value and gas price are required")
	}

	var out []byte
	walkErr := privateKey.WithBytes(func(raw []byte) error {
		key, derr := gethcrypto.ToECDSA(raw)
		if derr != nil {
			return taerr.Wrap(taerr.KindInternal, "reconstruct signing key", derr)
		}
		defer zeroECDSA(key)

		tx := types.NewTx(&types.LegacyTx{
			Nonce:    req.Nonce,
			To:       req.To,
			Value:    new(big.Int).Set(req.Value),
			Gas:      req.Gas,
			GasPrice: new(big.Int).Set(req.GasPrice),
			Data:     req.Data,
		})

		signer := types.NewEIP155Signer(new(big.Int).SetUint64(req.ChainID))
		signedTx, serr := types.SignTx(tx, signer, key)
		if serr != nil {
			return taerr.Wrap(taerr.KindInternal, "sign transaction", serr)
		}

		v, r, s := signedTx.RawSignatureValues()
		sig := make([]byte, 65)
		copy(sig[0:32], leftPad32(r.Bytes()))
		copy(sig[32:64], leftPad32(s.Bytes()))
		sig[64] = byte(v.Uint64())

		raw2, merr := signedTx.MarshalBinary()
		if merr != nil {
			return taerr.Wrap(taerr.KindInternal, "marshal signed transaction", merr)
		}

		out = make([]byte, 0, len(sig)+len(raw2))
		out = append(out, sig...)
		out = append(out, raw2...)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func estimateFixedSize(req Request) int {
	return 128
}

func zeroECDSA(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	bits := key.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
}
