package ta

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/audit"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taproto"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/hdpath"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/txsign"
)

// nonceRequired reports whether a command carries a leading 8-byte
// anti-replay nonce ahead of its usual fields: every command that
// creates, removes, derives from, or signs with a wallet. HelloWorld,
// Echo, GetVersion, GetWalletInfo, ListWallets and the two
// security-state commands are exempt.
func nonceRequired(id taproto.CommandID) bool {
	switch id {
	case taproto.CmdCreateWallet, taproto.CmdRemoveWallet, taproto.CmdDeriveAddress,
		taproto.CmdSignTransaction, taproto.CmdCreateHybridAccount, taproto.CmdSignWithHybridKey:
		return true
	default:
		return false
	}
}

// rateLimited reports whether a command is high-risk enough to be
// gated by the per-session token bucket, per spec §4.5.
func rateLimited(id taproto.CommandID) bool {
	switch id {
	case taproto.CmdCreateWallet, taproto.CmdSignTransaction, taproto.CmdRemoveWallet,
		taproto.CmdCreateHybridAccount, taproto.CmdSignWithHybridKey:
		return true
	default:
		return false
	}
}

// Invoke runs the full per-command pipeline named in spec §9: validate
// shapes, fetch session (skipped for HelloWorld and GetVersion),
// deserialize, dispatch, serialize (with a ShortBuffer check against
// outputCapMax), and emit an audit event on failure. It
// never panics on malformed input — every decode error becomes
// BadParameters.
func (c *Context) Invoke(sessionID string, cmd taproto.CommandID, input []byte, outputCapMax uint32) (output []byte, reqSize uint32, kind taerr.Kind) {
	if !taproto.Registered(cmd) {
		c.audit.Log(audit.KindValidationFailure, sessionID, "", cmd.String())
		return nil, 0, taerr.KindBadCommand
	}
	if len(input) == 0 && !taproto.EmptyInputAllowed(cmd) {
		c.audit.Log(audit.KindValidationFailure, sessionID, "", cmd.String())
		return nil, 0, taerr.KindBadParameters
	}
	if len(input) > taproto.MaxInputBytes {
		c.audit.Log(audit.KindValidationFailure, sessionID, "", cmd.String())
		return nil, 0, taerr.KindBadParameters
	}

	var sess *Session
	if cmd != taproto.CmdHelloWorld && cmd != taproto.CmdGetVersion {
		s, err := c.session(sessionID)
		if err != nil {
			return nil, 0, taerr.As(err).Kind
		}
		sess = s
	}

	rd := taproto.NewReader(input)

	if nonceRequired(cmd) {
		nonce, err := rd.GetUint64()
		if err != nil {
			return nil, 0, taerr.KindBadParameters
		}
		if err := c.checkNonce(sess, nonce); err != nil {
			c.audit.Log(audit.KindSecurityViolation, sessionID, "", "replayed_nonce")
			return nil, 0, taerr.As(err).Kind
		}
	}

	if rateLimited(cmd) && !c.limiter.Allow(sessionID) {
		c.rateLimitTrips.Add(1)
		c.audit.Log(audit.KindSecurityViolation, sessionID, "", "rate_limited:"+cmd.String())
		return nil, 0, taerr.KindRateLimited
	}

	out, err := c.dispatch(sess, cmd, rd)
	if err != nil {
		c.audit.Log(audit.KindValidationFailure, sessionID, "", cmd.String())
		te := taerr.As(err)
		switch te.Kind {
		case taerr.KindShortBuffer:
			return nil, te.RequiredSize, taerr.KindShortBuffer
		case taerr.KindEntropyQualityError:
			c.entropyFailures.Add(1)
		case taerr.KindIntegrityError:
			c.integrityFailures.Add(1)
		}
		return nil, 0, te.Kind
	}

	if uint32(len(out)) > outputCapMax {
		return nil, uint32(len(out)), taerr.KindShortBuffer
	}
	return out, uint32(len(out)), taerr.KindOK
}

func (c *Context) dispatch(sess *Session, cmd taproto.CommandID, rd *taproto.Reader) ([]byte, error) {
	switch cmd {
	case taproto.CmdHelloWorld:
		w := taproto.NewWriter()
		w.PutString("AirAccount TA ready")
		return w.Bytes(), nil

	case taproto.CmdEcho:
		out := make([]byte, len(rd.Rest()))
		copy(out, rd.Rest())
		return out, nil

	case taproto.CmdGetVersion:
		w := taproto.NewWriter()
		w.PutString(Version)
		return w.Bytes(), nil

	case taproto.CmdCreateWallet:
		userBinding, _ := rd.GetBytes() // optional, empty is fine
		res, err := c.engine.CreateWallet(context.Background(), sess.ID, userBinding)
		if err != nil {
			return nil, err
		}
		w := taproto.NewWriter()
		w.PutString(res.WalletID)
		w.PutString(res.Mnemonic)
		w.PutString(res.PrimaryAddress)
		return w.Bytes(), nil

	case taproto.CmdRemoveWallet:
		walletID, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing wallet_id")
		}
		if err := c.engine.RemoveWallet(sess.ID, walletID); err != nil {
			return nil, err
		}
		return []byte{}, nil

	case taproto.CmdDeriveAddress:
		walletID, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing wallet_id")
		}
		path, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing hd_path")
		}
		addr, err := c.engine.DeriveAddress(sess.ID, walletID, path)
		if err != nil {
			return nil, err
		}
		w := taproto.NewWriter()
		w.PutString(addr)
		return w.Bytes(), nil

	case taproto.CmdSignTransaction:
		walletID, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing wallet_id")
		}
		path, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing hd_path")
		}
		if _, perr := hdpath.Parse(path); perr != nil {
			return nil, perr
		}
		req, err := decodeTxRequest(rd)
		if err != nil {
			return nil, err
		}
		signed, err := c.engine.SignTransaction(sess.ID, walletID, path, req)
		if err != nil {
			return nil, err
		}
		return signed, nil

	case taproto.CmdSignWithHybridKey:
		accountID, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing account_id")
		}
		path, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing hd_path")
		}
		digest, err := rd.GetBytes()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing digest")
		}
		sig, err := c.engine.SignDigest(sess.ID, accountID, path, digest)
		if err != nil {
			return nil, err
		}
		w := taproto.NewWriter()
		w.PutBytes(sig)
		return w.Bytes(), nil

	case taproto.CmdGetWalletInfo:
		walletID, err := rd.GetString()
		if err != nil {
			return nil, taerr.New(taerr.KindBadParameters, "missing wallet_id")
		}
		info, err := c.engine.GetWalletInfo(walletID)
		if err != nil {
			return nil, err
		}
		w := taproto.NewWriter()
		w.PutString(info.WalletID)
		w.PutString(info.PrimaryAddress)
		w.PutUint64(uint64(info.CreatedAtUnix))
		return w.Bytes(), nil

	case taproto.CmdListWallets:
		ids, err := c.engine.ListWallets()
		if err != nil {
			return nil, err
		}
		w := taproto.NewWriter()
		w.PutUint32(uint32(len(ids)))
		for _, id := range ids {
			w.PutString(id)
		}
		return w.Bytes(), nil

	case taproto.CmdTestSecurityState, taproto.CmdVerifySecurityState:
		status := c.securityStatus()
		w := taproto.NewWriter()
		w.PutString(status.Status)
		w.PutString(status.Version)
		w.PutUint64(status.AuditDropped)
		w.PutUint64(status.EntropyFailures)
		w.PutUint64(status.RateLimitTrips)
		w.PutUint64(status.IntegrityFailures)
		return w.Bytes(), nil

	case taproto.CmdCreateHybridAccount:
		userBinding, _ := rd.GetBytes()
		res, err := c.engine.CreateWallet(context.Background(), sess.ID, userBinding)
		if err != nil {
			return nil, err
		}
		c.audit.Log(audit.KindWalletCreated, sess.ID, res.WalletID, "hybrid")
		w := taproto.NewWriter()
		w.PutString(res.WalletID)
		w.PutString(res.PrimaryAddress)
		return w.Bytes(), nil

	default:
		return nil, taerr.New(taerr.KindBadCommand, "unhandled command")
	}
}

func decodeTxRequest(rd *taproto.Reader) (txsign.Request, error) {
	chainID, err := rd.GetUint64()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing chain_id")
	}
	nonce, err := rd.GetUint64()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing nonce")
	}
	toBytes, err := rd.GetBytes()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing to")
	}
	valueBytes, err := rd.GetBytes()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing value")
	}
	gasPriceBytes, err := rd.GetBytes()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing gas_price")
	}
	gas, err := rd.GetUint64()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing gas")
	}
	data, err := rd.GetBytes()
	if err != nil {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "missing data")
	}

	var to *common.Address
	if len(toBytes) == common.AddressLength {
		a := common.BytesToAddress(toBytes)
		to = &a
	} else if len(toBytes) != 0 {
		return txsign.Request{}, taerr.New(taerr.KindBadParameters, "malformed to address")
	}

	return txsign.Request{
		ChainID:  chainID,
		Nonce:    nonce,
		To:       to,
		Value:    new(big.Int).SetBytes(valueBytes),
		GasPrice: new(big.Int).SetBytes(gasPriceBytes),
		Gas:      gas,
		Data:     data,
	}, nil
}
