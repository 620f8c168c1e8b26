// Package hdpath validates and parses BIP32 HD derivation path strings
// using go-ethereum's accounts.DerivationPath parser, the same one the
// Jasonyou1995/simple-eth-hd-wallet reference wraps for Ethereum wallets.
package hdpath

import (
	"github.com/ethereum/go-ethereum/accounts"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
)

// DefaultPath is the primary address derivation path, per spec §4.2.
const DefaultPath = "m/44'/60'/0'/0/0"

// Path is a parsed, grammar-valid HD derivation path.
type Path accounts.DerivationPath

// Parse validates path's grammar and returns the parsed form. Malformed
// paths yield BadParameters per spec §4.2's tie-break rule; the error
// message never echoes the offending string beyond its length, so a
// caller logging it can't leak structure of a crafted path.
func Parse(path string) (Path, error) {
	if len(path) == 0 {
		return nil, taerr.New(taerr.KindBadParameters, "hd path is empty")
	}
	if len(path) > 256 {
		return nil, taerr.New(taerr.KindBadParameters, "hd path exceeds maximum length")
	}
	dp, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, taerr.New(taerr.KindBadParameters, "hd path grammar is invalid")
	}
	return Path(dp), nil
}

func (p Path) String() string {
	return accounts.DerivationPath(p).String()
}
