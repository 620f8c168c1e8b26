package hdpath_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/hdpath"
)

func TestParseValidPaths(t *testing.T) {
	cases := []string{
		hdpath.DefaultPath,
		"m/44'/60'/0'/0/1",
		"m/44'/60'/1'/0/0",
	}
	for _, p := range cases {
		got, err := hdpath.Parse(p)
		require.NoError(t, err, p)
		require.NotEmpty(t, got.String())
	}
}

func TestParseRejectsEmptyPath(t *testing.T) {
	_, err := hdpath.Parse("")
	require.Equal(t, taerr.KindBadParameters, taerr.As(err).Kind)
}

func TestParseRejectsOverlongPath(t *testing.T) {
	_, err := hdpath.Parse("m/" + strings.Repeat("44'/", 100))
	require.Equal(t, taerr.KindBadParameters, taerr.As(err).Kind)
}

func TestParseRejectsMalformedGrammar(t *testing.T) {
	cases := []string{
		"not-a-path",
		"m/abc",
		"m//0",
	}
	for _, p := range cases {
		_, err := hdpath.Parse(p)
		require.Error(t, err, p)
		require.Equal(t, taerr.KindBadParameters, taerr.As(err).Kind)
	}
}
