package taerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
)

func TestKindString(t *testing.T) {
	require.Equal(t, "bad_parameters", taerr.KindBadParameters.String())
	require.Equal(t, "integrity_error", taerr.KindIntegrityError.String())
	require.Equal(t, "unknown", taerr.Kind(255).String())
}

func TestKindFatal(t *testing.T) {
	require.True(t, taerr.KindIntegrityError.Fatal())
	require.True(t, taerr.KindInternal.Fatal())
	require.False(t, taerr.KindBadParameters.Fatal())
	require.False(t, taerr.KindNoSession.Fatal())
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := taerr.Wrap(taerr.KindInternal, "read sealed record", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk gone")
}

func TestShortBufferCarriesRequiredSize(t *testing.T) {
	err := taerr.ShortBuffer(128)
	require.Equal(t, taerr.KindShortBuffer, err.Kind)
	require.Equal(t, uint32(128), err.RequiredSize)
}

func TestAsDefaultsToInternalForForeignErrors(t *testing.T) {
	foreign := errors.New("not one of ours")
	got := taerr.As(foreign)
	require.Equal(t, taerr.KindInternal, got.Kind)
	require.ErrorIs(t, got, foreign)
}

func TestAsPassesThroughOwnError(t *testing.T) {
	original := taerr.New(taerr.KindNotFound, "wallet not found")
	got := taerr.As(original)
	require.Same(t, original, got)
}

func TestAsNilIsNil(t *testing.T) {
	require.Nil(t, taerr.As(nil))
}
