package taproto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/taproto"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := taproto.NewWriter()
	w.PutString("hello")
	w.PutUint64(42)
	w.PutUint32(7)
	w.PutByte(0xAB)
	w.PutBytes([]byte{1, 2, 3})

	rd := taproto.NewReader(w.Bytes())

	s, err := rd.GetString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	u64, err := rd.GetUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(42), u64)

	u32, err := rd.GetUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(7), u32)

	b, err := rd.GetByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)

	bs, err := rd.GetBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, bs)

	require.Equal(t, 0, rd.Remaining())
}

func TestReaderRejectsTruncatedPayload(t *testing.T) {
	w := taproto.NewWriter()
	w.PutString("ab")
	buf := w.Bytes()[:len(w.Bytes())-1] // chop off the last byte of the string

	rd := taproto.NewReader(buf)
	_, err := rd.GetString()
	require.ErrorIs(t, err, taproto.ErrTruncated)
}

func TestWriteOutputShortBuffer(t *testing.T) {
	p := &taproto.Params{Slot1: make([]byte, 4)}
	required, ok := taproto.WriteOutput(p, []byte("too long"))
	require.False(t, ok)
	require.Equal(t, uint32(8), required)
}

func TestWriteOutputFits(t *testing.T) {
	p := &taproto.Params{Slot1: make([]byte, 8)}
	required, ok := taproto.WriteOutput(p, []byte("fits"))
	require.True(t, ok)
	require.Equal(t, uint32(4), required)
	require.Equal(t, uint32(4), p.Slot2.A)
}

func TestEmptyInputAllowedTable(t *testing.T) {
	require.True(t, taproto.EmptyInputAllowed(taproto.CmdHelloWorld))
	require.True(t, taproto.EmptyInputAllowed(taproto.CmdListWallets))
	require.False(t, taproto.EmptyInputAllowed(taproto.CmdEcho))
	require.False(t, taproto.EmptyInputAllowed(taproto.CmdCreateWallet))
}

func TestRequestResponseFraming(t *testing.T) {
	buf := &loopback{}
	req := taproto.Request{Command: taproto.CmdEcho, Input: []byte("payload"), OutputCapMax: 128}
	require.NoError(t, taproto.WriteRequest(buf, req))

	got, err := taproto.ReadRequest(buf)
	require.NoError(t, err)
	require.Equal(t, req.Command, got.Command)
	require.Equal(t, req.Input, got.Input)
	require.Equal(t, req.OutputCapMax, got.OutputCapMax)

	resp := taproto.Response{Status: 0, Output: []byte("out"), ReqSize: 3}
	require.NoError(t, taproto.WriteResponse(buf, resp))
	gotResp, err := taproto.ReadResponse(buf)
	require.NoError(t, err)
	require.Equal(t, resp, gotResp)
}

// loopback is a minimal in-memory io.ReadWriter for framing tests.
type loopback struct {
	data []byte
}

func (l *loopback) Write(p []byte) (int, error) {
	l.data = append(l.data, p...)
	return len(p), nil
}

func (l *loopback) Read(p []byte) (int, error) {
	n := copy(p, l.data)
	l.data = l.data[n:]
	return n, nil
}
