// Package taproto implements the Wire Protocol (spec §4.1/§6): command
// IDs, the four-slot parameter convention, and the compact
// self-describing binary codec shared by the TA and the Client Proxy.
//
// The convention is bit-exact and mandatory: every invocation carries an
// input buffer (slot0), an output buffer (slot1), a value pair whose
// first field receives the output length (slot2), and an unused slot3.
// A CA that omits slot2 is rejected with BadParameters — callers of this
// package express that by always constructing a Params value, never a
// partial one.
package taproto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxInputBytes bounds slot0 per spec §4.1.
const MaxInputBytes = 4096

// CommandID identifies a TA command. IDs are part of the external ABI and
// must never be renumbered.
type CommandID uint32

const (
	CmdHelloWorld          CommandID = 0
	CmdEcho                CommandID = 1
	CmdGetVersion          CommandID = 2
	_reservedStart                   = 3 // IDs 3-9 reserved (spec Open Question 4)
	_reservedEnd                     = 9
	CmdCreateWallet        CommandID = 10
	CmdRemoveWallet        CommandID = 11
	CmdDeriveAddress       CommandID = 12
	CmdSignTransaction     CommandID = 13
	CmdGetWalletInfo       CommandID = 14
	CmdListWallets         CommandID = 15
	CmdTestSecurityState   CommandID = 16
	CmdCreateHybridAccount CommandID = 20
	CmdSignWithHybridKey   CommandID = 21
	CmdVerifySecurityState CommandID = 22
)

// EmptyInputAllowed reports whether a command's input payload is defined
// as ignored, per spec §4.1's "critical validation rule": the validator
// must not require a non-empty slot0 for these commands.
func EmptyInputAllowed(id CommandID) bool {
	switch id {
	case CmdHelloWorld, CmdGetVersion, CmdListWallets, CmdTestSecurityState, CmdVerifySecurityState:
		return true
	default:
		return false
	}
}

// Registered reports whether id is a known, non-reserved command.
func Registered(id CommandID) bool {
	switch id {
	case CmdHelloWorld, CmdEcho, CmdGetVersion,
		CmdCreateWallet, CmdRemoveWallet, CmdDeriveAddress, CmdSignTransaction,
		CmdGetWalletInfo, CmdListWallets, CmdTestSecurityState,
		CmdCreateHybridAccount, CmdSignWithHybridKey, CmdVerifySecurityState:
		return true
	default:
		return false
	}
}

// ValuePair is slot2: {a, b}. The dispatcher writes the output length
// into A; B is reserved in v1.
type ValuePair struct {
	A uint32
	B uint32
}

// Params is the four-slot envelope for a single invocation.
type Params struct {
	Slot0 []byte    // input buffer
	Slot1 []byte    // output buffer, caller-allocated capacity
	Slot2 ValuePair // value pair; dispatcher writes Slot2.A
	// Slot3 unused in v1.
}

// Writer is a compact self-describing binary encoder: length-prefixed
// fields, fixed little-endian integers, UTF-8 strings without a
// trailing NUL. It never hand-rolls framing the standard library
// doesn't already provide.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with a small pre-allocated capacity.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) PutBytes(b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, b...)
}

func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutByte(v byte) { w.buf = append(w.buf, v) }

// Bytes returns the encoded payload.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader is the matching compact binary decoder.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

var ErrTruncated = errors.New("taproto: truncated payload")

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrTruncated
	}
	return nil
}

func (r *Reader) GetBytes() ([]byte, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) GetUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// Remaining reports how many bytes of the payload are not yet consumed.
// A non-zero remainder after decoding the expected fields indicates a
// malformed, over-long payload.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Rest returns every byte not yet consumed, unparsed. Used by commands
// like Echo whose payload is opaque rather than field-structured.
func (r *Reader) Rest() []byte { return r.buf[r.pos:] }

// WriteOutput copies out into p.Slot1 and records the length in
// p.Slot2.A. If out is longer than len(p.Slot1), it returns the required
// size and a ShortBuffer signal (via the boolean) instead of writing
// partial data.
func WriteOutput(p *Params, out []byte) (required uint32, ok bool) {
	required = uint32(len(out))
	if len(out) > cap(p.Slot1) && len(out) > len(p.Slot1) {
		return required, false
	}
	if len(out) > len(p.Slot1) {
		return required, false
	}
	n := copy(p.Slot1, out)
	p.Slot2.A = uint32(n)
	return required, true
}

func (id CommandID) String() string {
	switch id {
	case CmdHelloWorld:
		return "HelloWorld"
	case CmdEcho:
		return "Echo"
	case CmdGetVersion:
		return "GetVersion"
	case CmdCreateWallet:
		return "CreateWallet"
	case CmdRemoveWallet:
		return "RemoveWallet"
	case CmdDeriveAddress:
		return "DeriveAddress"
	case CmdSignTransaction:
		return "SignTransaction"
	case CmdGetWalletInfo:
		return "GetWalletInfo"
	case CmdListWallets:
		return "ListWallets"
	case CmdTestSecurityState:
		return "TestSecurityState"
	case CmdCreateHybridAccount:
		return "CreateHybridAccount"
	case CmdSignWithHybridKey:
		return "SignWithHybridKey"
	case CmdVerifySecurityState:
		return "VerifySecurityState"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(id))
	}
}
